// internal/units/followup/fuzzer.go
package followup

import (
	"context"
	"fmt"
	"strings"

	"noctua/internal/core/domain"
	"noctua/internal/platform/httpclient"
	"noctua/internal/platform/logx"
)

// defaultWordlist es la lista corta de descubrimiento rápido.
var defaultWordlist = []string{"admin", ".git", "backup", "old", "test", "dev", "login"}

// interestingStatus son los códigos que cuentan como hit de fuzzing.
var interestingStatus = map[int]struct{}{
	200: {}, 204: {}, 301: {}, 302: {}, 307: {}, 401: {}, 403: {},
}

// FuzzerHandler hace descubrimiento de contenido ligero sobre un target:
// una petición por palabra de la wordlist. Los hits realimentan la cola
// como targets nuevos.
type FuzzerHandler struct {
	client   *httpclient.Client
	wordlist []string
	logger   logx.Logger
}

// NewFuzzerHandler crea el handler de fuzzing con la wordlist por defecto.
func NewFuzzerHandler(client *httpclient.Client, logger logx.Logger) *FuzzerHandler {
	return &FuzzerHandler{
		client:   client,
		wordlist: defaultWordlist,
		logger:   logger.With("handler", "fuzzer"),
	}
}

func (h *FuzzerHandler) Type() domain.TaskType { return domain.TaskFuzzing }

// Handle prueba cada path candidato y retorna los hits como targets nuevos.
func (h *FuzzerHandler) Handle(ctx context.Context, rc *domain.RunContext, _ domain.ScanTask, target string) ([]string, error) {
	base := strings.TrimRight(target, "/")
	discovered := make([]string, 0)

	for _, word := range h.wordlist {
		if err := ctx.Err(); err != nil {
			return discovered, err
		}

		candidate := base + "/" + word
		resp, err := h.client.Get(ctx, candidate, nil)
		if err != nil {
			continue
		}
		status := resp.StatusCode
		resp.Body.Close()

		if _, hit := interestingStatus[status]; !hit {
			continue
		}

		h.logger.Debug("fuzzing hit", "url", candidate, "status", status)
		finding := fmt.Sprintf("[fuzzer] %d %s", status, candidate)
		rc.AddFindings(finding)
		discovered = append(discovered, candidate)
	}

	return discovered, nil
}
