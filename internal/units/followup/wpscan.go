// internal/units/followup/wpscan.go
package followup

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"noctua/internal/core/domain"
	"noctua/internal/platform/httpclient"
	"noctua/internal/platform/logx"
)

// wpUser es la forma mínima de la respuesta de /wp-json/wp/v2/users.
type wpUser struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// WPScanHandler enumera usuarios de WordPress via la REST API pública y
// comprueba si xmlrpc.php está expuesto.
type WPScanHandler struct {
	client *httpclient.Client
	logger logx.Logger
}

// NewWPScanHandler crea el handler de enumeración WordPress.
func NewWPScanHandler(client *httpclient.Client, logger logx.Logger) *WPScanHandler {
	return &WPScanHandler{
		client: client,
		logger: logger.With("handler", "wpscan"),
	}
}

func (h *WPScanHandler) Type() domain.TaskType { return domain.TaskWPScan }

// Handle consulta los endpoints WordPress conocidos del target.
func (h *WPScanHandler) Handle(ctx context.Context, rc *domain.RunContext, _ domain.ScanTask, target string) ([]string, error) {
	base := strings.TrimRight(target, "/")

	if body, err := h.client.FetchJSON(ctx, base+"/wp-json/wp/v2/users"); err == nil {
		var users []wpUser
		if err := json.Unmarshal(body, &users); err == nil && len(users) > 0 {
			slugs := make([]string, 0, len(users))
			for _, u := range users {
				if u.Slug != "" {
					slugs = append(slugs, u.Slug)
				}
			}
			if len(slugs) > 0 {
				finding := fmt.Sprintf("[wpscan] user enumeration on %s: %s", target, strings.Join(slugs, ", "))
				rc.AddFindings(finding)
				rc.Emit("vuln", finding)
			}
		}
	}

	resp, err := h.client.Get(ctx, base+"/xmlrpc.php", nil)
	if err == nil {
		status := resp.StatusCode
		resp.Body.Close()
		// xmlrpc.php responde 405 a GET cuando está habilitado
		if status == 405 {
			finding := fmt.Sprintf("[wpscan] xmlrpc.php exposed on %s", target)
			rc.AddFindings(finding)
			rc.Emit("vuln", finding)
		}
	}

	return nil, nil
}
