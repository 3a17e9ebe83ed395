// internal/units/followup/content.go
package followup

import (
	"context"
	"fmt"
	"net/url"
	"regexp"

	"noctua/internal/core/domain"
	"noctua/internal/platform/httpclient"
	"noctua/internal/platform/logx"
)

var scriptSrcRe = regexp.MustCompile(`(?i)<script[^>]+src=["']([^"']+)["']`)

// secretPatterns are quick credential fingerprints hunted inside fetched
// JavaScript bodies.
var secretPatterns = map[string]*regexp.Regexp{
	"Google API":      regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`),
	"Slack Token":     regexp.MustCompile(`xox[baprs]-([0-9a-zA-Z]{10,48})`),
	"AWS Access Key":  regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	"Generic API Key": regexp.MustCompile(`(?i)(api_key|apikey|access_token)["'\s:=]+([a-zA-Z0-9]{20,})`),
}

// ContentHandler recupera el HTML del target, sigue los <script src> y
// busca credenciales conocidas en los cuerpos JavaScript.
type ContentHandler struct {
	client *httpclient.Client
	logger logx.Logger
}

// NewContentHandler crea el handler de análisis de contenido.
func NewContentHandler(client *httpclient.Client, logger logx.Logger) *ContentHandler {
	return &ContentHandler{
		client: client,
		logger: logger.With("handler", "content"),
	}
}

func (h *ContentHandler) Type() domain.TaskType { return domain.TaskContentAnalysis }

// Handle analiza el HTML y los scripts enlazados. No descubre targets
// nuevos: los scripts no son candidatos de probe.
func (h *ContentHandler) Handle(ctx context.Context, rc *domain.RunContext, _ domain.ScanTask, target string) ([]string, error) {
	resp, err := h.client.Get(ctx, target, nil)
	if err != nil {
		return nil, err
	}
	body, err := httpclient.ReadBody(resp)
	if err != nil {
		return nil, err
	}

	scripts := extractScripts(string(body), target)
	if len(scripts) == 0 {
		h.logger.Debug("no script tags found", "target", target)
		return nil, nil
	}

	h.logger.Debug("fetching scripts", "target", target, "count", len(scripts))

	for _, scriptURL := range scripts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sResp, err := h.client.Get(ctx, scriptURL, nil)
		if err != nil {
			h.logger.Debug("script fetch failed", "url", scriptURL)
			continue
		}
		js, err := httpclient.ReadBody(sResp)
		if err != nil {
			continue
		}

		for name, pattern := range secretPatterns {
			if pattern.Match(js) {
				finding := fmt.Sprintf("[content] %s found in %s", name, scriptURL)
				rc.AddFindings(finding)
				rc.Emit("vuln", finding)
			}
		}
	}

	return nil, nil
}

// extractScripts resuelve los src de <script> contra la URL base,
// deduplicando y preservando el orden.
func extractScripts(html, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	scripts := make([]string, 0)
	for _, m := range scriptSrcRe.FindAllStringSubmatch(html, -1) {
		ref, err := url.Parse(m[1])
		if err != nil {
			continue
		}
		resolved := base.ResolveReference(ref).String()
		if _, dup := seen[resolved]; dup {
			continue
		}
		seen[resolved] = struct{}{}
		scripts = append(scripts, resolved)
	}
	return scripts
}
