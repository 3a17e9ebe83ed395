// internal/units/webprobe/prober.go
package webprobe

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"noctua/internal/core/domain"
	"noctua/internal/platform/httpclient"
	"noctua/internal/platform/logx"
)

var titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
var spaceRe = regexp.MustCompile(`\s+`)

// HTTPProber implements ports.Prober with a single GET per URL, collecting
// status, title, server header, content length, and a technology fingerprint
// from well-known header and body markers.
type HTTPProber struct {
	client *httpclient.Client
	logger logx.Logger
}

// NewProber creates an HTTPProber over the shared client.
func NewProber(client *httpclient.Client, logger logx.Logger) *HTTPProber {
	return &HTTPProber{
		client: client,
		logger: logger.With("component", "prober"),
	}
}

// Probe issues a GET and extracts quick intel from the response.
func (p *HTTPProber) Probe(ctx context.Context, url string) (domain.ProbeResult, error) {
	resp, err := p.client.Get(ctx, url, nil)
	if err != nil {
		return domain.ProbeResult{}, err
	}

	body, err := httpclient.ReadBody(resp)
	if err != nil {
		p.logger.Debug("body read failed", "url", url, "error", err.Error())
		body = nil
	}

	text := string(body)
	result := domain.ProbeResult{
		StatusCode:    resp.StatusCode,
		Title:         extractTitle(text),
		Server:        resp.Header.Get("Server"),
		ContentLength: contentLength(resp.Header.Get("Content-Length"), len(body)),
		Technologies:  detectTechnologies(text, resp.Header),
	}

	p.logger.Debug("probed",
		"url", url,
		"status", result.StatusCode,
		"techs", strings.Join(result.Technologies, ","),
	)
	return result, nil
}

// extractTitle saca el contenido de <title>, colapsando whitespace.
func extractTitle(body string) string {
	m := titleRe.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(spaceRe.ReplaceAllString(m[1], " "))
}

// contentLength prefiere el header Content-Length si es parseable.
func contentLength(header string, bodyLen int) int {
	if header != "" {
		if n, err := strconv.Atoi(header); err == nil {
			return n
		}
	}
	return bodyLen
}

// detectTechnologies fingerprints well-known stacks from headers and body.
func detectTechnologies(body string, headers map[string][]string) []string {
	techs := make(map[string]struct{})
	bodyL := strings.ToLower(body)

	get := func(key string) string {
		if vs, ok := headers[key]; ok && len(vs) > 0 {
			return vs[0]
		}
		return ""
	}
	serverHdr := strings.ToLower(get("Server"))
	poweredBy := strings.ToLower(get("X-Powered-By"))

	if strings.Contains(bodyL, "wp-content") || strings.Contains(bodyL, "wp-json") {
		techs["WordPress"] = struct{}{}
	}
	if get("X-Jenkins") != "" {
		techs["Jenkins"] = struct{}{}
	}
	if strings.Contains(bodyL, "drupal.settings") || strings.Contains(poweredBy, "drupal") {
		techs["Drupal"] = struct{}{}
	}
	if strings.Contains(bodyL, "joomla") {
		techs["Joomla"] = struct{}{}
	}
	if strings.Contains(poweredBy, "express") {
		techs["Express"] = struct{}{}
	}
	if strings.Contains(bodyL, "laravel") || strings.Contains(poweredBy, "laravel") {
		techs["Laravel"] = struct{}{}
	}
	if strings.Contains(serverHdr, "nginx") {
		techs["Nginx"] = struct{}{}
	}
	if strings.Contains(serverHdr, "apache") {
		techs["Apache"] = struct{}{}
	}
	if strings.Contains(serverHdr, "cloudflare") {
		techs["Cloudflare"] = struct{}{}
	}

	out := make([]string, 0, len(techs))
	for t := range techs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
