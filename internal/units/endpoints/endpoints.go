// internal/units/endpoints/endpoints.go
package endpoints

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"noctua/internal/core/domain"
	"noctua/internal/core/ports"
	"noctua/internal/platform/config"
	"noctua/internal/platform/httpclient"
	"noctua/internal/platform/logx"
	"noctua/internal/platform/registry"
)

// ExtraKeyEndpoints es la clave de extensión donde el unit deja las URLs
// históricas recolectadas.
const ExtraKeyEndpoints = "endpoints"

func init() {
	registry.Global().MustRegister(
		"endpoints",
		func(cfg config.UnitConfig, deps registry.Deps) (ports.Unit, error) {
			return New(cfg, deps.HTTP, deps.Logger), nil
		},
		ports.UnitMetadata{
			Name:        "endpoints",
			Description: "Historic endpoint collection from the Wayback Machine CDX API",
			DependsOn:   []string{"subdomains"},
		},
	)
}

// Unit recolecta URLs históricas del scope desde el CDX API de la Wayback
// Machine. Es completamente pasivo: nunca toca el target.
type Unit struct {
	cfg     config.UnitConfig
	client  *httpclient.Client
	logger  logx.Logger
	cdxBase string
}

// New crea el unit de endpoints históricos.
func New(cfg config.UnitConfig, client *httpclient.Client, logger logx.Logger) *Unit {
	return &Unit{
		cfg:     cfg,
		client:  client,
		logger:  logger.With("unit", "endpoints"),
		cdxBase: "http://web.archive.org/cdx/search/cdx",
	}
}

func (u *Unit) Name() string        { return "endpoints" }
func (u *Unit) Enabled() bool       { return u.cfg.Enabled }
func (u *Unit) DependsOn() []string { return []string{"subdomains"} }

// Run consulta el CDX API y deja las URLs deduplicadas en la clave de
// extensión endpoints.
func (u *Unit) Run(ctx context.Context, rc *domain.RunContext) error {
	root := rc.Scope.Registered
	if root == "" {
		root = rc.Scope.Host
	}
	if root == "" {
		u.logger.Debug("no registrable domain in scope, skipping")
		return nil
	}

	limit := u.cfg.Limit
	if limit <= 0 {
		limit = 500
	}

	cdxURL := fmt.Sprintf(
		"%s?url=*.%s/*&output=json&fl=original&collapse=urlkey&limit=%d",
		u.cdxBase, url.QueryEscape(root), limit,
	)

	body, err := u.client.FetchJSON(ctx, cdxURL)
	if err != nil {
		return err
	}

	// El CDX devuelve un array de arrays; la primera fila es el header.
	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return fmt.Errorf("failed to parse CDX response: %w", err)
	}

	seen := make(map[string]struct{})
	collected := make([]string, 0, len(rows))
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		endpoint := strings.TrimSpace(row[0])
		if endpoint == "" {
			continue
		}
		if _, dup := seen[endpoint]; dup {
			continue
		}
		seen[endpoint] = struct{}{}
		collected = append(collected, endpoint)
		rc.Emit("endpoint", endpoint)
	}

	rc.SetExtra(ExtraKeyEndpoints, collected)
	u.logger.Info("endpoints collected", "root", root, "count", len(collected))
	return nil
}
