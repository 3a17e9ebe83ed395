// internal/units/webservices/webservices.go
package webservices

import (
	"context"

	"noctua/internal/core/domain"
	"noctua/internal/core/ports"
	"noctua/internal/platform/config"
	"noctua/internal/platform/logx"
	"noctua/internal/platform/portscan"
	"noctua/internal/platform/registry"
)

func init() {
	registry.Global().MustRegister(
		"web_services",
		func(cfg config.UnitConfig, deps registry.Deps) (ports.Unit, error) {
			return New(cfg, deps.Logger), nil
		},
		ports.UnitMetadata{
			Name:        "web_services",
			Description: "Web service detection across discovered subdomains",
			DependsOn:   []string{"subdomains"},
		},
	)
}

// Unit detecta servicios web en los subdominios acumulados probando los
// puertos web habituales (80, 443, 8080, 8443) y deriva las URLs base.
type Unit struct {
	cfg     config.UnitConfig
	scanner *portscan.Scanner
	logger  logx.Logger
}

// New crea el unit de detección de servicios web.
func New(cfg config.UnitConfig, logger logx.Logger) *Unit {
	return &Unit{
		cfg:     cfg,
		scanner: portscan.New(logger),
		logger:  logger.With("unit", "web_services"),
	}
}

func (u *Unit) Name() string        { return "web_services" }
func (u *Unit) Enabled() bool       { return u.cfg.Enabled }
func (u *Unit) DependsOn() []string { return []string{"subdomains"} }

// Run escanea los puertos web de cada subdominio y acumula puertos y URLs.
func (u *Unit) Run(ctx context.Context, rc *domain.RunContext) error {
	if rc.Scope.Mode == domain.ModePassive {
		u.logger.Debug("passive mode, skipping web detection")
		return nil
	}

	hosts := rc.Subdomains()
	if len(hosts) == 0 && rc.Scope.Host != "" {
		hosts = []string{rc.Scope.Host}
	}
	if len(hosts) == 0 {
		u.logger.Debug("no hosts to probe, skipping")
		return nil
	}

	u.logger.Info("detecting web services", "hosts", len(hosts))

	webPorts, urls := u.scanner.ScanWebHosts(ctx, hosts)
	rc.MergeWebPorts(webPorts)
	rc.AddWebURLs(urls...)

	for _, url := range urls {
		rc.Emit("web", url)
	}

	u.logger.Info("web detection completed",
		"hosts_with_web", len(webPorts),
		"urls", len(urls),
	)
	return nil
}
