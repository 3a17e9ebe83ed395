// internal/units/baseports/baseports.go
package baseports

import (
	"context"
	"fmt"

	"noctua/internal/core/domain"
	"noctua/internal/core/ports"
	"noctua/internal/platform/config"
	"noctua/internal/platform/logx"
	"noctua/internal/platform/portscan"
	"noctua/internal/platform/registry"
)

func init() {
	registry.Global().MustRegister(
		"base_ports",
		func(cfg config.UnitConfig, deps registry.Deps) (ports.Unit, error) {
			return New(cfg, deps.Config.Concurrency.MaxConnections, deps.Logger), nil
		},
		ports.UnitMetadata{
			Name:        "base_ports",
			Description: "TCP connect scan of the base host",
			DependsOn:   nil,
		},
	)
}

// Unit escanea puertos TCP del host base del scope mediante connect scan.
// Solo corre en modos hybrid y active: un connect scan toca el target.
type Unit struct {
	cfg            config.UnitConfig
	maxConnections int
	scanner        *portscan.Scanner
	logger         logx.Logger
}

// New crea el unit de escaneo del host base.
func New(cfg config.UnitConfig, maxConnections int, logger logx.Logger) *Unit {
	return &Unit{
		cfg:            cfg,
		maxConnections: maxConnections,
		scanner:        portscan.New(logger),
		logger:         logger.With("unit", "base_ports"),
	}
}

func (u *Unit) Name() string        { return "base_ports" }
func (u *Unit) Enabled() bool       { return u.cfg.Enabled }
func (u *Unit) DependsOn() []string { return nil }

// Run escanea el host base y fusiona los puertos abiertos en el contexto.
func (u *Unit) Run(ctx context.Context, rc *domain.RunContext) error {
	if rc.Scope.Mode == domain.ModePassive {
		u.logger.Debug("passive mode, skipping port scan")
		return nil
	}

	host := rc.Scope.Host
	if host == "" {
		host = rc.Scope.IP
	}
	if host == "" {
		u.logger.Debug("no host in scope, skipping")
		return nil
	}

	scanPorts := u.cfg.Ports
	if len(scanPorts) == 0 {
		scanPorts = portscan.CommonTCPPorts
	}

	u.logger.Info("scanning base host", "host", host, "ports", len(scanPorts))

	open := u.scanner.Scan(ctx, host, scanPorts, u.maxConnections)
	rc.MergeBasePorts(open)

	for port, service := range open {
		rc.Emit("port", fmt.Sprintf("%s:%d (%s)", host, port, service))
	}

	u.logger.Info("base scan completed", "host", host, "open", len(open))
	return nil
}
