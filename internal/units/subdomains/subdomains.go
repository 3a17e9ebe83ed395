// internal/units/subdomains/subdomains.go
package subdomains

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"noctua/internal/core/domain"
	"noctua/internal/core/ports"
	"noctua/internal/platform/config"
	"noctua/internal/platform/httpclient"
	"noctua/internal/platform/logx"
	"noctua/internal/platform/registry"
	"noctua/internal/units/common"
)

// Auto-registro del unit al importar el package
func init() {
	registry.Global().MustRegister(
		"subdomains",
		func(cfg config.UnitConfig, deps registry.Deps) (ports.Unit, error) {
			return New(cfg, deps.HTTP, deps.Logger), nil
		},
		ports.UnitMetadata{
			Name:        "subdomains",
			Description: "Subdomain discovery via Certificate Transparency and subfinder",
			DependsOn:   nil,
		},
	)
}

// Unit descubre subdominios del scope. Siempre consulta los logs de
// Certificate Transparency via crt.sh; en modo hybrid o active suma la
// enumeración de subfinder cuando el binario está disponible.
type Unit struct {
	cfg       config.UnitConfig
	client    *httpclient.Client
	logger    logx.Logger
	crtshBase string
}

// New crea el unit de subdominios.
func New(cfg config.UnitConfig, client *httpclient.Client, logger logx.Logger) *Unit {
	return &Unit{
		cfg:       cfg,
		client:    client,
		logger:    logger.With("unit", "subdomains"),
		crtshBase: "https://crt.sh",
	}
}

func (u *Unit) Name() string        { return "subdomains" }
func (u *Unit) Enabled() bool       { return u.cfg.Enabled }
func (u *Unit) DependsOn() []string { return nil }

// Run acumula subdominios deduplicados en el contexto y emite cada
// descubrimiento nuevo.
func (u *Unit) Run(ctx context.Context, rc *domain.RunContext) error {
	root := rc.Scope.Registered
	if root == "" {
		root = rc.Scope.Host
	}
	if root == "" {
		u.logger.Debug("no registrable domain in scope, skipping")
		return nil
	}

	// El host del scope siempre entra al conjunto.
	u.collect(rc, rc.Scope.Host)

	found, err := u.fromCertTransparency(ctx, root, rc)
	if err != nil {
		u.logger.Warn("crt.sh lookup failed", "root", root, "error", err.Error())
	} else {
		u.logger.Info("crt.sh lookup completed", "root", root, "found", found)
	}

	if rc.Scope.Mode != domain.ModePassive {
		if err := u.fromSubfinder(ctx, root, rc); err != nil {
			u.logger.Warn("subfinder enumeration skipped", "error", err.Error())
		}
	}

	return nil
}

// certRecord representa un registro de certificado de crt.sh.
type certRecord struct {
	NameValue string `json:"name_value"`
}

// fromCertTransparency consulta crt.sh y extrae los hosts en scope.
func (u *Unit) fromCertTransparency(ctx context.Context, root string, rc *domain.RunContext) (int, error) {
	url := fmt.Sprintf("%s/?q=%%25.%s&output=json", u.crtshBase, root)

	body, err := u.client.FetchJSON(ctx, url)
	if err != nil {
		return 0, err
	}

	var records []certRecord
	if err := json.Unmarshal(body, &records); err != nil {
		// crt.sh devuelve HTML en errores; tratarlo como cero resultados
		return 0, fmt.Errorf("failed to parse crt.sh response: %w", err)
	}

	found := 0
	for _, record := range records {
		select {
		case <-ctx.Done():
			return found, ctx.Err()
		default:
		}

		// name_value puede contener múltiples hosts separados por \n
		for _, host := range strings.Split(record.NameValue, "\n") {
			host = strings.TrimSpace(strings.ToLower(host))
			host = strings.TrimPrefix(host, "*.")
			if host == "" || !rc.Scope.IsInScope(host) {
				continue
			}
			if u.collect(rc, host) {
				found++
			}
		}
	}

	return found, nil
}

// fromSubfinder complementa con enumeración activa cuando el binario existe.
func (u *Unit) fromSubfinder(ctx context.Context, root string, rc *domain.RunContext) error {
	bin := u.cfg.BinPath
	if bin == "" {
		bin = "subfinder"
	}

	runner := common.NewCLIRunner(u.logger, common.CLIConfig{
		UnitName: "subdomains",
		ExecPath: bin,
		Timeout:  u.timeout(),
	})
	if err := runner.Init("go install github.com/projectdiscovery/subfinder/v2/cmd/subfinder@latest"); err != nil {
		return err
	}
	defer runner.Close()

	_, err := runner.Execute(ctx, []string{"-d", root, "-silent"}, func(line []byte) error {
		host := strings.TrimSpace(strings.ToLower(string(line)))
		if host == "" || !rc.Scope.IsInScope(host) {
			return nil
		}
		u.collect(rc, host)
		return nil
	})
	return err
}

// collect añade un host al acumulador y lo emite si es nuevo.
func (u *Unit) collect(rc *domain.RunContext, host string) bool {
	if !rc.AddSubdomain(host) {
		return false
	}
	rc.Emit("subdomain", host)
	return true
}

func (u *Unit) timeout() time.Duration {
	if u.cfg.TimeoutS > 0 {
		return time.Duration(u.cfg.TimeoutS) * time.Second
	}
	return 2 * time.Minute
}
