// internal/units/templscan/templscan.go
package templscan

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"noctua/internal/core/domain"
	"noctua/internal/core/ports"
	"noctua/internal/platform/config"
	"noctua/internal/platform/logx"
	"noctua/internal/platform/registry"
	"noctua/internal/units/common"
)

func init() {
	registry.Global().MustRegister(
		"nuclei",
		func(cfg config.UnitConfig, deps registry.Deps) (ports.Unit, error) {
			return New(cfg, deps.Logger), nil
		},
		ports.UnitMetadata{
			Name:        "nuclei",
			Description: "Template-based vulnerability scan over web URLs",
			DependsOn:   []string{"web_services"},
		},
	)
}

// nucleiEvent is the subset of the nuclei JSONL output we extract findings
// from. The full raw line is preserved separately.
type nucleiEvent struct {
	TemplateID string `json:"template-id"`
	Host       string `json:"host"`
	MatchedAt  string `json:"matched-at"`
	Info       struct {
		Name     string `json:"name"`
		Severity string `json:"severity"`
	} `json:"info"`
}

// Unit ejecuta nuclei contra las URLs web acumuladas. El stdout JSONL se
// conserva crudo en el contexto y cada evento parseado se convierte en un
// finding legible. Solo corre en modo active.
type Unit struct {
	cfg    config.UnitConfig
	logger logx.Logger
}

// New crea el unit de escaneo por templates.
func New(cfg config.UnitConfig, logger logx.Logger) *Unit {
	return &Unit{
		cfg:    cfg,
		logger: logger.With("unit", "nuclei"),
	}
}

func (u *Unit) Name() string        { return "nuclei" }
func (u *Unit) Enabled() bool       { return u.cfg.Enabled }
func (u *Unit) DependsOn() []string { return []string{"web_services"} }

// Run escribe las URLs a un fichero temporal y lanza nuclei sobre la lista.
func (u *Unit) Run(ctx context.Context, rc *domain.RunContext) error {
	if rc.Scope.Mode != domain.ModeActive {
		u.logger.Debug("not in active mode, skipping template scan")
		return nil
	}

	urls := rc.WebURLs()
	if len(urls) == 0 {
		u.logger.Debug("no web URLs to scan")
		return nil
	}

	bin := u.cfg.BinPath
	if bin == "" {
		bin = "nuclei"
	}

	runner := common.NewCLIRunner(u.logger, common.CLIConfig{
		UnitName: "nuclei",
		ExecPath: bin,
		Timeout:  u.timeout(),
	})
	if err := runner.Init("go install github.com/projectdiscovery/nuclei/v3/cmd/nuclei@latest"); err != nil {
		return err
	}
	defer runner.Close()

	listFile, err := writeTargetList(urls)
	if err != nil {
		return err
	}
	defer os.Remove(listFile)

	args := u.buildArgs(listFile)
	u.logger.Info("running template scan", "targets", len(urls))

	events := 0
	_, execErr := runner.Execute(ctx, args, func(line []byte) error {
		if len(line) == 0 {
			return nil
		}
		rc.AppendVulnRaw(string(line) + "\n")

		var ev nucleiEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil
		}
		events++

		finding := formatEvent(ev)
		rc.AddFindings(finding)
		rc.Emit("vuln", finding)
		return nil
	})

	if execErr != nil && events == 0 {
		return execErr
	}
	if execErr != nil {
		// Con eventos parciales el run sigue siendo útil.
		u.logger.Warn("nuclei exited with error after partial results", "events", events)
	}

	u.logger.Info("template scan completed", "events", events)
	return nil
}

// buildArgs arma la invocación según la configuración del unit.
func (u *Unit) buildArgs(listFile string) []string {
	args := []string{"-l", listFile, "-jsonl", "-silent"}
	if u.cfg.Severity != "" {
		args = append(args, "-severity", u.cfg.Severity)
	}
	if u.cfg.Tags != "" {
		args = append(args, "-tags", u.cfg.Tags)
	}
	for _, tpl := range u.cfg.Templates {
		args = append(args, "-t", tpl)
	}
	return args
}

func (u *Unit) timeout() time.Duration {
	if u.cfg.TimeoutS > 0 {
		return time.Duration(u.cfg.TimeoutS) * time.Second
	}
	return 5 * time.Minute
}

// writeTargetList vuelca las URLs a un fichero temporal para -l.
func writeTargetList(urls []string) (string, error) {
	f, err := os.CreateTemp("", "noctua-targets-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create target list: %w", err)
	}
	if _, err := f.WriteString(strings.Join(urls, "\n") + "\n"); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write target list: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close target list: %w", err)
	}
	return f.Name(), nil
}

// formatEvent arma una línea legible a partir de un evento de nuclei.
func formatEvent(ev nucleiEvent) string {
	target := ev.MatchedAt
	if target == "" {
		target = ev.Host
	}
	sev := ev.Info.Severity
	if sev == "" {
		sev = "unknown"
	}
	name := ev.Info.Name
	if name == "" {
		name = ev.TemplateID
	}
	return fmt.Sprintf("[%s] %s: %s (%s)", sev, ev.TemplateID, name, target)
}
