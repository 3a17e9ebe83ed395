// internal/units/webprobe/webprobe.go
package webprobe

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"noctua/internal/core/domain"
	"noctua/internal/core/ports"
	"noctua/internal/platform/config"
	"noctua/internal/platform/logx"
	"noctua/internal/platform/registry"
)

func init() {
	registry.Global().MustRegister(
		"web_probe",
		func(cfg config.UnitConfig, deps registry.Deps) (ports.Unit, error) {
			workers := deps.Config.Concurrency.ProbeWorkers
			return New(cfg, NewProber(deps.HTTP, deps.Logger), workers, deps.Logger), nil
		},
		ports.UnitMetadata{
			Name:        "web_probe",
			Description: "HTTP intel probe over discovered web URLs",
			DependsOn:   []string{"web_services"},
		},
	)
}

// Unit lanza un probe HTTP sobre cada URL web descubierta y acumula los
// hallazgos como findings legibles. Los fallos individuales se descartan
// en silencio: un host caído no es un hallazgo.
type Unit struct {
	cfg     config.UnitConfig
	prober  ports.Prober
	workers int
	logger  logx.Logger
}

// New crea el unit de probing web.
func New(cfg config.UnitConfig, prober ports.Prober, workers int, logger logx.Logger) *Unit {
	if workers <= 0 {
		workers = 10
	}
	return &Unit{
		cfg:     cfg,
		prober:  prober,
		workers: workers,
		logger:  logger.With("unit", "web_probe"),
	}
}

func (u *Unit) Name() string        { return "web_probe" }
func (u *Unit) Enabled() bool       { return u.cfg.Enabled }
func (u *Unit) DependsOn() []string { return []string{"web_services"} }

// Run prueba todas las URLs acumuladas con concurrencia acotada.
func (u *Unit) Run(ctx context.Context, rc *domain.RunContext) error {
	if rc.Scope.Mode == domain.ModePassive {
		u.logger.Debug("passive mode, skipping probes")
		return nil
	}

	urls := rc.WebURLs()
	if len(urls) == 0 {
		u.logger.Debug("no web URLs to probe")
		return nil
	}

	u.logger.Info("probing web URLs", "count", len(urls), "workers", u.workers)

	sem := semaphore.NewWeighted(int64(u.workers))
	var wg sync.WaitGroup
	probed := 0
	var mu sync.Mutex

	for _, url := range urls {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			defer sem.Release(1)

			result, err := u.prober.Probe(ctx, url)
			if err != nil {
				u.logger.Debug("probe failed", "url", url, "error", err.Error())
				return
			}

			finding := formatFinding(url, result)
			rc.AddFindings(finding)
			rc.Emit("probe", finding)

			mu.Lock()
			probed++
			mu.Unlock()
		}(url)
	}

	wg.Wait()
	u.logger.Info("probing completed", "probed", probed, "total", len(urls))
	return nil
}

// formatFinding arma una línea legible con el intel del probe.
func formatFinding(url string, p domain.ProbeResult) string {
	parts := []string{fmt.Sprintf("%d %s", p.StatusCode, url)}
	if p.Title != "" {
		parts = append(parts, fmt.Sprintf("title=%q", p.Title))
	}
	if p.Server != "" {
		parts = append(parts, "server="+p.Server)
	}
	if len(p.Technologies) > 0 {
		parts = append(parts, "tech="+strings.Join(p.Technologies, ","))
	}
	return strings.Join(parts, " ")
}
