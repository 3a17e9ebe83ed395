// internal/core/usecases/runner.go
package usecases

import (
	"context"
	"time"

	"noctua/internal/core/domain"
	"noctua/internal/core/ports"
	"noctua/internal/platform/config"
	"noctua/internal/platform/errors"
	"noctua/internal/platform/logx"
	"noctua/internal/platform/snapshot"
	"noctua/internal/platform/ui"
)

// Runner es el caso de uso de más alto nivel: valida el target, construye
// el scope, aplica la salvaguarda de red interna, resuelve resume desde
// snapshot, ejecuta el scheduler de capas y la fase reactiva, y persiste
// el estado final.
type Runner struct {
	cfg       config.Config
	units     []ports.Unit
	resolver  domain.AddressResolver
	store     *snapshot.Store
	prober    ports.Prober
	handlers  []ports.TaskHandler
	sink      domain.EventSink
	presenter ui.Presenter
	logger    logx.Logger
}

// RunnerOptions configura el runner.
type RunnerOptions struct {
	Config    config.Config
	Units     []ports.Unit
	Resolver  domain.AddressResolver
	Store     *snapshot.Store
	Prober    ports.Prober
	Handlers  []ports.TaskHandler
	Sink      domain.EventSink
	Presenter ui.Presenter
	Logger    logx.Logger
}

// NewRunner crea el runner.
func NewRunner(opts RunnerOptions) *Runner {
	if opts.Logger == nil {
		opts.Logger = logx.New()
	}
	if opts.Presenter == nil {
		opts.Presenter = ui.NewNoopPresenter()
	}
	return &Runner{
		cfg:       opts.Config,
		units:     opts.Units,
		resolver:  opts.Resolver,
		store:     opts.Store,
		prober:    opts.Prober,
		handlers:  opts.Handlers,
		sink:      opts.Sink,
		presenter: opts.Presenter,
		logger:    opts.Logger.With("component", "runner"),
	}
}

// Run ejecuta el run completo para el target configurado.
func (r *Runner) Run(ctx context.Context) (*domain.RunResult, error) {
	startTime := time.Now()

	mode := domain.NormalizeMode(r.cfg.Mode)
	scope, err := domain.BuildScope(r.cfg.Target, mode, r.resolver)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build scope")
	}

	// Salvaguarda: targets de loopback o link-local solo con opt-in explícito.
	if scope.IsInternal() && !r.cfg.Safety.AllowInternal {
		r.logger.Err(errors.ErrUnsafeTarget,
			"target", r.cfg.Target,
			"ip", scope.IP,
		)
		return nil, errors.ErrUnsafeTarget
	}

	rc, resumed := r.resumeOrStart(scope)
	if r.sink != nil {
		rc.SetEventSink(r.sink)
	}
	rc.AddObserver(func(category, value string) {
		r.presenter.Discovery(category, value)
	})

	unitNames := make([]string, 0, len(r.units))
	for _, u := range r.units {
		unitNames = append(unitNames, u.Name())
	}

	scheduler := NewScheduler(SchedulerOptions{
		Units:        r.units,
		Logger:       r.logger,
		Presenter:    r.presenter,
		MaxWorkers:   r.cfg.Scheduler.MaxWorkers,
		LayerTimeout: r.cfg.LayerTimeout(),
	})

	layers, err := scheduler.BuildLayers(r.units)
	if err != nil {
		return nil, err
	}

	r.presenter.Start(ui.RunInfo{
		Target:      r.cfg.Target,
		Mode:        string(mode),
		Units:       unitNames,
		TotalLayers: len(layers),
	})

	if resumed {
		r.presenter.Info("resuming from snapshot " + r.store.Path())
	}

	if err := scheduler.Run(ctx, rc); err != nil {
		// El estado acumulado hasta la cancelación se persiste igualmente.
		r.saveSnapshot(rc)
		return nil, err
	}

	// Fase reactiva: los web URLs descubiertos alimentan la cola de
	// seguimiento; cada probe puede derivar tareas y targets nuevos.
	if r.prober != nil && mode != domain.ModePassive {
		engine := NewDecisionEngine(r.logger)
		queue := NewTaskQueue(r.prober, engine, r.handlers, r.logger)
		for _, url := range rc.WebURLs() {
			queue.Enqueue(url)
		}
		if err := queue.Run(ctx, rc); err != nil {
			r.logger.Warn("reactive phase interrupted", "error", err.Error())
		}
	}

	r.saveSnapshot(rc)

	result := rc.Result()
	totalDuration := time.Since(startTime)

	r.presenter.Finish(ui.RunStats{
		TotalDuration: totalDuration,
		Subdomains:    len(result.Subdomains),
		OpenPorts:     len(result.BasePorts),
		WebURLs:       len(result.WebURLs),
		Findings:      len(result.Findings),
		UnitsFailed:   len(result.UnitErrors()),
	})

	r.logger.Info("run finished",
		"run_id", rc.ID,
		"duration_ms", totalDuration.Milliseconds(),
		"subdomains", len(result.Subdomains),
		"web_urls", len(result.WebURLs),
	)

	return result, nil
}

// resumeOrStart carga el snapshot previo si resume está activo y el
// snapshot pertenece al mismo scope; en cualquier otro caso arranca de cero.
func (r *Runner) resumeOrStart(scope domain.Scope) (*domain.RunContext, bool) {
	if !r.cfg.Resume || r.store == nil {
		return domain.NewRunContext(scope), false
	}

	snap, err := r.store.Load()
	if err != nil {
		if !errors.IsNoSnapshot(err) {
			r.logger.Warn("snapshot load failed", "error", err.Error())
		}
		return domain.NewRunContext(scope), false
	}

	if snap.Scope.Registered != scope.Registered || snap.Scope.Host != scope.Host {
		r.logger.Warn("snapshot belongs to a different scope, starting fresh",
			"snapshot_host", snap.Scope.Host,
			"target_host", scope.Host,
		)
		return domain.NewRunContext(scope), false
	}

	rc := snap.Restore()
	rc.Scope = scope
	r.logger.Info("resumed from snapshot",
		"run_id", rc.ID,
		"subdomains", len(snap.Subdomains),
		"web_urls", len(snap.WebURLs),
	)
	return rc, true
}

// saveSnapshot persiste el estado del run. Un fallo de persistencia nunca
// invalida el run en memoria.
func (r *Runner) saveSnapshot(rc *domain.RunContext) {
	if r.store == nil {
		return
	}
	if _, err := r.store.Save(rc, r.cfg); err != nil {
		r.logger.Warn("snapshot save failed", "error", err.Error())
	}
}
