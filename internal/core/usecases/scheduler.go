// internal/core/usecases/scheduler.go
package usecases

import (
	"context"
	"time"

	"noctua/internal/core/domain"
	"noctua/internal/core/ports"
	"noctua/internal/platform/logx"
	"noctua/internal/platform/ui"
)

// Layer agrupa units cuyas dependencias quedaron satisfechas por capas
// anteriores. Los units de una misma capa se ejecutan concurrentemente.
type Layer struct {
	Units []ports.Unit
}

// Names retorna los nombres de los units de la capa.
func (l Layer) Names() []string {
	names := make([]string, 0, len(l.Units))
	for _, u := range l.Units {
		names = append(names, u.Name())
	}
	return names
}

// Scheduler coordina la ejecución de units en capas secuenciales derivadas
// del grafo de dependencias. Las capas corren en orden; dentro de una capa
// los units corren en paralelo con concurrencia acotada.
//
// Un unit que falla nunca aborta el run: su error se captura y el resto de
// units continúa con los acumuladores que existan (fail-soft).
type Scheduler struct {
	units []ports.Unit

	logger    logx.Logger
	presenter ui.Presenter

	// Configuración de ejecución
	maxWorkers   int
	layerTimeout time.Duration

	// Capas cacheadas por BuildLayers. Run las reutiliza para no
	// reconstruir el grafo (con sus warnings de aristas descartadas) una
	// segunda vez por run.
	layers  []Layer
	skipped []string
	built   bool
}

// SchedulerOptions configura el scheduler.
type SchedulerOptions struct {
	Units        []ports.Unit
	Logger       logx.Logger
	Presenter    ui.Presenter
	MaxWorkers   int
	LayerTimeout time.Duration
}

// unitExecution es el resultado de ejecutar un unit individual.
type unitExecution struct {
	Name     string
	Err      error
	Duration time.Duration
}

// NewScheduler crea una nueva instancia del scheduler.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 4
	}
	if opts.Logger == nil {
		opts.Logger = logx.New()
	}
	if opts.Presenter == nil {
		opts.Presenter = ui.NewNoopPresenter()
	}

	return &Scheduler{
		units:        opts.Units,
		logger:       opts.Logger.With("component", "scheduler"),
		presenter:    opts.Presenter,
		maxWorkers:   opts.MaxWorkers,
		layerTimeout: opts.LayerTimeout,
	}
}

// BuildLayers filtra los units deshabilitados y construye las capas mediante
// topological sort del grafo de dependencias. Las aristas hacia un unit
// deshabilitado se descartan igual que las de un unit ausente. El resultado
// depende solo del conjunto de units y sus declaraciones, nunca del orden de
// llegada de goroutines, y queda cacheado para el Run posterior.
func (s *Scheduler) BuildLayers(units []ports.Unit) ([]Layer, error) {
	if len(units) == 0 {
		return nil, domain.ErrNoUnitsEnabled
	}

	enabled := make([]ports.Unit, 0, len(units))
	skipped := make([]string, 0)
	for _, u := range units {
		if !u.Enabled() {
			s.logger.Info("unit disabled, skipping", "unit", u.Name())
			skipped = append(skipped, u.Name())
			continue
		}
		enabled = append(enabled, u)
	}
	if len(enabled) == 0 {
		return nil, domain.ErrNoUnitsEnabled
	}

	s.logger.Info("building layers from dependency graph", "units", len(enabled))

	graph := s.buildDependencyGraph(enabled)
	layers := s.topologicalSortByLevels(graph)

	s.logger.Info("layers built",
		"layer_count", len(layers),
		"total_units", len(enabled),
		"skipped", len(skipped),
	)

	for i, layer := range layers {
		s.logger.Debug("layer details", "layer", i, "units", layer.Names())
	}

	s.layers = layers
	s.skipped = skipped
	s.built = true

	return layers, nil
}

// Run ejecuta todas las capas en orden sobre el contexto de run compartido.
// Al terminar, si hubo fallos aislados, deja el detalle en la clave de
// extensión unit_errors del contexto. El error retornado solo es no-nil
// cuando el run entero no pudo ejecutarse (cancelación, cero units).
func (s *Scheduler) Run(ctx context.Context, rc *domain.RunContext) error {
	layers := s.layers
	if !s.built {
		var err error
		layers, err = s.BuildLayers(s.units)
		if err != nil {
			return err
		}
	}

	// Units deshabilitados quedan registrados con duración cero.
	for _, name := range s.skipped {
		rc.RecordTiming(name, 0)
	}

	s.logger.Info("starting run",
		"run_id", rc.ID,
		"target", rc.Scope.Host,
		"mode", rc.Scope.Mode,
		"layers", len(layers),
		"workers", s.maxWorkers,
	)

	unitErrors := make([]domain.UnitError, 0)

	for i, layer := range layers {
		if err := ctx.Err(); err != nil {
			s.recordUnitErrors(rc, unitErrors)
			return domain.ErrRunCanceled
		}

		layerStart := time.Now()
		s.logger.Info("executing layer", "layer", i, "units", layer.Names())

		s.presenter.StartLayer(ui.LayerInfo{
			Number:      i + 1,
			TotalLayers: len(layers),
			Units:       layer.Names(),
		})

		executions := s.executeLayer(ctx, i, layer, rc)

		for _, exec := range executions {
			rc.RecordTiming(exec.Name, exec.Duration)
			if exec.Err != nil {
				unitErrors = append(unitErrors, domain.UnitError{
					Unit:  exec.Name,
					Error: exec.Err.Error(),
				})
			}
		}

		layerDuration := time.Since(layerStart)
		s.logger.Info("layer completed",
			"layer", i,
			"duration_ms", layerDuration.Milliseconds(),
		)
		s.presenter.FinishLayer(i+1, layerDuration)
	}

	s.recordUnitErrors(rc, unitErrors)

	s.logger.Info("run completed",
		"run_id", rc.ID,
		"unit_errors", len(unitErrors),
	)

	return nil
}

// executeLayer ejecuta los units de una capa con concurrencia limitada por
// semáforo. Si layerTimeout está configurado, acota la capa entera con un
// deadline: units que lo excedan reciben cancelación via contexto.
func (s *Scheduler) executeLayer(ctx context.Context, layerNum int, layer Layer, rc *domain.RunContext) []unitExecution {
	layerCtx := ctx
	if s.layerTimeout > 0 {
		var cancel context.CancelFunc
		layerCtx, cancel = context.WithTimeout(ctx, s.layerTimeout)
		defer cancel()
	}

	sem := make(chan struct{}, s.maxWorkers)
	results := make(chan unitExecution, len(layer.Units))

	for _, unit := range layer.Units {
		go func(u ports.Unit) {
			sem <- struct{}{}
			defer func() { <-sem }()

			results <- s.executeUnit(layerCtx, layerNum, u, rc)
		}(unit)
	}

	executions := make([]unitExecution, 0, len(layer.Units))
	for i := 0; i < len(layer.Units); i++ {
		executions = append(executions, <-results)
	}
	close(results)

	return executions
}

// executeUnit ejecuta un unit individual con captura de pánico y timing.
func (s *Scheduler) executeUnit(ctx context.Context, layerNum int, unit ports.Unit, rc *domain.RunContext) (exec unitExecution) {
	startTime := time.Now()
	name := unit.Name()

	exec.Name = name

	defer func() {
		exec.Duration = time.Since(startTime)
		if r := recover(); r != nil {
			exec.Err = domain.ErrUnitFailed
			s.logger.Err(domain.ErrUnitFailed, "unit", name, "panic", r)
		}
	}()

	s.logger.Debug("executing unit", "unit", name)
	s.presenter.StartUnit(layerNum+1, name)

	err := unit.Run(ctx, rc)
	exec.Err = err
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Warn("unit failed", "unit", name, "error", err.Error())
	} else {
		s.logger.Debug("unit completed",
			"unit", name,
			"duration_ms", duration.Milliseconds(),
		)
	}
	s.presenter.FinishUnit(name, err, duration)

	return exec
}

// recordUnitErrors deja los errores capturados en el mapa de extensiones.
// Ausencia de la clave significa cero fallos.
func (s *Scheduler) recordUnitErrors(rc *domain.RunContext, unitErrors []domain.UnitError) {
	if len(unitErrors) == 0 {
		return
	}
	rc.SetExtra(domain.ExtraKeyUnitErrors, unitErrors)
}
