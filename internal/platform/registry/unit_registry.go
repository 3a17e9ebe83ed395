// internal/platform/registry/unit_registry.go
package registry

import (
	"fmt"
	"sync"

	"noctua/internal/core/ports"
	"noctua/internal/platform/config"
	"noctua/internal/platform/httpclient"
	"noctua/internal/platform/logx"
)

// UnitRegistry gestiona el registro y construcción de units de
// reconocimiento. Implementa el patrón Registry + Factory para desacoplar
// la creación de units del código de aplicación. El orden de registro se
// conserva: es el orden de declaración que consume el scheduler.
type UnitRegistry struct {
	mu        sync.RWMutex
	factories map[string]UnitFactory
	metadata  map[string]ports.UnitMetadata
	order     []string
	logger    logx.Logger
}

// Deps agrupa las dependencias compartidas que reciben las factories.
type Deps struct {
	Config config.Config
	Logger logx.Logger
	HTTP   *httpclient.Client
}

// UnitFactory es una función que crea una instancia de Unit.
type UnitFactory func(cfg config.UnitConfig, deps Deps) (ports.Unit, error)

// globalRegistry es la instancia global del registry.
var globalRegistry *UnitRegistry
var once sync.Once

// Global retorna la instancia global del registry.
func Global() *UnitRegistry {
	once.Do(func() {
		globalRegistry = NewUnitRegistry(logx.New())
	})
	return globalRegistry
}

// NewUnitRegistry crea un nuevo registry de units.
func NewUnitRegistry(logger logx.Logger) *UnitRegistry {
	return &UnitRegistry{
		factories: make(map[string]UnitFactory),
		metadata:  make(map[string]ports.UnitMetadata),
		logger:    logger.With("component", "unit-registry"),
	}
}

// Register registra una unit factory con su metadata.
// Típicamente llamado desde init() de cada unit package.
func (r *UnitRegistry) Register(name string, factory UnitFactory, meta ports.UnitMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return fmt.Errorf("unit name cannot be empty")
	}

	if factory == nil {
		return fmt.Errorf("factory cannot be nil for unit %s", name)
	}

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("unit %s is already registered", name)
	}

	r.factories[name] = factory
	r.metadata[name] = meta
	r.order = append(r.order, name)
	r.logger.Debug("unit registered", "name", name, "depends_on", meta.DependsOn)

	return nil
}

// MustRegister registra una unit y hace panic si falla. Pensado para init().
func (r *UnitRegistry) MustRegister(name string, factory UnitFactory, meta ports.UnitMetadata) {
	if err := r.Register(name, factory, meta); err != nil {
		panic(err)
	}
}

// Build construye todas las units habilitadas según la configuración,
// en orden de declaración. Una unit configurada pero no registrada se
// salta con warning; un error de factory no aborta el resto.
func (r *UnitRegistry) Build(deps Deps) ([]ports.Unit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if deps.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	units := make([]ports.Unit, 0, len(r.order))
	buildErrors := make([]error, 0)

	for _, name := range r.order {
		cfg, ok := deps.Config.Units[name]
		if !ok || !cfg.Enabled {
			r.logger.Debug("unit disabled, skipping", "unit", name)
			continue
		}

		factory := r.factories[name]
		unit, err := factory(cfg, deps)
		if err != nil {
			buildErrors = append(buildErrors, fmt.Errorf("failed to build unit %s: %w", name, err))
			continue
		}

		units = append(units, unit)
		r.logger.Debug("unit built", "name", name)
	}

	if len(buildErrors) > 0 {
		// Log errors pero no fallar completamente
		for _, err := range buildErrors {
			r.logger.Warn("unit build error", "error", err.Error())
		}
	}

	if len(units) == 0 {
		return nil, fmt.Errorf("no units could be built")
	}

	deps.Logger.Info("units built", "count", len(units), "registered", len(r.order))
	return units, nil
}

// List retorna los nombres de todas las units registradas, en orden de
// declaración.
func (r *UnitRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// GetMetadata retorna el metadata de una unit.
func (r *UnitRegistry) GetMetadata(name string) (ports.UnitMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, exists := r.metadata[name]
	return meta, exists
}

// IsRegistered verifica si una unit está registrada.
func (r *UnitRegistry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.factories[name]
	return exists
}

// Clear elimina todas las units registradas (útil para testing).
func (r *UnitRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories = make(map[string]UnitFactory)
	r.metadata = make(map[string]ports.UnitMetadata)
	r.order = nil
}
