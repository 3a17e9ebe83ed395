// internal/core/ports/prober.go
package ports

import (
	"context"

	"noctua/internal/core/domain"
)

// Prober sondea una URL y produce inteligencia rápida sobre ella.
// Un fallo de transporte no es error: retorna un ProbeResult con
// StatusCode 0 y sin tecnologías.
type Prober interface {
	Probe(ctx context.Context, url string) (domain.ProbeResult, error)
}

// TaskHandler ejecuta un tipo concreto de ScanTask contra un target.
// Retorna los endpoints nuevos descubiertos durante la tarea (si los hay)
// para que la task queue los encole.
type TaskHandler interface {
	// Type retorna el tipo de tarea que este handler atiende
	Type() domain.TaskType

	// Handle ejecuta la tarea contra la URL objetivo. Los hallazgos se
	// registran directamente en el contexto de run.
	Handle(ctx context.Context, rc *domain.RunContext, task domain.ScanTask, target string) ([]string, error)
}
