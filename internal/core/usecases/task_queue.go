// internal/core/usecases/task_queue.go
package usecases

import (
	"context"

	"noctua/internal/core/domain"
	"noctua/internal/core/ports"
	"noctua/internal/platform/logx"
)

// TaskQueue es el scheduler reactivo de seguimiento: una cola FIFO de
// targets con deduplicación por set de vistos, consumida secuencialmente
// por un único consumidor. Cada target se prueba exactamente una vez; las
// tareas que el decision engine deriva pueden descubrir targets nuevos que
// realimentan la cola.
type TaskQueue struct {
	prober   ports.Prober
	engine   *DecisionEngine
	handlers map[domain.TaskType]ports.TaskHandler
	logger   logx.Logger

	queue []string
	seen  map[string]struct{}
}

// NewTaskQueue crea la cola reactiva con sus handlers registrados por tipo.
func NewTaskQueue(prober ports.Prober, engine *DecisionEngine, handlers []ports.TaskHandler, logger logx.Logger) *TaskQueue {
	byType := make(map[domain.TaskType]ports.TaskHandler, len(handlers))
	for _, h := range handlers {
		byType[h.Type()] = h
	}
	return &TaskQueue{
		prober:   prober,
		engine:   engine,
		handlers: byType,
		logger:   logger.With("component", "task-queue"),
		seen:     make(map[string]struct{}),
	}
}

// Enqueue añade un target si no fue visto antes. Retorna true si entró.
func (q *TaskQueue) Enqueue(target string) bool {
	if target == "" {
		return false
	}
	if _, ok := q.seen[target]; ok {
		return false
	}
	q.seen[target] = struct{}{}
	q.queue = append(q.queue, target)
	return true
}

// Run drena la cola hasta vaciarla o hasta cancelación del contexto.
// Por cada target: un probe, decisión de reglas, despacho de tareas. Un
// handler que falla no detiene el drenaje; targets nuevos descubiertos por
// los handlers se encolan si no fueron vistos.
func (q *TaskQueue) Run(ctx context.Context, rc *domain.RunContext) error {
	processed := 0

	for len(q.queue) > 0 {
		if err := ctx.Err(); err != nil {
			q.logger.Warn("task queue canceled", "pending", len(q.queue))
			return domain.ErrRunCanceled
		}

		target := q.queue[0]
		q.queue = q.queue[1:]
		processed++

		probe, err := q.prober.Probe(ctx, target)
		if err != nil {
			q.logger.Warn("probe failed", "target", target, "error", err.Error())
			continue
		}

		tasks := q.engine.Decide(probe)
		q.logger.Debug("target probed",
			"target", target,
			"status", probe.StatusCode,
			"tasks", len(tasks),
		)

		for _, task := range tasks {
			handler, ok := q.handlers[task.Type]
			if !ok {
				q.logger.Warn("no handler for task type, skipping",
					"type", string(task.Type),
					"target", target,
				)
				continue
			}

			discovered, err := handler.Handle(ctx, rc, task, target)
			if err != nil {
				q.logger.Warn("task handler failed",
					"type", string(task.Type),
					"target", target,
					"error", err.Error(),
				)
				continue
			}

			for _, novel := range discovered {
				if q.Enqueue(novel) {
					rc.Emit("endpoint", novel)
					q.logger.Debug("target discovered", "target", novel, "via", string(task.Type))
				}
			}
		}
	}

	q.logger.Info("task queue drained", "processed", processed)
	return nil
}

// Pending retorna cuántos targets esperan en la cola.
func (q *TaskQueue) Pending() int {
	return len(q.queue)
}
