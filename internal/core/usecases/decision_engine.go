// internal/core/usecases/decision_engine.go
package usecases

import (
	"noctua/internal/core/domain"
	"noctua/internal/platform/logx"
)

// decisionRule evalúa un resultado de probe y, si aplica, produce una tarea
// de seguimiento.
type decisionRule struct {
	Name    string
	Matches func(domain.ProbeResult) bool
	Task    func(domain.ProbeResult) domain.ScanTask
}

// DecisionEngine deriva tareas de seguimiento a partir de resultados de
// probe. Las reglas se evalúan todas en orden: un mismo probe puede disparar
// varias tareas. El engine es puro, no ejecuta nada.
type DecisionEngine struct {
	rules  []decisionRule
	logger logx.Logger
}

// NewDecisionEngine crea el engine con el conjunto de reglas por defecto.
func NewDecisionEngine(logger logx.Logger) *DecisionEngine {
	e := &DecisionEngine{
		logger: logger.With("component", "decision-engine"),
	}
	e.rules = []decisionRule{
		{
			Name: "forbidden-bypass",
			Matches: func(p domain.ProbeResult) bool {
				return p.StatusCode == 403
			},
			Task: func(domain.ProbeResult) domain.ScanTask {
				return domain.ScanTask{Type: domain.TaskBypass}
			},
		},
		{
			Name: "jenkins-templates",
			Matches: func(p domain.ProbeResult) bool {
				return p.HasTechnology("Jenkins")
			},
			Task: func(domain.ProbeResult) domain.ScanTask {
				return domain.ScanTask{Type: domain.TaskTemplateScan, Args: []string{"jenkins-cves"}}
			},
		},
		{
			Name: "wordpress-scan",
			Matches: func(p domain.ProbeResult) bool {
				return p.HasTechnology("WordPress")
			},
			Task: func(domain.ProbeResult) domain.ScanTask {
				return domain.ScanTask{Type: domain.TaskWPScan}
			},
		},
		{
			Name: "content-analysis",
			Matches: func(p domain.ProbeResult) bool {
				return p.StatusCode == 200 && p.ContentLength > 0
			},
			Task: func(domain.ProbeResult) domain.ScanTask {
				return domain.ScanTask{Type: domain.TaskContentAnalysis}
			},
		},
		{
			Name: "fuzzing",
			Matches: func(p domain.ProbeResult) bool {
				return p.StatusCode == 200
			},
			Task: func(domain.ProbeResult) domain.ScanTask {
				return domain.ScanTask{Type: domain.TaskFuzzing}
			},
		},
	}
	return e
}

// Decide evalúa todas las reglas contra un resultado de probe y retorna las
// tareas derivadas, en el orden de las reglas.
func (e *DecisionEngine) Decide(probe domain.ProbeResult) []domain.ScanTask {
	tasks := make([]domain.ScanTask, 0)
	for _, rule := range e.rules {
		if rule.Matches(probe) {
			e.logger.Debug("rule matched",
				"rule", rule.Name,
				"status", probe.StatusCode,
			)
			tasks = append(tasks, rule.Task(probe))
		}
	}
	return tasks
}
