// internal/core/domain/probe.go
package domain

// ProbeResult es la inteligencia rápida recogida al sondear una URL.
// Se produce una vez por URL y es inmutable.
type ProbeResult struct {
	// StatusCode HTTP observado; 0 si el probe falló a nivel de transporte
	StatusCode int

	// Title contenido del <title> de la página, si lo hay
	Title string

	// Server valor de la cabecera Server
	Server string

	// ContentLength longitud del cuerpo en bytes
	ContentLength int

	// Technologies etiquetas de tecnología detectadas (WordPress, Jenkins, ...)
	Technologies []string
}

// HasTechnology indica si el probe detectó la tecnología dada.
func (p ProbeResult) HasTechnology(tech string) bool {
	for _, t := range p.Technologies {
		if t == tech {
			return true
		}
	}
	return false
}

// TaskType identifica la acción de seguimiento propuesta por el
// decision engine para un ProbeResult.
type TaskType string

const (
	// TaskBypass intento de evasión de un 403
	TaskBypass TaskType = "403_BYPASS"

	// TaskTemplateScan escaneo de templates dirigido por tecnología
	TaskTemplateScan TaskType = "TEMPLATE_SCAN"

	// TaskWPScan escaneo específico de WordPress
	TaskWPScan TaskType = "WP_SCAN"

	// TaskContentAnalysis análisis de contenido (scripts, enlaces)
	TaskContentAnalysis TaskType = "CONTENT_ANALYSIS"

	// TaskFuzzing fuzzing ligero de rutas
	TaskFuzzing TaskType = "FUZZING"
)

// ScanTask es una tarea de seguimiento propuesta por el decision engine.
// Se consume exactamente una vez por el dispatcher de la task queue.
type ScanTask struct {
	Type TaskType
	Args []string
}
