// internal/platform/ui/presenter.go
package ui

import (
	"time"
)

// Presenter define la interfaz para presentar el progreso de un run de
// reconocimiento de manera visual en la terminal.
type Presenter interface {
	// Start inicia la presentación con información del run
	Start(info RunInfo)

	// StartLayer notifica el inicio de una nueva capa de ejecución
	StartLayer(layer LayerInfo)

	// FinishLayer notifica la finalización de una capa
	FinishLayer(layerNum int, duration time.Duration)

	// StartUnit notifica el inicio de ejecución de un unit
	StartUnit(layerNum int, unitName string)

	// FinishUnit notifica la finalización de un unit
	FinishUnit(unitName string, err error, duration time.Duration)

	// Discovery notifica un descubrimiento deduplicado (category, value)
	Discovery(category, value string)

	// Info muestra un mensaje informativo
	Info(msg string)

	// Warning muestra una advertencia
	Warning(msg string)

	// Error muestra un error
	Error(msg string)

	// Finish finaliza la presentación con estadísticas finales
	Finish(stats RunStats)
}

// RunInfo contiene información inicial del run.
type RunInfo struct {
	Target      string
	Mode        string
	Units       []string
	TotalLayers int
}

// LayerInfo contiene información de una capa de ejecución.
type LayerInfo struct {
	Number      int
	TotalLayers int
	Units       []string
}

// RunStats contiene estadísticas finales del run.
type RunStats struct {
	TotalDuration time.Duration
	Subdomains    int
	OpenPorts     int
	WebURLs       int
	Findings      int
	UnitsFailed   int
}
