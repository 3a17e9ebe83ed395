// internal/platform/ui/pterm_presenter.go
package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"
)

// PTermPresenter implementa Presenter usando la biblioteca pterm
// para renderizar colores y símbolos en la terminal.
type PTermPresenter struct {
	mu sync.Mutex

	totalLayers  int
	runStartTime time.Time

	// contadores de descubrimiento en vivo por categoría
	discovered map[string]int
}

// NewPTermPresenter crea una nueva instancia del presenter con pterm.
func NewPTermPresenter() *PTermPresenter {
	return &PTermPresenter{
		discovered: make(map[string]int),
	}
}

// Start inicia la presentación mostrando el header del run.
func (p *PTermPresenter) Start(info RunInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.totalLayers = info.TotalLayers
	p.runStartTime = time.Now()

	pterm.DefaultHeader.
		WithBackgroundStyle(pterm.NewStyle(pterm.BgCyan)).
		WithTextStyle(pterm.NewStyle(pterm.FgBlack)).
		Println("Noctua - Reconnaissance Orchestrator")

	pterm.Println()

	infoPanel := pterm.DefaultBox.
		WithTitle("Run Configuration").
		WithTitleTopCenter().
		WithRightPadding(4).
		WithLeftPadding(4).
		WithBoxStyle(pterm.NewStyle(pterm.FgCyan))

	runInfo := fmt.Sprintf("Target: %s\n", pterm.Cyan(info.Target))
	runInfo += fmt.Sprintf("Mode: %s\n", pterm.Yellow(info.Mode))
	runInfo += fmt.Sprintf("Units: %s\n", strings.Join(info.Units, ", "))
	runInfo += fmt.Sprintf("Layers: %d", info.TotalLayers)

	infoPanel.Println(runInfo)
	pterm.Println()
}

// StartLayer notifica el inicio de una nueva capa.
func (p *PTermPresenter) StartLayer(layer LayerInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()

	title := fmt.Sprintf("Layer %d/%d: %s",
		layer.Number,
		layer.TotalLayers,
		pterm.Cyan(strings.Join(layer.Units, ", ")),
	)
	pterm.DefaultSection.WithLevel(2).Println(title)
}

// FinishLayer notifica la finalización de una capa.
func (p *PTermPresenter) FinishLayer(layerNum int, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pterm.Println(pterm.Gray(fmt.Sprintf("  layer %d done in %s", layerNum, duration.Round(time.Millisecond))))
	pterm.Println()
}

// StartUnit notifica el inicio de ejecución de un unit.
func (p *PTermPresenter) StartUnit(layerNum int, unitName string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pterm.Println(fmt.Sprintf("  %s %s", pterm.Cyan("▶"), unitName))
}

// FinishUnit notifica la finalización de un unit.
func (p *PTermPresenter) FinishUnit(unitName string, err error, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rounded := duration.Round(time.Millisecond)
	if err != nil {
		pterm.Println(fmt.Sprintf("  %s %s (%s): %s",
			pterm.Red("✗"), unitName, rounded, pterm.Red(err.Error())))
		return
	}
	pterm.Println(fmt.Sprintf("  %s %s (%s)", pterm.Green("✓"), unitName, rounded))
}

// Discovery actualiza los contadores en vivo por categoría.
func (p *PTermPresenter) Discovery(category, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.discovered[category]++
	pterm.Println(fmt.Sprintf("    %s %s", pterm.Gray("["+category+"]"), value))
}

// Info muestra un mensaje informativo.
func (p *PTermPresenter) Info(msg string) {
	pterm.Info.Println(msg)
}

// Warning muestra una advertencia.
func (p *PTermPresenter) Warning(msg string) {
	pterm.Warning.Println(msg)
}

// Error muestra un error.
func (p *PTermPresenter) Error(msg string) {
	pterm.Error.Println(msg)
}

// Finish finaliza la presentación con estadísticas del run.
func (p *PTermPresenter) Finish(stats RunStats) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pterm.Println()
	pterm.DefaultSection.Println("Run Summary")

	data := pterm.TableData{
		{"Metric", "Value"},
		{"Duration", stats.TotalDuration.Round(time.Millisecond).String()},
		{"Subdomains", fmt.Sprintf("%d", stats.Subdomains)},
		{"Open ports", fmt.Sprintf("%d", stats.OpenPorts)},
		{"Web URLs", fmt.Sprintf("%d", stats.WebURLs)},
		{"Findings", fmt.Sprintf("%d", stats.Findings)},
		{"Units failed", fmt.Sprintf("%d", stats.UnitsFailed)},
	}

	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	pterm.Println()
}
