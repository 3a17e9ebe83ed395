// internal/platform/ui/noop_presenter.go
package ui

import "time"

// NoopPresenter es un presenter que descarta toda salida. Se usa en modo
// quiet y en tests.
type NoopPresenter struct{}

// NewNoopPresenter crea un presenter silencioso.
func NewNoopPresenter() *NoopPresenter {
	return &NoopPresenter{}
}

func (n *NoopPresenter) Start(RunInfo)                           {}
func (n *NoopPresenter) StartLayer(LayerInfo)                    {}
func (n *NoopPresenter) FinishLayer(int, time.Duration)          {}
func (n *NoopPresenter) StartUnit(int, string)                   {}
func (n *NoopPresenter) FinishUnit(string, error, time.Duration) {}
func (n *NoopPresenter) Discovery(string, string)                {}
func (n *NoopPresenter) Info(string)                             {}
func (n *NoopPresenter) Warning(string)                          {}
func (n *NoopPresenter) Error(string)                            {}
func (n *NoopPresenter) Finish(RunStats)                         {}
