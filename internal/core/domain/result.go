// internal/core/domain/result.go
package domain

import "time"

// RunResult es el objeto estructurado que se retorna al caller al final
// de un run: todo lo recolectado más el manifiesto de errores por unit
// (bajo Extra[ExtraKeyUnitErrors], ausente si no hubo).
type RunResult struct {
	RunID      string                   `json:"run_id"`
	Scope      Scope                    `json:"scope"`
	Subdomains []string                 `json:"subdomains"`
	BasePorts  map[int]string           `json:"base_ports"`
	WebPorts   map[string][]int         `json:"web_ports"`
	WebURLs    []string                 `json:"web_urls"`
	VulnRaw    string                   `json:"vuln_raw"`
	Findings   []string                 `json:"findings"`
	Timings    map[string]time.Duration `json:"timings"`
	Extra      map[string]any           `json:"extra,omitempty"`
}

// UnitErrors extrae el manifiesto de errores del mapa de extensiones.
// Retorna nil si el run terminó sin errores de units.
func (r *RunResult) UnitErrors() []UnitError {
	v, ok := r.Extra[ExtraKeyUnitErrors]
	if !ok {
		return nil
	}
	errs, ok := v.([]UnitError)
	if !ok {
		return nil
	}
	return errs
}
