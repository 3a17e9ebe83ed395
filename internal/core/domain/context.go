// internal/core/domain/context.go
package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ProgressObserver recibe cada descubrimiento deduplicado exactamente una vez
// por par (category, value) durante un run.
type ProgressObserver func(category, value string)

// EventSink persiste registros de emisión. Las implementaciones no deben
// propagar fallos al core; cualquier error retornado se descarta.
type EventSink interface {
	Write(ts time.Time, category, value string) error
}

// UnitError registra el fallo aislado de un unit durante el run.
type UnitError struct {
	Unit  string `json:"unit"`
	Error string `json:"error"`
}

// ExtraKeyUnitErrors es la clave del mapa de extensiones donde el scheduler
// deja los errores capturados. Ausencia de la clave = cero errores.
const ExtraKeyUnitErrors = "unit_errors"

// RunContext es el estado mutable compartido de un run. Existe exactamente
// uno por run y es propiedad exclusiva del scheduler mientras dura.
// Los acumuladores solo crecen (append/merge idempotente), de forma que el
// orden de escritores concurrentes no afecta al conjunto final.
type RunContext struct {
	ID    string
	Scope Scope

	mu sync.Mutex

	subdomains []string
	subSeen    map[string]struct{}
	basePorts  map[int]string
	webPorts   map[string][]int
	webURLs    []string
	urlSeen    map[string]struct{}
	vulnRaw    []byte
	findings   []string
	timings    map[string]time.Duration
	extra      map[string]any

	// emisión deduplicada
	emitSeen  map[string]map[string]struct{}
	observers []ProgressObserver
	sink      EventSink
}

// NewRunContext crea el contexto de ejecución para un run.
func NewRunContext(scope Scope) *RunContext {
	return &RunContext{
		ID:        uuid.NewString(),
		Scope:     scope,
		subSeen:   make(map[string]struct{}),
		basePorts: make(map[int]string),
		webPorts:  make(map[string][]int),
		urlSeen:   make(map[string]struct{}),
		timings:   make(map[string]time.Duration),
		extra:     make(map[string]any),
		emitSeen:  make(map[string]map[string]struct{}),
	}
}

// AddObserver registra un observer de progreso. No thread-safe respecto a
// Emit: registrar observers antes de arrancar el scheduler.
func (rc *RunContext) AddObserver(obs ProgressObserver) {
	if obs != nil {
		rc.observers = append(rc.observers, obs)
	}
}

// SetEventSink configura el destino durable de emisiones.
func (rc *RunContext) SetEventSink(sink EventSink) {
	rc.sink = sink
}

// Emit publica un descubrimiento. Normaliza la categoría a minúsculas,
// deduplica por (category, value) y solo en la primera aparición escribe al
// event sink y notifica a los observers. Fallos de sink u observer nunca
// se propagan al emisor.
func (rc *RunContext) Emit(category, value string) {
	cat := trimLower(category)
	if cat == "" || value == "" {
		return
	}

	rc.mu.Lock()
	seen, ok := rc.emitSeen[cat]
	if !ok {
		seen = make(map[string]struct{})
		rc.emitSeen[cat] = seen
	}
	if _, dup := seen[value]; dup {
		rc.mu.Unlock()
		return
	}
	seen[value] = struct{}{}
	sink := rc.sink
	observers := rc.observers
	rc.mu.Unlock()

	if sink != nil {
		_ = sink.Write(time.Now(), cat, value)
	}
	for _, obs := range observers {
		safeNotify(obs, cat, value)
	}
}

func safeNotify(obs ProgressObserver, cat, value string) {
	defer func() { _ = recover() }()
	obs(cat, value)
}

// AddSubdomains añade subdominios preservando orden de llegada y sin duplicados.
func (rc *RunContext) AddSubdomains(subs ...string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for _, s := range subs {
		s = trimLower(s)
		if s == "" {
			continue
		}
		if _, dup := rc.subSeen[s]; dup {
			continue
		}
		rc.subSeen[s] = struct{}{}
		rc.subdomains = append(rc.subdomains, s)
	}
}

// AddSubdomain añade un subdominio y retorna true si no estaba.
func (rc *RunContext) AddSubdomain(host string) bool {
	host = trimLower(host)
	if host == "" {
		return false
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if _, dup := rc.subSeen[host]; dup {
		return false
	}
	rc.subSeen[host] = struct{}{}
	rc.subdomains = append(rc.subdomains, host)
	return true
}

// Subdomains retorna una copia del acumulador de subdominios.
func (rc *RunContext) Subdomains() []string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]string(nil), rc.subdomains...)
}

// MergeBasePorts fusiona puertos abiertos del host base.
func (rc *RunContext) MergeBasePorts(ports map[int]string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for port, svc := range ports {
		rc.basePorts[port] = svc
	}
}

// BasePorts retorna una copia del mapa puerto→servicio.
func (rc *RunContext) BasePorts() map[int]string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make(map[int]string, len(rc.basePorts))
	for k, v := range rc.basePorts {
		out[k] = v
	}
	return out
}

// MergeWebPorts fusiona puertos web abiertos por host.
func (rc *RunContext) MergeWebPorts(ports map[string][]int) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for host, list := range ports {
		existing := rc.webPorts[host]
		for _, p := range list {
			if !containsInt(existing, p) {
				existing = append(existing, p)
			}
		}
		rc.webPorts[host] = existing
	}
}

// WebPorts retorna una copia del mapa host→puertos.
func (rc *RunContext) WebPorts() map[string][]int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make(map[string][]int, len(rc.webPorts))
	for k, v := range rc.webPorts {
		out[k] = append([]int(nil), v...)
	}
	return out
}

// AddWebURLs añade URLs web descubiertas, deduplicadas y en orden.
func (rc *RunContext) AddWebURLs(urls ...string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, dup := rc.urlSeen[u]; dup {
			continue
		}
		rc.urlSeen[u] = struct{}{}
		rc.webURLs = append(rc.webURLs, u)
	}
}

// WebURLs retorna una copia de las URLs web descubiertas.
func (rc *RunContext) WebURLs() []string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]string(nil), rc.webURLs...)
}

// AppendVulnRaw acumula transcript crudo del escaneo de templates.
func (rc *RunContext) AppendVulnRaw(chunk string) {
	if chunk == "" {
		return
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.vulnRaw = append(rc.vulnRaw, chunk...)
}

// VulnRaw retorna el transcript acumulado.
func (rc *RunContext) VulnRaw() string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return string(rc.vulnRaw)
}

// AddFindings añade hallazgos a la lista.
func (rc *RunContext) AddFindings(findings ...string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for _, f := range findings {
		if f != "" {
			rc.findings = append(rc.findings, f)
		}
	}
}

// Findings retorna una copia de la lista de hallazgos.
func (rc *RunContext) Findings() []string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]string(nil), rc.findings...)
}

// RecordTiming registra la duración de un unit, indexada por nombre.
func (rc *RunContext) RecordTiming(unit string, d time.Duration) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.timings[unit] = d
}

// Timings retorna una copia del mapa de tiempos.
func (rc *RunContext) Timings() map[string]time.Duration {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make(map[string]time.Duration, len(rc.timings))
	for k, v := range rc.timings {
		out[k] = v
	}
	return out
}

// SetExtra guarda salida específica de un unit en el mapa de extensiones.
func (rc *RunContext) SetExtra(key string, value any) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.extra[key] = value
}

// Extra retorna el valor de extensión para key.
func (rc *RunContext) Extra(key string) (any, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	v, ok := rc.extra[key]
	return v, ok
}

// Extras retorna una copia superficial del mapa de extensiones.
func (rc *RunContext) Extras() map[string]any {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make(map[string]any, len(rc.extra))
	for k, v := range rc.extra {
		out[k] = v
	}
	return out
}

// Result materializa el estado acumulado como RunResult inmutable.
func (rc *RunContext) Result() *RunResult {
	return &RunResult{
		RunID:      rc.ID,
		Scope:      rc.Scope,
		Subdomains: rc.Subdomains(),
		BasePorts:  rc.BasePorts(),
		WebPorts:   rc.WebPorts(),
		WebURLs:    rc.WebURLs(),
		VulnRaw:    rc.VulnRaw(),
		Findings:   rc.Findings(),
		Timings:    rc.Timings(),
		Extra:      rc.Extras(),
	}
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
