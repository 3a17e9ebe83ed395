// internal/platform/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config es el árbol de configuración resuelto del run. Se construye una
// vez al arranque (defaults → fichero YAML → ENV → flags) y no se muta
// después: el RunContext recibe una referencia de solo lectura.
type Config struct {
	// App
	Target       string `yaml:"target"`
	Mode         string `yaml:"mode"`
	Resume       bool   `yaml:"resume"`
	PrintVersion bool   `yaml:"-"`

	// Units: configuración por unit, key = unit name
	Units map[string]UnitConfig `yaml:"units"`

	Concurrency Concurrency `yaml:"concurrency"`
	HTTP        HTTP        `yaml:"http"`
	Scheduler   Scheduler   `yaml:"scheduler"`
	State       State       `yaml:"state"`
	Logging     Logging     `yaml:"logging"`
	Safety      Safety      `yaml:"safety"`
	Output      Output      `yaml:"output"`
	DNS         DNS         `yaml:"dns"`
}

// UnitConfig contiene la configuración específica de un unit.
type UnitConfig struct {
	Enabled bool `yaml:"enabled"`

	// Ports lista de puertos para units de escaneo (nil = defaults del scanner)
	Ports []int `yaml:"ports,omitempty"`

	// Severity/Tags/Templates opciones para el unit de templates
	Severity  string   `yaml:"severity,omitempty"`
	Tags      string   `yaml:"tags,omitempty"`
	Templates []string `yaml:"templates,omitempty"`

	// Limit tope de resultados para units de recolección
	Limit int `yaml:"limit,omitempty"`

	// BinPath ruta del binario externo (units CLI)
	BinPath string `yaml:"bin_path,omitempty"`

	// TimeoutS timeout duro de subproceso en segundos
	TimeoutS int `yaml:"timeout,omitempty"`
}

type Concurrency struct {
	// MaxConnections límite del semáforo para probes de puertos crudos
	MaxConnections int `yaml:"max_connections"`

	// ProbeWorkers fan-out para probing HTTP de alto nivel
	ProbeWorkers int `yaml:"probe_workers"`
}

type HTTP struct {
	TimeoutS      int               `yaml:"timeout"`
	Retries       int               `yaml:"retries"`
	BackoffFactor float64           `yaml:"backoff_factor"`
	Jitter        float64           `yaml:"jitter"`
	ThrottleOn429 bool              `yaml:"throttle_on_429"`
	Headers       map[string]string `yaml:"headers,omitempty"`
	ProxyURL      string            `yaml:"proxy_url,omitempty"`
	UserAgent     string            `yaml:"user_agent,omitempty"`

	// RateLimit peticiones/segundo compartidas por todo el run (0 = sin límite)
	RateLimit float64 `yaml:"rate_limit"`
}

type Scheduler struct {
	// LayerTimeoutS watchdog por capa en segundos (0 = desactivado)
	LayerTimeoutS int `yaml:"layer_timeout"`

	// MaxWorkers concurrencia máxima de units dentro de una capa
	MaxWorkers int `yaml:"max_workers"`
}

type State struct {
	Path string `yaml:"path"`
}

type Logging struct {
	Verbose   bool   `yaml:"verbose"`
	EventPath string `yaml:"event_path"`
}

type Safety struct {
	AllowInternal bool `yaml:"allow_internal"`
}

type Output struct {
	Dir string `yaml:"dir"`
}

type DNS struct {
	// Server resolver explícito host:puerto (vacío = resolver del sistema)
	Server string `yaml:"server"`
}

// DefaultConfig retorna la configuración por defecto.
func DefaultConfig() Config {
	return Config{
		Mode: "passive",

		Units: map[string]UnitConfig{
			"subdomains": {Enabled: true},
			"base_ports": {
				Enabled: true,
				Ports:   []int{21, 22, 25, 53, 80, 110, 143, 443, 3306, 5432, 6379, 8080, 8443},
			},
			"endpoints":    {Enabled: true, Limit: 500},
			"web_services": {Enabled: true},
			"web_probe":    {Enabled: true},
			"nuclei": {
				Enabled:  true,
				Severity: "low,medium,high,critical",
				Tags:     "sqli,xss,lfi,rce,takeover",
				BinPath:  "nuclei",
				TimeoutS: 300,
			},
		},

		Concurrency: Concurrency{
			MaxConnections: 200,
			ProbeWorkers:   10,
		},

		HTTP: HTTP{
			TimeoutS:      20,
			Retries:       3,
			BackoffFactor: 0.6,
			Jitter:        0.3,
			ThrottleOn429: true,
			UserAgent:     "noctua/1.0",
		},

		Scheduler: Scheduler{
			LayerTimeoutS: 0,
			MaxWorkers:    8,
		},

		State:   State{Path: ".noctua-state.json.gz"},
		Logging: Logging{Verbose: false, EventPath: ""},
		Safety:  Safety{AllowInternal: false},
		Output:  Output{Dir: "noctua_out"},
	}
}

// Load inicializa la configuración: defaults → fichero YAML → ENV → flags
// (los flags tienen prioridad). Valida antes de retornar.
func Load(args []string) (Config, error) {
	cfg := DefaultConfig()

	path := getenv("NOCTUA_CONFIG", "noctua.yaml")
	if err := loadFromFile(&cfg, path); err != nil {
		return cfg, err
	}

	loadFromEnv(&cfg)

	if err := loadFromFlags(&cfg, args); err != nil {
		return cfg, err
	}

	normalize(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// loadFromFile aplica el fichero YAML sobre los defaults. La ausencia del
// fichero por defecto no es error; un fichero explícito que no parsea sí.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && os.Getenv("NOCTUA_CONFIG") == "" {
			return nil
		}
		if os.IsNotExist(err) {
			return fmt.Errorf("config file %s not found", path)
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// loadFromEnv carga configuración desde variables de entorno.
func loadFromEnv(cfg *Config) {
	if v := getenv("NOCTUA_TARGET", ""); v != "" {
		cfg.Target = v
	}
	if v := getenv("NOCTUA_MODE", ""); v != "" {
		cfg.Mode = v
	}
	if v := getenv("NOCTUA_STATE_PATH", ""); v != "" {
		cfg.State.Path = v
	}
	if v := getenv("NOCTUA_EVENT_PATH", ""); v != "" {
		cfg.Logging.EventPath = v
	}
	if v := getenv("NOCTUA_OUTPUT_DIR", ""); v != "" {
		cfg.Output.Dir = v
	}
	if v := getenv("NOCTUA_PROXY_URL", ""); v != "" {
		cfg.HTTP.ProxyURL = v
	}
	if v := getenv("NOCTUA_DNS_SERVER", ""); v != "" {
		cfg.DNS.Server = v
	}
	if v := getenv("NOCTUA_MAX_CONNECTIONS", ""); v != "" {
		cfg.Concurrency.MaxConnections = parseInt(v, cfg.Concurrency.MaxConnections)
	}
	if v := getenv("NOCTUA_ALLOW_INTERNAL", ""); v != "" {
		cfg.Safety.AllowInternal = parseBool(v)
	}
	if v := getenv("NOCTUA_VERBOSE", ""); v != "" {
		cfg.Logging.Verbose = parseBool(v)
	}

	// Units: NOCTUA_UNITS_<NAME>_ENABLED=true
	for name := range cfg.Units {
		prefix := fmt.Sprintf("NOCTUA_UNITS_%s_", strings.ToUpper(name))
		uc := cfg.Units[name]
		if v := getenv(prefix+"ENABLED", ""); v != "" {
			uc.Enabled = parseBool(v)
		}
		if v := getenv(prefix+"TIMEOUT", ""); v != "" {
			uc.TimeoutS = parseInt(v, uc.TimeoutS)
		}
		cfg.Units[name] = uc
	}
}

// loadFromFlags parsea flags de CLI sobre un FlagSet propio (testeable).
func loadFromFlags(cfg *Config, args []string) error {
	fs := pflag.NewFlagSet("noctua", pflag.ContinueOnError)

	fs.StringVarP(&cfg.Target, "target", "t", cfg.Target, "Target host, domain or URL")
	fs.StringVarP(&cfg.Mode, "mode", "m", cfg.Mode, "Scan mode: passive, hybrid or active")
	fs.BoolVar(&cfg.Resume, "resume", cfg.Resume, "Resume from the last saved snapshot if valid")
	fs.BoolVar(&cfg.PrintVersion, "version", false, "Print version and exit")

	fs.IntVar(&cfg.Concurrency.MaxConnections, "max-connections", cfg.Concurrency.MaxConnections,
		"Semaphore size for raw port probes")
	fs.IntVar(&cfg.Scheduler.LayerTimeoutS, "layer-timeout", cfg.Scheduler.LayerTimeoutS,
		"Per-layer watchdog in seconds (0 = disabled)")
	fs.StringVar(&cfg.State.Path, "state", cfg.State.Path, "Snapshot path for resumable runs")
	fs.StringVar(&cfg.Logging.EventPath, "events", cfg.Logging.EventPath, "Append-only event log path (JSONL)")
	fs.BoolVarP(&cfg.Logging.Verbose, "verbose", "v", cfg.Logging.Verbose, "Verbose logging")
	fs.BoolVar(&cfg.Safety.AllowInternal, "allow-internal", cfg.Safety.AllowInternal,
		"Allow targets that resolve to loopback/link-local addresses")
	fs.StringVar(&cfg.Output.Dir, "out", cfg.Output.Dir, "Output directory for run results")
	fs.StringVar(&cfg.HTTP.ProxyURL, "proxy", cfg.HTTP.ProxyURL, "HTTP(S) proxy for outbound requests")

	// Unit toggles: --unit.<name>=false
	for name := range cfg.Units {
		uc := cfg.Units[name]
		fs.BoolVar(&uc.Enabled, "unit."+name, uc.Enabled, "Enable unit "+name)
		cfg.Units[name] = uc
	}

	return fs.Parse(args)
}

func normalize(c *Config) {
	c.Target = strings.TrimSpace(c.Target)
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	if c.Mode == "" {
		c.Mode = "passive"
	}
	if c.Concurrency.MaxConnections < 1 {
		c.Concurrency.MaxConnections = 1
	}
	if c.Concurrency.ProbeWorkers < 1 {
		c.Concurrency.ProbeWorkers = 1
	}
	if c.Scheduler.MaxWorkers < 1 {
		c.Scheduler.MaxWorkers = 1
	}
	if c.HTTP.Retries < 1 {
		c.HTTP.Retries = 1
	}
	if c.HTTP.TimeoutS <= 0 {
		c.HTTP.TimeoutS = 20
	}
	if c.HTTP.BackoffFactor <= 0 {
		c.HTTP.BackoffFactor = 0.6
	}
	if c.HTTP.Jitter < 0 {
		c.HTTP.Jitter = 0
	}
	if c.State.Path == "" {
		c.State.Path = ".noctua-state.json.gz"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "noctua_out"
	}
}

// Validate aplica la política fail-fast: errores de configuración abortan
// el run antes de que arranque el scheduler.
func (c Config) Validate() error {
	switch c.Mode {
	case "passive", "hybrid", "active":
	default:
		return fmt.Errorf("invalid mode %q: must be passive, hybrid or active", c.Mode)
	}
	if c.Scheduler.LayerTimeoutS < 0 {
		return fmt.Errorf("scheduler.layer_timeout cannot be negative")
	}
	for name, uc := range c.Units {
		if uc.Limit < 0 {
			return fmt.Errorf("units.%s.limit cannot be negative", name)
		}
		if uc.TimeoutS < 0 {
			return fmt.Errorf("units.%s.timeout cannot be negative", name)
		}
		for _, p := range uc.Ports {
			if p < 1 || p > 65535 {
				return fmt.Errorf("units.%s.ports contains invalid port %d", name, p)
			}
		}
	}
	return nil
}

// UnitEnabled indica si un unit está habilitado; units no configurados
// cuentan como deshabilitados.
func (c Config) UnitEnabled(name string) bool {
	uc, ok := c.Units[name]
	return ok && uc.Enabled
}

// Unit retorna la configuración del unit dado (zero value si no existe).
func (c Config) Unit(name string) UnitConfig {
	return c.Units[name]
}

// HTTPTimeout retorna el timeout HTTP como time.Duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutS) * time.Second
}

// LayerTimeout retorna el watchdog por capa (0 = desactivado).
func (c Config) LayerTimeout() time.Duration {
	if c.Scheduler.LayerTimeoutS <= 0 {
		return 0
	}
	return time.Duration(c.Scheduler.LayerTimeoutS) * time.Second
}

// Helpers

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok {
		return v
	}
	return def
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt(v string, def int) int {
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return i
}
