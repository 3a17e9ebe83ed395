// internal/platform/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"noctua/internal/testutil"
)

// load ejecuta Load con entorno limpio y un directorio temporal sin
// noctua.yaml, para que solo cuenten defaults + args.
func load(t *testing.T, args ...string) (Config, error) {
	t.Helper()

	cwd, err := os.Getwd()
	testutil.AssertNoError(t, err, "Getwd")
	testutil.AssertNoError(t, os.Chdir(t.TempDir()), "Chdir")
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	return Load(args)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t)
	testutil.AssertNoError(t, err, "Load")

	testutil.AssertEqual(t, cfg.Mode, "passive", "default mode")
	testutil.AssertEqual(t, cfg.HTTP.Retries, 3, "default retries")
	testutil.AssertEqual(t, cfg.HTTP.TimeoutS, 20, "default timeout")
	testutil.AssertTrue(t, cfg.HTTP.ThrottleOn429, "throttle enabled by default")
	testutil.AssertEqual(t, cfg.Concurrency.MaxConnections, 200, "default max connections")
	testutil.AssertEqual(t, cfg.State.Path, ".noctua-state.json.gz", "default state path")
	testutil.AssertFalse(t, cfg.Safety.AllowInternal, "internal targets blocked by default")

	testutil.AssertTrue(t, cfg.UnitEnabled("subdomains"), "subdomains on")
	testutil.AssertTrue(t, cfg.UnitEnabled("nuclei"), "nuclei on")
	testutil.AssertFalse(t, cfg.UnitEnabled("ghost"), "unknown unit off")
	testutil.AssertEqual(t, cfg.Unit("endpoints").Limit, 500, "endpoints limit")
}

func TestLoad_Flags(t *testing.T) {
	cfg, err := load(t,
		"--target", "Example.COM",
		"--mode", "active",
		"--max-connections", "50",
		"--allow-internal",
		"--unit.nuclei=false",
	)
	testutil.AssertNoError(t, err, "Load")

	testutil.AssertEqual(t, cfg.Target, "Example.COM", "target from flag")
	testutil.AssertEqual(t, cfg.Mode, "active", "mode from flag")
	testutil.AssertEqual(t, cfg.Concurrency.MaxConnections, 50, "max connections from flag")
	testutil.AssertTrue(t, cfg.Safety.AllowInternal, "allow-internal from flag")
	testutil.AssertFalse(t, cfg.UnitEnabled("nuclei"), "unit toggled off")
	testutil.AssertTrue(t, cfg.UnitEnabled("subdomains"), "other units untouched")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("NOCTUA_MODE", "hybrid")
	t.Setenv("NOCTUA_MAX_CONNECTIONS", "25")
	t.Setenv("NOCTUA_UNITS_NUCLEI_ENABLED", "false")

	cfg, err := load(t)
	testutil.AssertNoError(t, err, "Load")

	testutil.AssertEqual(t, cfg.Mode, "hybrid", "mode from env")
	testutil.AssertEqual(t, cfg.Concurrency.MaxConnections, 25, "max connections from env")
	testutil.AssertFalse(t, cfg.UnitEnabled("nuclei"), "unit disabled via env")
}

func TestLoad_FlagsBeatEnv(t *testing.T) {
	t.Setenv("NOCTUA_MODE", "hybrid")

	cfg, err := load(t, "--mode", "active")
	testutil.AssertNoError(t, err, "Load")
	testutil.AssertEqual(t, cfg.Mode, "active", "flag wins over env")
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noctua.yaml")
	yaml := `
mode: hybrid
http:
  retries: 5
  rate_limit: 2.5
units:
  nuclei:
    enabled: false
`
	testutil.AssertNoError(t, os.WriteFile(path, []byte(yaml), 0o644), "write yaml")
	t.Setenv("NOCTUA_CONFIG", path)

	cfg, err := load(t)
	testutil.AssertNoError(t, err, "Load")

	testutil.AssertEqual(t, cfg.Mode, "hybrid", "mode from file")
	testutil.AssertEqual(t, cfg.HTTP.Retries, 5, "retries from file")
	testutil.AssertFalse(t, cfg.UnitEnabled("nuclei"), "unit disabled via file")
	if cfg.HTTP.RateLimit != 2.5 {
		t.Errorf("rate_limit from file: got %v, want 2.5", cfg.HTTP.RateLimit)
	}
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	t.Setenv("NOCTUA_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := load(t)
	testutil.AssertError(t, err, "explicit config file must exist")
}

func TestNormalize_ClampsAndDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = "  PASSIVE "
	cfg.Target = " example.com "
	cfg.Concurrency.MaxConnections = 0
	cfg.HTTP.Retries = -1
	cfg.HTTP.Jitter = -0.5
	cfg.State.Path = ""

	normalize(&cfg)

	testutil.AssertEqual(t, cfg.Mode, "passive", "mode lowercased and trimmed")
	testutil.AssertEqual(t, cfg.Target, "example.com", "target trimmed")
	testutil.AssertEqual(t, cfg.Concurrency.MaxConnections, 1, "max connections clamped")
	testutil.AssertEqual(t, cfg.HTTP.Retries, 1, "retries clamped")
	if cfg.HTTP.Jitter != 0 {
		t.Errorf("jitter clamped: got %v, want 0", cfg.HTTP.Jitter)
	}
	testutil.AssertEqual(t, cfg.State.Path, ".noctua-state.json.gz", "state path restored")
}

func TestValidate_FailFast(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"invalid mode", func(c *Config) { c.Mode = "stealth" }},
		{"negative layer timeout", func(c *Config) { c.Scheduler.LayerTimeoutS = -1 }},
		{"negative unit limit", func(c *Config) {
			c.Units["endpoints"] = UnitConfig{Enabled: true, Limit: -1}
		}},
		{"port out of range", func(c *Config) {
			c.Units["base_ports"] = UnitConfig{Enabled: true, Ports: []int{70000}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			testutil.AssertError(t, cfg.Validate(), "Validate must reject")
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := DefaultConfig()
	testutil.AssertEqual(t, cfg.HTTPTimeout(), 20*time.Second, "http timeout")
	testutil.AssertEqual(t, cfg.LayerTimeout(), time.Duration(0), "watchdog disabled by default")

	cfg.Scheduler.LayerTimeoutS = 90
	testutil.AssertEqual(t, cfg.LayerTimeout(), 90*time.Second, "watchdog enabled")
}
