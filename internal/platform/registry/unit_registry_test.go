// internal/platform/registry/unit_registry_test.go
package registry

import (
	"context"
	"fmt"
	"testing"

	"noctua/internal/core/domain"
	"noctua/internal/core/ports"
	"noctua/internal/platform/config"
	"noctua/internal/testutil"
)

type stubUnit struct {
	name string
}

func (s *stubUnit) Name() string                                  { return s.name }
func (s *stubUnit) Enabled() bool                                 { return true }
func (s *stubUnit) DependsOn() []string                           { return nil }
func (s *stubUnit) Run(context.Context, *domain.RunContext) error { return nil }

func stubFactory(name string) UnitFactory {
	return func(cfg config.UnitConfig, deps Deps) (ports.Unit, error) {
		return &stubUnit{name: name}, nil
	}
}

func newTestRegistry() *UnitRegistry {
	return NewUnitRegistry(testutil.NewTestLogger())
}

func TestRegister_PreservesDeclarationOrder(t *testing.T) {
	r := newTestRegistry()

	for _, name := range []string{"subdomains", "base_ports", "web_services"} {
		testutil.AssertNoError(t, r.Register(name, stubFactory(name), ports.UnitMetadata{Name: name}), "Register")
	}

	names := r.List()
	testutil.AssertEqual(t, len(names), 3, "three registered")
	testutil.AssertEqual(t, names[0], "subdomains", "first")
	testutil.AssertEqual(t, names[1], "base_ports", "second")
	testutil.AssertEqual(t, names[2], "web_services", "third")
}

func TestRegister_RejectsDuplicates(t *testing.T) {
	r := newTestRegistry()

	testutil.AssertNoError(t, r.Register("subdomains", stubFactory("subdomains"), ports.UnitMetadata{}), "first")
	testutil.AssertError(t, r.Register("subdomains", stubFactory("subdomains"), ports.UnitMetadata{}), "duplicate")
}

func TestRegister_RejectsInvalidInput(t *testing.T) {
	r := newTestRegistry()

	testutil.AssertError(t, r.Register("", stubFactory("x"), ports.UnitMetadata{}), "empty name")
	testutil.AssertError(t, r.Register("x", nil, ports.UnitMetadata{}), "nil factory")
}

func TestBuild_OnlyEnabledUnits(t *testing.T) {
	r := newTestRegistry()
	r.MustRegister("subdomains", stubFactory("subdomains"), ports.UnitMetadata{})
	r.MustRegister("base_ports", stubFactory("base_ports"), ports.UnitMetadata{})
	r.MustRegister("nuclei", stubFactory("nuclei"), ports.UnitMetadata{})

	deps := Deps{
		Config: config.Config{Units: map[string]config.UnitConfig{
			"subdomains": {Enabled: true},
			"base_ports": {Enabled: false},
			// nuclei ni siquiera configurado
		}},
		Logger: testutil.NewTestLogger(),
	}

	units, err := r.Build(deps)
	testutil.AssertNoError(t, err, "Build")
	testutil.AssertEqual(t, len(units), 1, "only the enabled unit built")
	testutil.AssertEqual(t, units[0].Name(), "subdomains", "enabled unit")
}

func TestBuild_FactoryFailureIsSoft(t *testing.T) {
	r := newTestRegistry()
	r.MustRegister("broken", func(config.UnitConfig, Deps) (ports.Unit, error) {
		return nil, fmt.Errorf("binary not found")
	}, ports.UnitMetadata{})
	r.MustRegister("subdomains", stubFactory("subdomains"), ports.UnitMetadata{})

	deps := Deps{
		Config: config.Config{Units: map[string]config.UnitConfig{
			"broken":     {Enabled: true},
			"subdomains": {Enabled: true},
		}},
		Logger: testutil.NewTestLogger(),
	}

	units, err := r.Build(deps)
	testutil.AssertNoError(t, err, "one failing factory never aborts the build")
	testutil.AssertEqual(t, len(units), 1, "healthy unit survives")
}

func TestBuild_NoBuildableUnits(t *testing.T) {
	r := newTestRegistry()
	r.MustRegister("subdomains", stubFactory("subdomains"), ports.UnitMetadata{})

	deps := Deps{
		Config: config.Config{Units: map[string]config.UnitConfig{}},
		Logger: testutil.NewTestLogger(),
	}

	_, err := r.Build(deps)
	testutil.AssertError(t, err, "zero buildable units is an error")
}

func TestMetadataLookup(t *testing.T) {
	r := newTestRegistry()
	r.MustRegister("web_probe", stubFactory("web_probe"), ports.UnitMetadata{
		Name:      "web_probe",
		DependsOn: []string{"web_services"},
	})

	meta, ok := r.GetMetadata("web_probe")
	testutil.AssertTrue(t, ok, "metadata present")
	testutil.AssertContains(t, meta.DependsOn, "web_services", "dependency recorded")

	testutil.AssertTrue(t, r.IsRegistered("web_probe"), "registered")
	testutil.AssertFalse(t, r.IsRegistered("ghost"), "unknown unit")
}
