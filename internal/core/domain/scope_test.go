// internal/core/domain/scope_test.go
package domain

import (
	"errors"
	"testing"

	"noctua/internal/testutil"
)

type fakeResolver struct {
	ip  string
	err error
}

func (f fakeResolver) LookupAddr(host string) (string, error) {
	return f.ip, f.err
}

func TestBuildScope_BareDomain(t *testing.T) {
	scope, err := BuildScope("Example.COM", ModeHybrid, fakeResolver{ip: "93.184.216.34"})
	testutil.AssertNoError(t, err, "BuildScope")

	testutil.AssertEqual(t, scope.Host, "example.com", "host normalized to lowercase")
	testutil.AssertEqual(t, scope.IP, "93.184.216.34", "resolved ip")
	testutil.AssertEqual(t, scope.URL, "http://example.com", "derived url")
	testutil.AssertEqual(t, scope.Registered, "example.com", "registrable domain")
	testutil.AssertEqual(t, scope.Mode, ModeHybrid, "mode preserved")
}

func TestBuildScope_Subdomain(t *testing.T) {
	scope, err := BuildScope("app.staging.example.co.uk", ModePassive, fakeResolver{ip: "10.1.2.3"})
	testutil.AssertNoError(t, err, "BuildScope")

	testutil.AssertEqual(t, scope.Registered, "example.co.uk", "eTLD+1 for co.uk")
}

func TestBuildScope_URL(t *testing.T) {
	scope, err := BuildScope("https://api.example.com:8443/v1", ModeActive, fakeResolver{ip: "1.2.3.4"})
	testutil.AssertNoError(t, err, "BuildScope")

	testutil.AssertEqual(t, scope.Host, "api.example.com", "host from url")
	testutil.AssertEqual(t, scope.URL, "https://api.example.com:8443/v1", "original url kept")
	testutil.AssertEqual(t, scope.IP, "1.2.3.4", "url host resolved")
}

func TestBuildScope_IPLiteral(t *testing.T) {
	scope, err := BuildScope("192.168.1.50", ModeActive, nil)
	testutil.AssertNoError(t, err, "BuildScope")

	testutil.AssertEqual(t, scope.Host, "192.168.1.50", "ip as host")
	testutil.AssertEqual(t, scope.IP, "192.168.1.50", "ip literal not resolved")
	testutil.AssertEqual(t, scope.URL, "http://192.168.1.50", "http url for ip")
	testutil.AssertEqual(t, scope.Registered, "", "no registrable domain for ip")
}

func TestBuildScope_ResolutionFailureNotFatal(t *testing.T) {
	scope, err := BuildScope("nxdomain.example.com", ModePassive, fakeResolver{err: errors.New("NXDOMAIN")})
	testutil.AssertNoError(t, err, "failed resolution must not abort")
	testutil.AssertEqual(t, scope.IP, "", "ip stays empty")
	testutil.AssertEqual(t, scope.Host, "nxdomain.example.com", "host kept")
}

func TestBuildScope_EmptyTarget(t *testing.T) {
	_, err := BuildScope("   ", ModePassive, nil)
	testutil.AssertError(t, err, "empty target rejected")
	testutil.AssertTrue(t, errors.Is(err, ErrEmptyTarget), "ErrEmptyTarget sentinel")
}

func TestBuildScope_InvalidModeFallsBackToPassive(t *testing.T) {
	scope, err := BuildScope("example.com", Mode("aggressive"), nil)
	testutil.AssertNoError(t, err, "BuildScope")
	testutil.AssertEqual(t, scope.Mode, ModePassive, "invalid mode degrades to passive")
}

func TestScope_IsInScope(t *testing.T) {
	scope := Scope{Host: "www.example.com", Registered: "example.com"}

	testutil.AssertTrue(t, scope.IsInScope("example.com"), "root in scope")
	testutil.AssertTrue(t, scope.IsInScope("api.example.com"), "sibling subdomain in scope")
	testutil.AssertTrue(t, scope.IsInScope("WWW.Example.COM"), "case-insensitive match")
	testutil.AssertFalse(t, scope.IsInScope("example.org"), "other domain out of scope")
	testutil.AssertFalse(t, scope.IsInScope("notexample.com"), "suffix trick out of scope")
	testutil.AssertFalse(t, scope.IsInScope(""), "empty never in scope")
}

func TestScope_IsInternal(t *testing.T) {
	cases := []struct {
		name  string
		scope Scope
		want  bool
	}{
		{"localhost host", Scope{Host: "localhost"}, true},
		{"loopback literal", Scope{Host: "127.0.0.1", IP: "127.0.0.1"}, true},
		{"resolved loopback", Scope{Host: "evil.example.com", IP: "127.0.0.1"}, true},
		{"link local", Scope{Host: "x.example.com", IP: "169.254.10.1"}, true},
		{"public", Scope{Host: "example.com", IP: "93.184.216.34"}, false},
		{"unresolved", Scope{Host: "example.com"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			testutil.AssertEqual(t, tc.scope.IsInternal(), tc.want, "IsInternal")
		})
	}
}

func TestNormalizeMode(t *testing.T) {
	testutil.AssertEqual(t, NormalizeMode("active"), ModeActive, "active")
	testutil.AssertEqual(t, NormalizeMode("HYBRID"), ModeHybrid, "case-insensitive")
	testutil.AssertEqual(t, NormalizeMode("bogus"), ModePassive, "unknown degrades to passive")
	testutil.AssertEqual(t, NormalizeMode(""), ModePassive, "empty degrades to passive")
}
