// internal/units/subdomains/subdomains_test.go
package subdomains

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"noctua/internal/core/domain"
	"noctua/internal/platform/config"
	"noctua/internal/platform/httpclient"
	"noctua/internal/platform/logx"
	"noctua/internal/testutil"
)

func newUnitForTest(crtshBase string) *Unit {
	u := New(
		config.UnitConfig{Enabled: true},
		httpclient.New(httpclient.Config{MaxAttempts: 1}, logx.NewSilent()),
		logx.NewSilent(),
	)
	u.crtshBase = crtshBase
	return u
}

func passiveScope() domain.Scope {
	return domain.Scope{
		Host:       "example.com",
		Registered: "example.com",
		Mode:       domain.ModePassive,
	}
}

func TestRun_CollectsCertTransparencyHosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		testutil.AssertEqual(t, r.URL.Query().Get("output"), "json", "json output requested")
		testutil.AssertEqual(t, r.URL.Query().Get("q"), "%.example.com", "wildcard query")
		_, _ = w.Write([]byte(`[
			{"name_value": "api.example.com"},
			{"name_value": "*.cdn.example.com"},
			{"name_value": "www.example.com\nmail.example.com"},
			{"name_value": "evilexample.com"},
			{"name_value": "API.EXAMPLE.COM"}
		]`))
	}))
	defer srv.Close()

	rc := domain.NewRunContext(passiveScope())
	emitted := make([]string, 0)
	rc.AddObserver(func(category, value string) {
		if category == "subdomain" {
			emitted = append(emitted, value)
		}
	})

	testutil.AssertNoError(t, newUnitForTest(srv.URL).Run(context.Background(), rc), "Run")

	subs := rc.Subdomains()
	testutil.AssertContains(t, subs, "example.com", "scope host always included")
	testutil.AssertContains(t, subs, "api.example.com", "plain record")
	testutil.AssertContains(t, subs, "cdn.example.com", "wildcard prefix stripped")
	testutil.AssertContains(t, subs, "www.example.com", "multi-host record split")
	testutil.AssertContains(t, subs, "mail.example.com", "multi-host record split")
	testutil.AssertEqual(t, len(subs), 5, "out-of-scope and duplicates excluded")
	testutil.AssertEqual(t, len(emitted), 5, "one emission per novel host")
}

func TestRun_CrtshFailureIsSoft(t *testing.T) {
	// crt.sh devuelve HTML cuando está sobrecargado; el unit no debe fallar.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>overloaded</html>"))
	}))
	defer srv.Close()

	rc := domain.NewRunContext(passiveScope())
	testutil.AssertNoError(t, newUnitForTest(srv.URL).Run(context.Background(), rc), "lookup failure is not fatal")
	testutil.AssertContains(t, rc.Subdomains(), "example.com", "scope host still collected")
}

func TestRun_EmptyScopeSkips(t *testing.T) {
	rc := domain.NewRunContext(domain.Scope{Mode: domain.ModePassive})
	testutil.AssertNoError(t, newUnitForTest("http://127.0.0.1:1").Run(context.Background(), rc), "nothing to do")
	testutil.AssertEqual(t, len(rc.Subdomains()), 0, "no hosts collected")
}
