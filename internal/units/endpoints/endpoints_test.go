// internal/units/endpoints/endpoints_test.go
package endpoints

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

func newUnitForTest(cdxBase string, limit int) *Unit {
	u := New(
		config.UnitConfig{Enabled: true, Limit: limit},
		httpclient.New(httpclient.Config{MaxAttempts: 1}, logx.NewSilent()),
		logx.NewSilent(),
	)
	u.cdxBase = cdxBase
	return u
}

func TestRun_CollectsHistoricEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		testutil.AssertEqual(t, r.URL.Query().Get("url"), "*.example.com/*", "wildcard scope query")
		testutil.AssertEqual(t, r.URL.Query().Get("limit"), "100", "limit from config")
		_, _ = w.Write([]byte(`[
			["original"],
			["https://example.com/login"],
			["https://example.com/api/v1/users"],
			["https://example.com/login"],
			[""]
		]`))
	}))
	defer srv.Close()

	rc := domain.NewRunContext(domain.Scope{
		Host:       "example.com",
		Registered: "example.com",
		Mode:       domain.ModePassive,
	})
	emitted := 0
	rc.AddObserver(func(category, _ string) {
		if category == "endpoint" {
			emitted++
		}
	})

	testutil.AssertNoError(t, newUnitForTest(srv.URL, 100).Run(context.Background(), rc), "Run")

	v, ok := rc.Extra(ExtraKeyEndpoints)
	testutil.AssertTrue(t, ok, "endpoints key set")
	collected := v.([]string)
	testutil.AssertEqual(t, len(collected), 2, "header row, duplicates and blanks excluded")
	testutil.AssertContains(t, collected, "https://example.com/login", "endpoint kept")
	testutil.AssertContains(t, collected, "https://example.com/api/v1/users", "endpoint kept")
	testutil.AssertEqual(t, emitted, 2, "one emission per unique endpoint")
}

func TestRun_MalformedCDXResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	rc := domain.NewRunContext(domain.Scope{Host: "example.com", Registered: "example.com", Mode: domain.ModePassive})
	testutil.AssertError(t, newUnitForTest(srv.URL, 0).Run(context.Background(), rc), "unparseable response is an error")
}

func TestRun_DefaultLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		testutil.AssertEqual(t, r.URL.Query().Get("limit"), "500", "default limit")
		_, _ = w.Write([]byte(`[["original"]]`))
	}))
	defer srv.Close()

	rc := domain.NewRunContext(domain.Scope{Host: "example.com", Registered: "example.com", Mode: domain.ModePassive})
	testutil.AssertNoError(t, newUnitForTest(srv.URL, 0).Run(context.Background(), rc), "Run")
}
