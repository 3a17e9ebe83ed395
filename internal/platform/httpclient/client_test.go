// internal/platform/httpclient/client_test.go
package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"noctua/internal/platform/errors"
	"noctua/internal/platform/logx"
	"noctua/internal/testutil"
)

func newTestClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	// Backoff casi nulo para que los tests de retry no duerman.
	return New(cfg, logx.NewSilent())
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(Config{MaxAttempts: 3, BackoffFactor: 0.001})

	resp, err := client.Get(context.Background(), srv.URL, nil)
	testutil.AssertNoError(t, err, "Get")
	defer resp.Body.Close()
	testutil.AssertEqual(t, resp.StatusCode, 200, "status")
}

func TestDo_Retries5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(Config{MaxAttempts: 3, BackoffFactor: 0.001})

	resp, err := client.Get(context.Background(), srv.URL, nil)
	testutil.AssertNoError(t, err, "Get")
	defer resp.Body.Close()
	testutil.AssertEqual(t, resp.StatusCode, 200, "final status after retries")
	testutil.AssertEqual(t, atomic.LoadInt32(&calls), int32(3), "server hit three times")
}

func TestDo_LastAttempt5xxReturnsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(Config{MaxAttempts: 2, BackoffFactor: 0.001})

	resp, err := client.Get(context.Background(), srv.URL, nil)
	testutil.AssertNoError(t, err, "exhausted 5xx is a response, not an error")
	defer resp.Body.Close()
	testutil.AssertEqual(t, resp.StatusCode, 500, "caller sees the last 5xx")
}

func TestDo_429HonorsRetryAfter(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0.1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(Config{MaxAttempts: 3, BackoffFactor: 0.001, ThrottleOn429: true})

	start := time.Now()
	resp, err := client.Get(context.Background(), srv.URL, nil)
	elapsed := time.Since(start)

	testutil.AssertNoError(t, err, "Get")
	defer resp.Body.Close()
	testutil.AssertEqual(t, resp.StatusCode, 200, "status after throttle")
	testutil.AssertTrue(t, elapsed >= 100*time.Millisecond, "waited at least Retry-After")
}

func TestDo_429WithoutThrottleReturnsImmediately(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestClient(Config{MaxAttempts: 3, BackoffFactor: 0.001, ThrottleOn429: false})

	resp, err := client.Get(context.Background(), srv.URL, nil)
	testutil.AssertNoError(t, err, "Get")
	defer resp.Body.Close()
	testutil.AssertEqual(t, resp.StatusCode, 429, "429 passed through when throttle disabled")
}

func TestDo_TransportExhaustionWrapsSentinel(t *testing.T) {
	// Puerto cerrado: cada intento falla en transporte.
	client := newTestClient(Config{MaxAttempts: 2, BackoffFactor: 0.001})

	_, err := client.Get(context.Background(), "http://127.0.0.1:1", nil)
	testutil.AssertError(t, err, "transport failure surfaces")
	testutil.AssertTrue(t, errors.Is(err, errors.ErrRequestFailed), "wrapped with ErrRequestFailed")
}

func TestComputeBackoff_Bounds(t *testing.T) {
	client := newTestClient(Config{})

	for attempt := 1; attempt <= 4; attempt++ {
		base := 0.5 * float64(int(1)<<(attempt-1))
		min := time.Duration(base * float64(time.Second))
		max := min + time.Duration(0.3*float64(time.Second))

		for i := 0; i < 20; i++ {
			got := client.computeBackoff(attempt, 0.5, 0.3)
			if got < min || got > max {
				t.Fatalf("attempt %d: backoff %s outside [%s, %s]", attempt, got, min, max)
			}
		}
	}
}

func TestRetryAfterDelay(t *testing.T) {
	client := newTestClient(Config{})

	h := http.Header{}
	h.Set("Retry-After", "2")
	testutil.AssertEqual(t, client.retryAfterDelay(h, 1, 0.5, 0), 2*time.Second, "parseable seconds honored")

	h.Set("Retry-After", "0")
	testutil.AssertEqual(t, client.retryAfterDelay(h, 1, 0.5, 0), 100*time.Millisecond, "zero clamps to 100ms")

	h.Set("Retry-After", "garbage")
	got := client.retryAfterDelay(h, 1, 0.5, 0)
	testutil.AssertEqual(t, got, 500*time.Millisecond, "unparseable falls back to backoff")

	h.Set("Retry-After", "-3")
	got = client.retryAfterDelay(h, 1, 0.5, 0)
	testutil.AssertEqual(t, got, 500*time.Millisecond, "negative falls back to backoff")
}

func TestFetchJSON_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(Config{MaxAttempts: 1})

	_, err := client.FetchJSON(context.Background(), srv.URL)
	testutil.AssertError(t, err, "404 surfaces as error for JSON callers")
}
