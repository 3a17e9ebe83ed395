// internal/platform/portscan/portscan_test.go
package portscan

import (
	"context"
	"net"
	"strconv"
	"testing"

	"noctua/internal/platform/logx"
	"noctua/internal/testutil"
)

// listenTCP abre un listener efímero y retorna host, puerto y cleanup.
func listenTCP(t *testing.T) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return "127.0.0.1", port
}

func TestScan_DetectsOpenPort(t *testing.T) {
	host, port := listenTCP(t)

	s := New(logx.NewSilent())
	open := s.Scan(context.Background(), host, []int{port}, 10)

	if _, ok := open[port]; !ok {
		t.Fatalf("expected port %d to be reported open", port)
	}
}

func TestScan_ClosedPortSilentlyAbsent(t *testing.T) {
	s := New(logx.NewSilent())
	// Puerto 1 reservado y cerrado en cualquier entorno de test razonable.
	open := s.Scan(context.Background(), "127.0.0.1", []int{1}, 10)
	testutil.AssertEqual(t, len(open), 0, "closed port absent, no error")
}

func TestScan_EmptyInputs(t *testing.T) {
	s := New(logx.NewSilent())
	testutil.AssertEqual(t, len(s.Scan(context.Background(), "", []int{80}, 10)), 0, "empty host")
	testutil.AssertEqual(t, len(s.Scan(context.Background(), "127.0.0.1", nil, 10)), 0, "empty ports")
}

func TestScanWebHosts_DerivesURLs(t *testing.T) {
	s := New(logx.NewSilent())
	s.dial = func(ctx context.Context, host string, port int) bool {
		// alpha expone 80 y 8443; beta nada
		return host == "alpha.example.com" && (port == 80 || port == 8443)
	}

	portMap, urls := s.ScanWebHosts(context.Background(), []string{"alpha.example.com", "beta.example.com"})

	ports, ok := portMap["alpha.example.com"]
	testutil.AssertTrue(t, ok, "alpha present in port map")
	testutil.AssertEqual(t, len(ports), 2, "two web ports open")
	testutil.AssertEqual(t, ports[0], 80, "ports sorted ascending")

	if _, ok := portMap["beta.example.com"]; ok {
		t.Error("host with no open ports must be absent")
	}

	testutil.AssertContains(t, urls, "http://alpha.example.com", "80 omits port suffix")
	testutil.AssertContains(t, urls, "https://alpha.example.com:8443", "8443 keeps suffix with https")
}

func TestWebURL(t *testing.T) {
	cases := []struct {
		port int
		want string
	}{
		{80, "http://h.example.com"},
		{443, "https://h.example.com"},
		{8080, "http://h.example.com:8080"},
		{8443, "https://h.example.com:8443"},
	}
	for _, tc := range cases {
		testutil.AssertEqual(t, WebURL("h.example.com", tc.port), tc.want, "WebURL")
	}
}

func TestServiceLabel(t *testing.T) {
	testutil.AssertEqual(t, ServiceLabel(22), "ssh", "known port")
	testutil.AssertEqual(t, ServiceLabel(31337), "unknown", "unknown port")
}

func TestScan_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(logx.NewSilent())
	open := s.Scan(ctx, "127.0.0.1", []int{80, 443}, 1)
	testutil.AssertEqual(t, len(open), 0, "canceled scan reports nothing")
}
