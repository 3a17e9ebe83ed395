// Package portscan implements bounded-concurrency TCP reachability probing.
// Closed, filtered, and unreachable ports are indistinguishable by design:
// both simply never appear in the result map.
package portscan

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"noctua/internal/platform/logx"
)

// CommonTCPPorts is the default probe set for base host scans.
var CommonTCPPorts = []int{
	21, 22, 23, 25, 53, 80, 81, 110, 111, 135, 139, 143, 300, 443, 445,
	591, 593, 832, 981, 1099, 1118, 2082, 2083, 2087, 2095, 2096, 3000,
	3128, 3306, 3389, 4243, 4567, 4711, 4712, 5000, 5104, 5432, 5800,
	5900, 6379, 7000, 7001, 8000, 8001, 8008, 8080, 8081, 8181, 8443,
	8888, 9000, 9090, 9200, 9443, 10000,
}

// webPorts is the fixed set used for web service discovery.
var webPorts = []int{80, 443, 8080, 8443}

// serviceLabels maps well-known ports to service names; everything else
// reports "unknown".
var serviceLabels = map[int]string{
	21:   "ftp",
	22:   "ssh",
	25:   "smtp",
	53:   "dns",
	80:   "http",
	110:  "pop3",
	143:  "imap",
	443:  "https",
	3306: "mysql",
	5432: "postgresql",
	6379: "redis",
	8080: "http-alt",
	8443: "https-alt",
}

const (
	connectTimeout     = 1 * time.Second
	maxConcurrentHosts = 100
)

// Scanner probes TCP ports with a counting semaphore bound.
type Scanner struct {
	logger logx.Logger

	// dialer is swappable for tests
	dial func(ctx context.Context, host string, port int) bool
}

// New creates a Scanner.
func New(logger logx.Logger) *Scanner {
	s := &Scanner{logger: logger.With("component", "portscan")}
	s.dial = s.tcpConnect
	return s
}

// Scan probes every port on host concurrently, bounded by maxConcurrent,
// and returns a map of open port to service label. Probe failures are not
// errors: the port is simply absent. Empty inputs yield an empty map.
func (s *Scanner) Scan(ctx context.Context, host string, ports []int, maxConcurrent int) map[int]string {
	open := make(map[int]string)
	if host == "" || len(ports) == 0 {
		return open
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	s.logger.Info("starting port scan",
		"host", host,
		"ports", len(ports),
		"max_concurrent", maxConcurrent,
	)

	sem := semaphore.NewWeighted(int64(maxConcurrent))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, port := range ports {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			if s.dial(ctx, host, port) {
				label := ServiceLabel(port)
				mu.Lock()
				open[port] = label
				mu.Unlock()
				s.logger.Debug("port open", "host", host, "port", port, "service", label)
			}
		}(port)
	}
	wg.Wait()

	s.logger.Info("port scan finished", "host", host, "open", len(open))
	return open
}

// ScanWebHosts probes the fixed web port set on every host, at most 100
// hosts in flight. It returns the per-host open port map plus one derived
// URL per open port: https for 443/8443, http otherwise, with the port
// suffix omitted for 80 and 443.
func (s *Scanner) ScanWebHosts(ctx context.Context, hosts []string) (map[string][]int, []string) {
	portMap := make(map[string][]int)
	var urls []string
	if len(hosts) == 0 {
		return portMap, urls
	}

	s.logger.Info("scanning web ports", "hosts", len(hosts))

	type hostResult struct {
		host  string
		ports []int
	}

	sem := semaphore.NewWeighted(maxConcurrentHosts)
	results := make([]hostResult, len(hosts))
	var wg sync.WaitGroup

	for i, host := range hosts {
		wg.Add(1)
		go func(i int, host string) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)
			results[i] = hostResult{host: host, ports: s.scanHost(ctx, host)}
		}(i, host)
	}
	wg.Wait()

	// Deterministic output order: hosts as given, ports ascending.
	for _, r := range results {
		if len(r.ports) == 0 {
			continue
		}
		sort.Ints(r.ports)
		portMap[r.host] = r.ports
		for _, port := range r.ports {
			urls = append(urls, WebURL(r.host, port))
		}
	}

	s.logger.Info("web port scan finished", "hosts_up", len(portMap), "urls", len(urls))
	return portMap, urls
}

// scanHost probes the web port set on a single host, all ports in parallel.
func (s *Scanner) scanHost(ctx context.Context, host string) []int {
	var mu sync.Mutex
	var open []int
	var wg sync.WaitGroup
	for _, port := range webPorts {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			if s.dial(ctx, host, port) {
				mu.Lock()
				open = append(open, port)
				mu.Unlock()
			}
		}(port)
	}
	wg.Wait()
	return open
}

func (s *Scanner) tcpConnect(ctx context.Context, host string, port int) bool {
	d := net.Dialer{Timeout: connectTimeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// ServiceLabel maps a port to its well-known service label.
func ServiceLabel(port int) string {
	if label, ok := serviceLabels[port]; ok {
		return label
	}
	return "unknown"
}

// WebURL derives the canonical URL for an open web port.
func WebURL(host string, port int) string {
	scheme := "http"
	if port == 443 || port == 8443 {
		scheme = "https"
	}
	if port == 80 || port == 443 {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}
