// Package resolver resolves hostnames for scope building. When an explicit
// DNS server is configured it queries it directly, which keeps resolution
// deterministic across environments; otherwise it falls back to the system
// resolver.
package resolver

import (
	"net"
	"time"

	"github.com/miekg/dns"

	"noctua/internal/platform/errors"
	"noctua/internal/platform/logx"
)

const queryTimeout = 5 * time.Second

// Resolver implements domain.AddressResolver.
type Resolver struct {
	server string // host:port of an explicit DNS server, empty = system
	logger logx.Logger
}

// New creates a Resolver. server may be empty.
func New(server string, logger logx.Logger) *Resolver {
	if server != "" {
		if _, _, err := net.SplitHostPort(server); err != nil {
			server = net.JoinHostPort(server, "53")
		}
	}
	return &Resolver{
		server: server,
		logger: logger.With("component", "resolver"),
	}
}

// LookupAddr resolves host to a single address, preferring IPv4.
func (r *Resolver) LookupAddr(host string) (string, error) {
	if host == "" {
		return "", errors.ErrInvalidInput
	}

	if r.server != "" {
		addr, err := r.queryServer(host)
		if err == nil {
			return addr, nil
		}
		r.logger.Debug("direct DNS query failed, falling back to system resolver",
			"host", host, "server", r.server, "error", err.Error())
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve %s", host)
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	if len(ips) > 0 {
		return ips[0].String(), nil
	}
	return "", errors.Errorf("no addresses for %s", host)
}

// queryServer asks the configured server for an A record.
func (r *Resolver) queryServer(host string) (string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	client := &dns.Client{Timeout: queryTimeout}
	reply, _, err := client.Exchange(msg, r.server)
	if err != nil {
		return "", errors.Wrapf(err, "DNS query to %s failed", r.server)
	}
	if reply.Rcode != dns.RcodeSuccess {
		return "", errors.Errorf("DNS query for %s returned rcode %d", host, reply.Rcode)
	}
	for _, rr := range reply.Answer {
		if a, ok := rr.(*dns.A); ok {
			return a.A.String(), nil
		}
	}
	return "", errors.Errorf("no A records for %s", host)
}
