// internal/core/domain/scope.go
package domain

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Scope representa la identidad normalizada del objetivo.
// Es inmutable una vez construido al inicio del run.
type Scope struct {
	// Host dominio o dirección objetivo
	Host string `json:"host"`

	// IP dirección resuelta (vacía si la resolución falló)
	IP string `json:"ip"`

	// URL canónica para probing web
	URL string `json:"url"`

	// Registered dominio registrable (eTLD+1) derivado del host
	Registered string `json:"registered,omitempty"`

	// Mode define el tipo de escaneo (passive, hybrid, active)
	Mode Mode `json:"mode"`
}

// AddressResolver resuelve un hostname a una dirección IPv4/IPv6.
type AddressResolver interface {
	LookupAddr(host string) (string, error)
}

// BuildScope normaliza la entrada en un Scope:
//   - URL completa: extrae host y resuelve si no es IP.
//   - IP literal: host=ip, URL http://.
//   - dominio pelado: resuelve y construye URL http://.
//
// Una resolución fallida no es fatal: el Scope queda sin IP y los
// units que la requieran degradan a "no data".
func BuildScope(target string, mode Mode, resolver AddressResolver) (Scope, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return Scope{}, ErrEmptyTarget
	}
	if !mode.IsValid() {
		mode = ModePassive
	}

	scope := Scope{Mode: mode}

	if parsed, err := url.Parse(target); err == nil && parsed.Scheme != "" && parsed.Host != "" {
		host := parsed.Hostname()
		if host == "" {
			return Scope{}, fmt.Errorf("%w: %s", ErrInvalidTarget, target)
		}
		scope.Host = trimLower(host)
		scope.URL = target
		if isIP(host) {
			scope.IP = host
		} else {
			scope.IP = resolveQuiet(resolver, scope.Host)
		}
	} else if isIP(target) {
		scope.Host = target
		scope.IP = target
		scope.URL = "http://" + target
	} else {
		scope.Host = trimLower(strings.TrimSuffix(target, "."))
		scope.IP = resolveQuiet(resolver, scope.Host)
		scope.URL = "http://" + scope.Host
	}

	if scope.Host != "" && !isIP(scope.Host) {
		if reg, err := publicsuffix.EffectiveTLDPlusOne(scope.Host); err == nil {
			scope.Registered = reg
		}
	}

	return scope, nil
}

// IsInScope verifica si un dominio pertenece al alcance del target.
func (s Scope) IsInScope(domain string) bool {
	domain = trimLower(domain)
	if domain == "" {
		return false
	}
	root := s.Registered
	if root == "" {
		root = s.Host
	}
	return domain == root || domain == s.Host || strings.HasSuffix(domain, "."+root)
}

// IsInternal indica si el objetivo apunta a loopback o link-local.
// Usado por la política de seguridad antes de arrancar el run.
func (s Scope) IsInternal() bool {
	host := trimLower(s.Host)
	if host == "localhost" || host == "127.0.0.1" {
		return true
	}
	if ip := net.ParseIP(s.IP); ip != nil {
		return ip.IsLoopback() || ip.IsLinkLocalUnicast()
	}
	return false
}

// String retorna una representación legible del scope.
func (s Scope) String() string {
	return fmt.Sprintf("Scope{host=%s, ip=%s, mode=%s}", s.Host, s.IP, s.Mode)
}

func resolveQuiet(resolver AddressResolver, host string) string {
	if resolver == nil {
		return ""
	}
	ip, err := resolver.LookupAddr(host)
	if err != nil {
		return ""
	}
	return ip
}

func isIP(value string) bool {
	return net.ParseIP(value) != nil
}

func trimLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
