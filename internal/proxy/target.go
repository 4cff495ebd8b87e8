// Package proxy implements the programmable HTTP/WebSocket reverse proxy
// pipeline: target resolution, outbound request construction, the named
// pass registry, the pipeline executor, and the concrete proxy stages.
package proxy

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Target is a resolved upstream URL plus fields for TLS material.
type Target struct {
	Scheme string // "http", "https", "ws", or "wss"
	Host   string // hostname only, no port
	Port   int
	Path   string
	Query  string

	// TLS material, accepted for parity with the option set. ParseTarget
	// leaves these fields empty, and BuildOutgoingRequest does not read
	// them: outbound TLS uses only the transport's TLSClientConfig and the
	// Secure option.
	PFX            []byte
	Key            string
	Cert           string
	CA             string
	Ciphers        string
	SecureProtocol string
	Passphrase     string
	SocketPath     string
}

// securePortScheme matches schemes that default to port 443.
var securePortScheme = regexp.MustCompile(`^(?:https|wss)$`)

// ParseTarget parses a raw target or forward URL string into a Target.
// Port resolution: explicit port in the URL wins; otherwise 443 for
// https/wss, else 80.
func ParseTarget(raw string) (*Target, error) {
	if raw == "" {
		return nil, fmt.Errorf("proxy: empty target")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("proxy: invalid target %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("proxy: target %q has no host", raw)
	}

	scheme := strings.ToLower(u.Scheme)
	host := u.Hostname()

	port := 0
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("proxy: invalid port in target %q: %w", raw, err)
		}
	}
	if port == 0 {
		if securePortScheme.MatchString(scheme) {
			port = 443
		} else {
			port = 80
		}
	}

	return &Target{
		Scheme: scheme,
		Host:   host,
		Port:   port,
		Path:   u.Path,
		Query:  u.RawQuery,
	}, nil
}

// IsSSL reports whether the target's scheme requires a TLS dial.
func (t *Target) IsSSL() bool {
	return t.Scheme == "https" || t.Scheme == "wss"
}

// HostPort returns "host:port", suitable for net.Dial.
func (t *Target) HostPort() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// wellKnownPort reports whether port is the default for scheme, i.e. an
// explicit ":port" suffix would be redundant on a Host header.
func wellKnownPort(scheme string, port int) bool {
	switch {
	case securePortScheme.MatchString(scheme):
		return port == 443
	default:
		return port == 80
	}
}

// TargetSpec holds a target value that may still need resolving: either a
// raw string (as accepted from configuration) or an already-parsed Target
// (as built programmatically). The pipeline executor resolves Raw into
// Resolved exactly once per call.
type TargetSpec struct {
	Raw      string
	Resolved *Target
}

// IsZero reports whether the spec carries no target at all.
func (s TargetSpec) IsZero() bool {
	return s.Raw == "" && s.Resolved == nil
}

// TargetFromString builds a TargetSpec from a raw URL string.
func TargetFromString(raw string) TargetSpec {
	return TargetSpec{Raw: raw}
}

// TargetFromValue builds a TargetSpec from an already-resolved Target.
func TargetFromValue(t *Target) TargetSpec {
	return TargetSpec{Resolved: t}
}
