// Package config provides configuration types for relaygate.
//
// Configuration is file-based (YAML) with environment variable overrides,
// following the same Viper-driven pattern used throughout this codebase's
// lineage: SetDefaults runs before validation so a minimal file (or none
// at all, relying purely on env vars) is enough to start a server.
package config

import (
	"os"

	"github.com/spf13/viper"
)

// Config is the top-level relaygate configuration.
type Config struct {
	// Server configures the listener the proxy accepts inbound traffic on.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Proxy holds the base ProxyOptions applied to every request, merged
	// against any matching TargetConfig's overrides at dispatch time.
	Proxy ProxyConfig `yaml:"proxy" mapstructure:"proxy"`

	// Targets configures path-prefix routing to distinct upstreams. When
	// empty, every request uses Proxy.Target directly (single-upstream
	// mode).
	Targets []TargetConfig `yaml:"targets" mapstructure:"targets" validate:"omitempty,dive"`

	// Admin configures the optional authenticated operational API for
	// live pass-list inspection and mutation.
	Admin AdminConfig `yaml:"admin" mapstructure:"admin"`

	// Metrics configures Prometheus metrics exposition.
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`

	// Tracing configures OpenTelemetry span export.
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`

	// AccessLog configures the optional durable SQLite event sink.
	AccessLog AccessLogConfig `yaml:"access_log" mapstructure:"access_log"`

	// DevMode enables verbose logging and permissive defaults.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP(S) listener.
type ServerConfig struct {
	// ListenAddr is the address to listen on (e.g., "127.0.0.1:8080").
	// Defaults to "127.0.0.1:8080" (localhost only) if empty.
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn" (or "warning"), "error".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// WS enables WebSocket upgrade dispatch on this listener.
	WS bool `yaml:"ws" mapstructure:"ws"`

	// TLSCert / TLSKey, when both set, serve HTTPS instead of plaintext.
	TLSCert string `yaml:"tls_cert" mapstructure:"tls_cert" validate:"required_with=TLSKey"`
	TLSKey  string `yaml:"tls_key" mapstructure:"tls_key" validate:"required_with=TLSCert"`
}

// ProxyConfig mirrors the subset of proxy.Options that is meaningfully
// expressed in static configuration. Target/Forward resolution and
// the full Options struct remain available to the embedding Go program;
// this is what a YAML-only deployment can reach.
type ProxyConfig struct {
	// Target is the single upstream URL, used when Targets is empty.
	Target string `yaml:"target" mapstructure:"target" validate:"omitempty,url"`

	ChangeOrigin bool              `yaml:"change_origin" mapstructure:"change_origin"`
	XFwd         bool              `yaml:"x_fwd" mapstructure:"x_fwd"`
	Secure       *bool             `yaml:"secure" mapstructure:"secure"`
	PrependPath  *bool             `yaml:"prepend_path" mapstructure:"prepend_path"`
	IgnorePath   bool              `yaml:"ignore_path" mapstructure:"ignore_path"`
	Timeout      string            `yaml:"timeout" mapstructure:"timeout" validate:"omitempty"`
	Headers      map[string]string `yaml:"headers" mapstructure:"headers"`

	// HandleErrors installs the default 502 error responder as an
	// additional "error" listener, alongside any others registered.
	HandleErrors bool `yaml:"handle_errors" mapstructure:"handle_errors"`
}

// TargetConfig configures one path-prefix-routed upstream. Requests
// matching PathPrefix are forwarded to Upstream, with Headers merged
// over the inbound headers and, optionally, PathPrefix stripped first.
type TargetConfig struct {
	// Name is a human-readable identifier, used in admin API output and
	// logs.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// PathPrefix is the URL path prefix to match (e.g., "/api/").
	PathPrefix string `yaml:"path_prefix" mapstructure:"path_prefix" validate:"required"`

	// Upstream is the target URL base (e.g., "http://localhost:9000").
	Upstream string `yaml:"upstream" mapstructure:"upstream" validate:"required,url"`

	// StripPrefix controls whether PathPrefix is removed before
	// forwarding the request path upstream.
	StripPrefix bool `yaml:"strip_prefix" mapstructure:"strip_prefix"`

	// ChangeOrigin rewrites the outbound Host header to Upstream's host.
	ChangeOrigin bool `yaml:"change_origin" mapstructure:"change_origin"`

	// When, if set, is a CEL guard expression: the target only matches
	// requests for which it evaluates true.
	When string `yaml:"when" mapstructure:"when" validate:"omitempty,cel_expr"`

	// Headers are additional headers injected into proxied requests.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`
}

// AdminConfig configures the admin API described in internal/adminapi.
type AdminConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr" validate:"omitempty,hostname_port"`

	// SecretHash is an Argon2id PHC-format hash of the shared bearer
	// secret, produced by `relaygate hash-secret` (adminapi.HashSecret).
	SecretHash string `yaml:"secret_hash" mapstructure:"secret_hash" validate:"required_if=Enabled true"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr" validate:"omitempty,hostname_port"`
}

// TracingConfig configures OpenTelemetry span export.
type TracingConfig struct {
	Enabled      bool   `yaml:"enabled" mapstructure:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint" mapstructure:"otlp_endpoint" validate:"required_if=Enabled true"`
}

// AccessLogConfig configures the optional durable SQLite event sink.
type AccessLogConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SetDevDefaults applies permissive defaults for development mode. These
// defaults are applied before validation so a bare dev_mode: true config
// with just a target is enough to start.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "debug"
	}
	if !c.Proxy.HandleErrors {
		c.Proxy.HandleErrors = true
	}
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	// Bind to localhost only for security; users who need network access
	// must explicitly set listen_addr: ":8080" or "0.0.0.0:8080".
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	if c.Proxy.Timeout == "" {
		c.Proxy.Timeout = "30s"
	}

	if c.Admin.Enabled && c.Admin.ListenAddr == "" {
		c.Admin.ListenAddr = "127.0.0.1:8081"
	}

	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = "127.0.0.1:9090"
	}

	if c.AccessLog.Enabled && c.AccessLog.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.AccessLog.Path = home + "/.relaygate/access.db"
		} else {
			c.AccessLog.Path = "relaygate-access.db"
		}
	}

	// Only apply the enabled-by-default when the user hasn't explicitly
	// set it in YAML/env. viper.IsSet distinguishes "not set" (zero
	// value) from "explicitly false".
	if !viper.IsSet("proxy.handle_errors") {
		c.Proxy.HandleErrors = true
	}
}
