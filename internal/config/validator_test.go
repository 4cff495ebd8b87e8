package config

import (
	"strings"
	"testing"
)

// minimalValidConfig returns a minimal valid Config for testing.
func minimalValidConfig() *Config {
	return &Config{
		Server: ServerConfig{ListenAddr: "127.0.0.1:8080"},
		Proxy:  ProxyConfig{Target: "http://localhost:3000"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_NoUpstreamAtAll(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Proxy.Target = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error when neither proxy.target nor targets is set")
	}
	if !strings.Contains(err.Error(), "target") {
		t.Errorf("error = %q, want to mention target", err.Error())
	}
}

func TestValidate_TargetsOnlyIsValid(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Server: ServerConfig{ListenAddr: "127.0.0.1:8080"},
		Targets: []TargetConfig{
			{Name: "api", PathPrefix: "/api/", Upstream: "http://localhost:3000"},
		},
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with targets-only config unexpected error: %v", err)
	}
}

func TestValidate_TargetMissingRequiredFields(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Targets = []TargetConfig{{PathPrefix: "/api/"}} // missing Name, Upstream

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for incomplete target, got nil")
	}
}

func TestValidate_TargetInvalidUpstreamURL(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Targets = []TargetConfig{{Name: "api", PathPrefix: "/api/", Upstream: "not a url"}}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid upstream URL, got nil")
	}
}

func TestValidate_TargetInvalidWhenExpression(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Targets = []TargetConfig{{
		Name: "api", PathPrefix: "/api/", Upstream: "http://localhost:3000",
		When: "this is not valid cel (((",
	}}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid when expression, got nil")
	}
}

func TestValidate_TargetValidWhenExpression(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Targets = []TargetConfig{{
		Name: "api", PathPrefix: "/api/", Upstream: "http://localhost:3000",
		When: `method == "GET"`,
	}}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with valid when expression unexpected error: %v", err)
	}
}

func TestValidate_AdminEnabledRequiresSecretHash(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Admin = AdminConfig{Enabled: true}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error when admin enabled without secret_hash")
	}
}

func TestValidate_AdminEnabledWithSecretHash(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Admin = AdminConfig{Enabled: true, SecretHash: "$argon2id$v=19$m=48128,t=1,p=1$c2FsdA$aGFzaA"}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with admin secret_hash unexpected error: %v", err)
	}
}

func TestValidate_TracingEnabledRequiresEndpoint(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Tracing = TracingConfig{Enabled: true}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error when tracing enabled without otlp_endpoint")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Server.LogLevel = "verbose"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid log level")
	}
}

func TestValidate_TLSCertRequiresKey(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Server.TLSCert = "/etc/relaygate/cert.pem"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error when tls_cert set without tls_key")
	}
}

func TestValidate_ZeroConfigFailsWithoutTarget(t *testing.T) {
	t.Parallel()

	// Simulate a user running "relaygate serve" with no config file and no
	// target: unlike the schema this one descends from, there is no
	// reasonable default-deny upstream to fall back to.
	cfg := &Config{}
	cfg.SetDefaults()

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() zero-config expected error (no upstream configured)")
	}
}
