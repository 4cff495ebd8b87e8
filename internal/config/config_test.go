package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.Server.ListenAddr != "127.0.0.1:8080" {
		t.Errorf("ListenAddr = %q, want %q", cfg.Server.ListenAddr, "127.0.0.1:8080")
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.Server.LogLevel, "info")
	}
	if cfg.Proxy.Timeout != "30s" {
		t.Errorf("Proxy.Timeout = %q, want %q", cfg.Proxy.Timeout, "30s")
	}
	if !cfg.Proxy.HandleErrors {
		t.Error("Proxy.HandleErrors should default to true")
	}
}

func TestConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Server: ServerConfig{ListenAddr: ":9090"},
		Proxy:  ProxyConfig{Target: "http://upstream.internal", Timeout: "5s"},
	}
	cfg.SetDefaults()

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("ListenAddr was overwritten: got %q, want %q", cfg.Server.ListenAddr, ":9090")
	}
	if cfg.Proxy.Timeout != "5s" {
		t.Errorf("Proxy.Timeout was overwritten: got %q, want %q", cfg.Proxy.Timeout, "5s")
	}
}

func TestConfig_SetDefaults_AdminListenAddrOnlyWhenEnabled(t *testing.T) {
	t.Parallel()

	cfg := Config{}
	cfg.SetDefaults()
	if cfg.Admin.ListenAddr != "" {
		t.Errorf("Admin.ListenAddr = %q, want empty when disabled", cfg.Admin.ListenAddr)
	}

	cfg2 := Config{Admin: AdminConfig{Enabled: true}}
	cfg2.SetDefaults()
	if cfg2.Admin.ListenAddr != "127.0.0.1:8081" {
		t.Errorf("Admin.ListenAddr = %q, want 127.0.0.1:8081", cfg2.Admin.ListenAddr)
	}
}

func TestConfig_SetDevDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{DevMode: true}
	cfg.SetDevDefaults()

	if cfg.Server.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug in dev mode", cfg.Server.LogLevel)
	}
	if !cfg.Proxy.HandleErrors {
		t.Error("HandleErrors should be enabled in dev mode")
	}
}

func TestConfig_SetDevDefaults_NoOpWhenDisabled(t *testing.T) {
	t.Parallel()

	cfg := Config{}
	cfg.SetDevDefaults()

	if cfg.Server.LogLevel != "" {
		t.Errorf("LogLevel = %q, want untouched when dev_mode is false", cfg.Server.LogLevel)
	}
}

func TestFindConfigFileInPaths_EmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths(empty dir) = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_MatchesYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "relaygate.yaml")
	_ = os.WriteFile(cfgPath, []byte("server:\n  listen_addr: :9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_MatchesYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "relaygate.yml")
	_ = os.WriteFile(cfgPath, []byte("server:\n  listen_addr: :9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_IgnoresNoExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	// Simulate the binary: a file named "relaygate" with no extension.
	_ = os.WriteFile(filepath.Join(dir, "relaygate"), []byte("\x7fELF binary"), 0755)

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths matched binary = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_PrefersYAMLOverYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "relaygate.yaml")
	ymlPath := filepath.Join(dir, "relaygate.yml")
	_ = os.WriteFile(yamlPath, []byte("server:\n  listen_addr: :8080\n"), 0644)
	_ = os.WriteFile(ymlPath, []byte("server:\n  listen_addr: :9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != yamlPath {
		t.Errorf("findConfigFileInPaths = %q, want %q (.yaml preferred)", got, yamlPath)
	}
}
