// Package config provides configuration loading for relaygate.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for relaygate.yaml/.yml
// in standard locations. The search requires an explicit YAML extension
// to avoid matching the binary itself, which Viper's built-in
// SetConfigName would match (same base name, no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found in any standard location.
		// Set name/type without search paths so ReadInConfig returns
		// ConfigFileNotFoundError (handled gracefully by callers).
		viper.SetConfigName("relaygate")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: RELAYGATE_SERVER_LISTEN_ADDR
	viper.SetEnvPrefix("RELAYGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a relaygate config file
// with an explicit YAML extension (.yaml or .yml). This prevents Viper
// from matching the binary "relaygate" (no extension) in the current
// directory.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".relaygate"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "relaygate"))
		}
	} else {
		paths = append(paths, "/etc/relaygate")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for relaygate.yaml
// or .yml. Returns the full path of the first match, or empty string if
// none found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "relaygate"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds config keys that benefit from environment
// variable overrides. Arrays (targets) are complex to override via env
// and are left to the config file.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.listen_addr")
	_ = viper.BindEnv("server.log_level")
	_ = viper.BindEnv("server.ws")

	_ = viper.BindEnv("proxy.target")
	_ = viper.BindEnv("proxy.change_origin")
	_ = viper.BindEnv("proxy.timeout")

	_ = viper.BindEnv("admin.enabled")
	_ = viper.BindEnv("admin.listen_addr")
	_ = viper.BindEnv("admin.secret_hash")

	_ = viper.BindEnv("metrics.enabled")
	_ = viper.BindEnv("metrics.listen_addr")

	_ = viper.BindEnv("tracing.enabled")
	_ = viper.BindEnv("tracing.otlp_endpoint")

	_ = viper.BindEnv("access_log.enabled")
	_ = viper.BindEnv("access_log.path")

	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and returns the Config.
// Note: callers should apply any CLI flag overrides (e.g. --dev) before
// calling cfg.SetDevDefaults() and cfg.Validate() to complete
// initialization; use LoadConfigRaw for that sequencing.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults, but
// does NOT apply dev defaults or validate. Use this when CLI flags may
// override DevMode before validation.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found — continue with env vars / defaults only.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was
// loaded. Returns an empty string if no config file was found (env vars
// only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
