package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dishcovery/dishcovery-client/internal/settings"
)

const (
	defaultConfigName = "config"
	defaultConfigType = "yaml"
	envPrefix         = "DISHCOVERY"

	// DefaultBaseURL is the development backend.
	DefaultBaseURL = "http://localhost:5001"

	// EnvPublicAPIURL is the base URL variable shared with the mobile build.
	EnvPublicAPIURL = "EXPO_PUBLIC_API_URL"

	// EnvBypassSecret is the deployment-protection bypass secret.
	EnvBypassSecret = "VERCEL_AUTOMATION_BYPASS_SECRET"
)

// Load builds the configuration.
//
// Priority order (highest to lowest):
//  1. Flags in fs that were set on the command line
//  2. Environment variables (prefixed with DISHCOVERY_, plus the shared aliases)
//  3. The config file at configPath, or config.yaml in the search paths
//  4. Default values
func Load(configPath string, fs *pflag.FlagSet) (*Configuration, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName(defaultConfigName)
	v.SetConfigType(defaultConfigType)
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.dishcovery")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := bindEnvAliases(v); err != nil {
		return nil, &ConfigError{Op: "bind_env", Err: err}
	}

	if fs != nil {
		if err := bindFlags(v, fs); err != nil {
			return nil, &ConfigError{Op: "bind_flags", Err: err}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, &ConfigError{
				Op:  "read",
				Err: fmt.Errorf("failed to read config file: %w", err),
			}
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{
			Op:  "unmarshal",
			Err: fmt.Errorf("failed to unmarshal config: %w", err),
		}
	}

	cfg.API.ProtectionBypassToken = strings.TrimSpace(cfg.API.ProtectionBypassToken)
	if base, msg := settings.SanitizeBaseURL(cfg.API.BaseURL); msg == "" {
		cfg.API.BaseURL = base
	}
	if cfg.Recipes.DBPath == "" && cfg.Storage.Dir != "" {
		cfg.Recipes.DBPath = filepath.Join(cfg.Storage.Dir, "recipes.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.base_url", DefaultBaseURL)
	v.SetDefault("api.timeout_seconds", 60)
	v.SetDefault("api.protection_bypass_token", "")

	// Storage defaults
	v.SetDefault("storage.dir", defaultStorageDir())
	v.SetDefault("storage.settings_key", settings.DefaultStorageKey)

	v.SetDefault("recipes.db_path", "")
	v.SetDefault("recipes.cache_ttl_seconds", 300)

	v.SetDefault("generation.default_language", "en")
	v.SetDefault("generation.image_size", "1024x1024")

	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 5174)
	v.SetDefault("server.read_timeout_seconds", 30)
	v.SetDefault("server.write_timeout_seconds", 120)
	v.SetDefault("server.shutdown_timeout_seconds", 15)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// bindEnvAliases lets the variables shared with the mobile build and the
// deployment platform fill the same keys as their DISHCOVERY_ names.
func bindEnvAliases(v *viper.Viper) error {
	if err := v.BindEnv("api.base_url", envPrefix+"_API_BASE_URL", EnvPublicAPIURL); err != nil {
		return err
	}
	return v.BindEnv("api.protection_bypass_token", envPrefix+"_API_PROTECTION_BYPASS_TOKEN", EnvBypassSecret)
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"api-url":     "api.base_url",
	"timeout":     "api.timeout_seconds",
	"storage-dir": "storage.dir",
	"db":          "recipes.db_path",
	"language":    "generation.default_language",
	"host":        "server.host",
	"port":        "server.port",
	"log-level":   "logging.level",
	"log-format":  "logging.format",
}

// bindFlags binds every known flag defined in fs.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if f := fs.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}
	return nil
}

func defaultStorageDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".dishcovery"
	}
	return filepath.Join(home, ".dishcovery")
}
