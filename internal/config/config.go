// Package config loads the client configuration from defaults, an optional
// config file, environment variables and command-line flags using Viper.
package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/dishcovery/dishcovery-client/internal/settings"
)

// Configuration holds all application configuration values.
type Configuration struct {
	// API configures the remote recipe service.
	API APIConfig `json:"api" mapstructure:"api"`

	// Storage configures local settings persistence.
	Storage StorageConfig `json:"storage" mapstructure:"storage"`

	// Recipes configures the saved-recipe collection.
	Recipes RecipesConfig `json:"recipes" mapstructure:"recipes"`

	// Generation holds generation defaults.
	Generation GenerationConfig `json:"generation" mapstructure:"generation"`

	// Server configures the local view API.
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// APIConfig holds remote service configuration.
type APIConfig struct {
	// BaseURL is the default service URL used until the user saves their own.
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// TimeoutSeconds bounds every backend request.
	TimeoutSeconds int `json:"timeout_seconds" mapstructure:"timeout_seconds"`

	// ProtectionBypassToken is sent as x-vercel-protection-bypass when set.
	ProtectionBypassToken string `json:"-" mapstructure:"protection_bypass_token"`
}

// Timeout returns TimeoutSeconds as a duration.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StorageConfig holds local persistence configuration.
type StorageConfig struct {
	// Dir holds the settings blob and, by default, the recipe database.
	Dir string `json:"dir" mapstructure:"dir"`

	// SettingsKey is the storage key of the settings blob.
	SettingsKey string `json:"settings_key" mapstructure:"settings_key"`
}

// RecipesConfig holds saved-recipe configuration.
type RecipesConfig struct {
	// DBPath is the sqlite database path. Defaults to <storage.dir>/recipes.db.
	DBPath string `json:"db_path" mapstructure:"db_path"`

	// CacheTTLSeconds is how long a user's list is cached. Zero disables the cache.
	CacheTTLSeconds int `json:"cache_ttl_seconds" mapstructure:"cache_ttl_seconds"`
}

// CacheTTL returns CacheTTLSeconds as a duration.
func (c RecipesConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// GenerationConfig holds generation defaults.
type GenerationConfig struct {
	// DefaultLanguage is sent when the caller does not pick a language.
	DefaultLanguage string `json:"default_language" mapstructure:"default_language"`

	// ImageSize is requested from the image phase of the two-phase flow.
	ImageSize string `json:"image_size" mapstructure:"image_size"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	// Host is the server bind address.
	Host string `json:"host" mapstructure:"host"`

	// Port is the server port number.
	Port int `json:"port" mapstructure:"port"`

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeoutSeconds int `json:"read_timeout_seconds" mapstructure:"read_timeout_seconds"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeoutSeconds int `json:"write_timeout_seconds" mapstructure:"write_timeout_seconds"`

	// ShutdownTimeout is the maximum duration to wait for active connections to finish.
	ShutdownTimeoutSeconds int `json:"shutdown_timeout_seconds" mapstructure:"shutdown_timeout_seconds"`
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `json:"level" mapstructure:"level"`

	// Format is the log format (json, text).
	Format string `json:"format" mapstructure:"format"`
}

// Validate checks every section and reports all problems at once.
func (c *Configuration) Validate() error {
	ve := &ValidationError{}

	if _, msg := settings.SanitizeBaseURL(c.API.BaseURL); msg != "" {
		ve.add("api.base_url", "%q is invalid: %s", c.API.BaseURL, msg)
	}
	if c.API.TimeoutSeconds <= 0 {
		ve.add("api.timeout_seconds", "must be positive")
	}
	if c.Storage.Dir == "" {
		ve.add("storage.dir", "is required")
	}
	if c.Storage.SettingsKey == "" {
		ve.add("storage.settings_key", "is required")
	}
	if c.Recipes.CacheTTLSeconds < 0 {
		ve.add("recipes.cache_ttl_seconds", "cannot be negative")
	}
	if c.Generation.DefaultLanguage == "" {
		ve.add("generation.default_language", "is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		ve.add("server.port", "must be between 1 and 65535")
	}

	for _, iv := range []*InvalidValueError{
		{Key: "logging.level", Value: c.Logging.Level, AllowedValues: []string{"debug", "info", "warn", "error"}},
		{Key: "logging.format", Value: c.Logging.Format, AllowedValues: []string{"json", "text"}},
	} {
		if v := iv.Value.(string); v != "" && !slices.Contains(iv.AllowedValues, v) {
			ve.add(iv.Key, "%s", iv.Error())
		}
	}

	if len(ve.Problems) > 0 {
		return ve
	}
	return nil
}
