package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"DISHCOVERY_API_BASE_URL", EnvPublicAPIURL,
		"DISHCOVERY_API_PROTECTION_BYPASS_TOKEN", EnvBypassSecret,
		"DISHCOVERY_LOGGING_LEVEL", "DISHCOVERY_SERVER_PORT",
	} {
		t.Setenv(name, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("DISHCOVERY_STORAGE_DIR", dir)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, 60, cfg.API.TimeoutSeconds)
	assert.Empty(t, cfg.API.ProtectionBypassToken)
	assert.Equal(t, "@dishcovery/settings/v1", cfg.Storage.SettingsKey)
	assert.Equal(t, filepath.Join(dir, "recipes.db"), cfg.Recipes.DBPath)
	assert.Equal(t, 300, cfg.Recipes.CacheTTLSeconds)
	assert.Equal(t, "en", cfg.Generation.DefaultLanguage)
	assert.Equal(t, "127.0.0.1:5174", cfg.Server.Addr())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvAliases(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISHCOVERY_STORAGE_DIR", t.TempDir())
	t.Setenv(EnvPublicAPIURL, "https://Recipes.Example.com:443/")
	t.Setenv(EnvBypassSecret, " secret-token ")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://recipes.example.com", cfg.API.BaseURL)
	assert.Equal(t, "secret-token", cfg.API.ProtectionBypassToken)
}

func TestLoad_PrefixedEnvWinsOverAlias(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISHCOVERY_STORAGE_DIR", t.TempDir())
	t.Setenv("DISHCOVERY_API_BASE_URL", "http://10.0.2.2:5001")
	t.Setenv(EnvPublicAPIURL, "https://recipes.example.com")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.2.2:5001", cfg.API.BaseURL)
}

func TestLoad_FileAndFlags(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "dishcovery.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://file.example.com
storage:
  dir: `+dir+`
server:
  port: 9000
logging:
  level: debug
`), 0o600))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("port", 5174, "")
	fs.String("log-format", "json", "")
	require.NoError(t, fs.Parse([]string{"--port", "9100"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, "https://file.example.com", cfg.API.BaseURL)
	assert.Equal(t, 9100, cfg.Server.Port, "explicit flag wins over file")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Configuration)
		field  string
	}{
		{"bad base url", func(c *Configuration) { c.API.BaseURL = "ftp://example.com" }, "api.base_url"},
		{"zero timeout", func(c *Configuration) { c.API.TimeoutSeconds = 0 }, "api.timeout_seconds"},
		{"negative cache ttl", func(c *Configuration) { c.Recipes.CacheTTLSeconds = -1 }, "recipes.cache_ttl_seconds"},
		{"port out of range", func(c *Configuration) { c.Server.Port = 70000 }, "server.port"},
		{"unknown log level", func(c *Configuration) { c.Logging.Level = "verbose" }, "logging.level"},
		{"unknown log format", func(c *Configuration) { c.Logging.Format = "xml" }, "logging.format"},
		{"missing language", func(c *Configuration) { c.Generation.DefaultLanguage = "" }, "generation.default_language"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			require.True(t, IsValidationError(err))
			assert.True(t, err.(*ValidationError).HasError(tt.field), err.Error())
		})
	}

	assert.NoError(t, validConfig().Validate())
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, err.(*ValidationError).Problems, 2)
	assert.Contains(t, err.Error(), "2 problems")
}

func validConfig() *Configuration {
	return &Configuration{
		API:        APIConfig{BaseURL: DefaultBaseURL, TimeoutSeconds: 60},
		Storage:    StorageConfig{Dir: "/tmp/dishcovery", SettingsKey: "@dishcovery/settings/v1"},
		Recipes:    RecipesConfig{CacheTTLSeconds: 300},
		Generation: GenerationConfig{DefaultLanguage: "en"},
		Server:     ServerConfig{Host: "127.0.0.1", Port: 5174},
		Logging:    LoggingConfig{Level: "info", Format: "json"},
	}
}
