package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/dishcovery/dishcovery-client/internal/backend"
	"github.com/dishcovery/dishcovery-client/internal/config"
	"github.com/dishcovery/dishcovery-client/internal/metrics"
	"github.com/dishcovery/dishcovery-client/internal/orchestrator"
	"github.com/dishcovery/dishcovery-client/internal/recipes"
	"github.com/dishcovery/dishcovery-client/internal/security"
	"github.com/dishcovery/dishcovery-client/internal/settings"
	"github.com/dishcovery/dishcovery-client/internal/ui"
)

// app holds the components shared by every subcommand.
type app struct {
	cfg      *config.Configuration
	logger   *slog.Logger
	console  *ui.Console
	settings *settings.Store
	backend  *backend.Client
	metrics  *metrics.Collector
	recipeDB *recipes.GormStore
	recipes  *recipes.Gateway
	orch     *orchestrator.Orchestrator
}

// newFlagSet returns a flag set carrying the flags every command accepts.
func newFlagSet(name string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringP("config", "c", "", "config file (default ./config.yaml or ~/.dishcovery/config.yaml)")
	fs.String("api-url", "", "recipe service base URL used when no settings are saved")
	fs.Int("timeout", 0, "recipe service timeout in seconds")
	fs.String("storage-dir", "", "directory for persisted settings")
	fs.String("db", "", "saved-recipe database path")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("log-format", "", "log format (json, text)")
	return fs
}

// newApp loads configuration from fs and wires the components.
// Logs go to logOut; quiet raises the default info level to warn.
func newApp(ctx context.Context, fs *pflag.FlagSet, stdout, logOut io.Writer, quiet bool) (*app, error) {
	configPath, _ := fs.GetString("config")
	cfg, err := config.Load(configPath, fs)
	if err != nil {
		return nil, err
	}

	levelSet := fs.Changed("log-level") || os.Getenv("DISHCOVERY_LOGGING_LEVEL") != ""
	logger := newLogger(cfg.Logging, logOut, quiet && !levelSet)
	slog.SetDefault(logger)
	security.RegisterSecret(cfg.API.ProtectionBypassToken)

	storage, err := settings.NewFileStorage(cfg.Storage.Dir)
	if err != nil {
		return nil, err
	}
	store := settings.NewStore(storage, cfg.API.BaseURL,
		settings.WithLogger(logger),
		settings.WithStorageKey(cfg.Storage.SettingsKey),
	)
	if _, err := store.Hydrate(ctx); err != nil {
		logger.Warn("continuing with default settings", slog.String("error", err.Error()))
	}

	client := backend.NewClient(
		backend.WithTimeout(cfg.API.Timeout()),
		backend.WithBypassToken(cfg.API.ProtectionBypassToken),
		backend.WithLogger(logger),
	)
	collector := metrics.New()

	if err := os.MkdirAll(filepath.Dir(cfg.Recipes.DBPath), 0o700); err != nil {
		return nil, fmt.Errorf("create recipe database dir: %w", err)
	}
	db, err := recipes.OpenSQLite(cfg.Recipes.DBPath)
	if err != nil {
		return nil, err
	}
	gateway := recipes.NewGateway(db,
		recipes.WithCacheTTL(cfg.Recipes.CacheTTL()),
		recipes.WithMetrics(collector),
		recipes.WithLogger(logger),
	)

	orch, err := orchestrator.New(orchestrator.Config{
		Settings:  store,
		Backend:   client,
		Recipes:   gateway,
		Metrics:   collector,
		Logger:    logger,
		ImageSize: cfg.Generation.ImageSize,
		Language:  cfg.Generation.DefaultLanguage,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		console:  ui.NewConsole(stdout),
		settings: store,
		backend:  client,
		metrics:  collector,
		recipeDB: db,
		recipes:  gateway,
		orch:     orch,
	}, nil
}

// Close releases the recipe database.
func (a *app) Close() {
	if err := a.recipeDB.Close(); err != nil {
		a.logger.Warn("closing recipe database", slog.String("error", err.Error()))
	}
}

// newLogger creates a structured logger wrapped in the redacting handler.
func newLogger(cfg config.LoggingConfig, w io.Writer, quiet bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if quiet && level < slog.LevelWarn {
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(security.NewRedactedHandler(h))
}
