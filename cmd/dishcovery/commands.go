package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/dishcovery/dishcovery-client/internal/domain"
	"github.com/dishcovery/dishcovery-client/internal/handler"
	"github.com/dishcovery/dishcovery-client/internal/orchestrator"
	"github.com/dishcovery/dishcovery-client/internal/recipes"
	"github.com/dishcovery/dishcovery-client/internal/settings"
)

// setup parses args into fs and builds the app. A non-negative code means
// the command should exit with it immediately.
func setup(ctx context.Context, fs *pflag.FlagSet, args []string, stdout, stderr, logOut io.Writer, quiet bool) (*app, int) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, exitOK
		}
		return nil, exitUsage
	}
	a, err := newApp(ctx, fs, stdout, logOut, quiet)
	if err != nil {
		fmt.Fprintf(stderr, "dishcovery: %v\n", err)
		return nil, exitError
	}
	return a, -1
}

// fail prints err and returns the error exit code.
func (a *app) fail(err error) int {
	a.console.PrintError(domain.AsAPIError(err))
	return exitError
}

// ═══════════════════════════════════════════════════════════════════════════
// serve
// ═══════════════════════════════════════════════════════════════════════════

func runServe(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("serve", stderr)
	fs.String("host", "", "bind address")
	fs.Int("port", 0, "listen port")
	fs.String("language", "", "default recipe language")

	a, code := setup(ctx, fs, args, stdout, stderr, stdout, false)
	if code >= 0 {
		return code
	}
	defer a.Close()

	if a.cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	api := handler.NewAPI(a.settings, a.orch,
		handler.WithRecipes(a.recipes),
		handler.WithMetrics(a.metrics),
		handler.WithConsole(a.console),
		handler.WithLogger(a.logger),
	)

	addr := a.cfg.Server.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.Router(),
		ReadTimeout:  time.Duration(a.cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(a.cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	a.console.PrintBanner()
	a.console.PrintStartupInfo(addr, a.settings.Current().APIBaseURL, a.settings.IsReady())

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", slog.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			a.logger.Error("server error", slog.String("error", err.Error()))
			return exitError
		}
		return exitOK
	case <-ctx.Done():
	}

	a.logger.Info("shutdown signal received")
	a.console.PrintShutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(a.cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", slog.String("error", err.Error()))
		return exitError
	}

	a.logger.Info("server stopped gracefully")
	a.console.PrintGoodbye()
	return exitOK
}

// ═══════════════════════════════════════════════════════════════════════════
// generate
// ═══════════════════════════════════════════════════════════════════════════

func runGenerate(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("generate", stderr)
	image := fs.StringP("image", "i", "", "path or file:// URI of a dish photo")
	prompt := fs.StringP("prompt", "p", "", "describe the dish instead of sending a photo")
	imageURL := fs.String("image-url", "", "URL of a dish photo")
	language := fs.StringP("language", "l", "", "recipe language")
	save := fs.Bool("save", false, "save the recipe to the collection of --user")
	user := fs.String("user", "", "identity-provider user id for --save")

	a, code := setup(ctx, fs, args, stdout, stderr, stderr, true)
	if code >= 0 {
		return code
	}
	defer a.Close()

	if *save && strings.TrimSpace(*user) == "" {
		return a.fail(domain.NewAPIError(domain.CodeUnauthorized, recipes.MsgSignInRequired, "Pass --user with --save."))
	}

	a.console.PrintMiniBanner()
	input := domain.GenerationInput{TextPrompt: *prompt, ImageURL: *imageURL}
	if *image != "" {
		input.Image = &domain.ImageInput{URI: *image}
	}

	unsubscribe := a.orch.Subscribe(func(s orchestrator.Snapshot) {
		if !s.State.IsTerminal() && s.State != orchestrator.StateIdle {
			a.console.PrintProgress(string(s.State), string(s.Phase))
		}
	})
	defer unsubscribe()

	result, err := a.orch.Generate(ctx, input, *language)
	if err != nil {
		return a.fail(err)
	}
	a.console.PrintRecipe(result)

	if *save {
		id, err := a.orch.SaveLastRecipe(recipes.ContextWithUser(ctx, *user))
		if err != nil {
			return a.fail(err)
		}
		a.console.PrintSaved(string(id))
	}
	return exitOK
}

// ═══════════════════════════════════════════════════════════════════════════
// validate-key
// ═══════════════════════════════════════════════════════════════════════════

func runValidateKey(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("validate-key", stderr)
	addSettingsFlags(fs)

	a, code := setup(ctx, fs, args, stdout, stderr, stderr, true)
	if code >= 0 {
		return code
	}
	defer a.Close()

	result, err := a.orch.VerifyKey(ctx, candidateFromFlags(fs))
	if err != nil {
		return a.fail(err)
	}
	a.console.PrintKeyValidation(result)
	if !result.Valid {
		return exitError
	}
	return exitOK
}

// ═══════════════════════════════════════════════════════════════════════════
// settings
// ═══════════════════════════════════════════════════════════════════════════

func runSettings(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	action := "show"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		action, args = args[0], args[1:]
	}

	fs := newFlagSet("settings "+action, stderr)
	if action == "set" {
		addSettingsFlags(fs)
	}

	switch action {
	case "show", "set", "reset":
	default:
		fmt.Fprintf(stderr, "unknown settings action %q (want show, set or reset)\n", action)
		return exitUsage
	}

	a, code := setup(ctx, fs, args, stdout, stderr, stderr, true)
	if code >= 0 {
		return code
	}
	defer a.Close()

	switch action {
	case "set":
		if _, err := a.settings.Save(ctx, candidateFromFlags(fs)); err != nil {
			return a.fail(settingsError(err))
		}
	case "reset":
		if _, err := a.settings.Reset(ctx); err != nil {
			return a.fail(err)
		}
	}

	state := a.settings.State()
	state.Settings = a.settings.MaskedSettings()
	a.console.PrintSettings(state)
	return exitOK
}

// addSettingsFlags adds the flags that build a settings candidate.
func addSettingsFlags(fs *pflag.FlagSet) {
	fs.String("provider", "", "AI provider (gemini, openai, anthropic)")
	fs.String("key", "", "provider API key")
	fs.String("base-url", "", "recipe service base URL")
	fs.String("model", "", "model id")
}

// candidateFromFlags builds a candidate from the settings flags that were set.
func candidateFromFlags(fs *pflag.FlagSet) domain.PartialSettings {
	var c domain.PartialSettings
	for name, field := range map[string]**string{
		"provider": &c.Provider,
		"key":      &c.APIKey,
		"base-url": &c.APIBaseURL,
		"model":    &c.Model,
	} {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*field = &v
		}
	}
	return c
}

// settingsError turns a settings rejection into the user-facing error.
func settingsError(err error) error {
	var ve *settings.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	_, hint := domain.ValidationResult{Errors: ve.Errors}.FirstError()
	return domain.WrapAPIError(domain.CodeSettingsInvalid, orchestrator.MsgSettingsInvalid, hint, err)
}

// ═══════════════════════════════════════════════════════════════════════════
// recipes
// ═══════════════════════════════════════════════════════════════════════════

func runRecipes(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 && args[0] == "list" {
		args = args[1:]
	}

	fs := newFlagSet("recipes list", stderr)
	user := fs.String("user", "", "identity-provider user id")

	a, code := setup(ctx, fs, args, stdout, stderr, stderr, true)
	if code >= 0 {
		return code
	}
	defer a.Close()

	list, err := a.recipes.List(ctx, *user)
	if err != nil {
		return a.fail(err)
	}
	a.console.PrintRecipeList(list)
	return exitOK
}
