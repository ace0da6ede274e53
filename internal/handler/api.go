package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dishcovery/dishcovery-client/internal/backend"
	"github.com/dishcovery/dishcovery-client/internal/domain"
	"github.com/dishcovery/dishcovery-client/internal/metrics"
	"github.com/dishcovery/dishcovery-client/internal/orchestrator"
	"github.com/dishcovery/dishcovery-client/internal/recipes"
	"github.com/dishcovery/dishcovery-client/internal/settings"
	"github.com/dishcovery/dishcovery-client/internal/ui"
)

// DefaultMaxUploadBytes bounds the size of an uploaded photo.
const DefaultMaxUploadBytes = 10 << 20

// API is the local view API.
type API struct {
	settings     *settings.Store
	orchestrator *orchestrator.Orchestrator
	recipes      *recipes.Gateway
	metrics      *metrics.Collector
	console      *ui.Console
	logger       *slog.Logger
	maxUpload    int64
}

// Option is a functional option for configuring API.
type Option func(*API)

// WithRecipes enables the saved-recipe routes.
func WithRecipes(g *recipes.Gateway) Option {
	return func(a *API) {
		a.recipes = g
	}
}

// WithMetrics enables request metrics and GET /metrics.
func WithMetrics(m *metrics.Collector) Option {
	return func(a *API) {
		a.metrics = m
	}
}

// WithConsole echoes every request to the terminal.
func WithConsole(c *ui.Console) Option {
	return func(a *API) {
		a.console = c
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithMaxUploadBytes bounds uploaded photos.
func WithMaxUploadBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxUpload = n
		}
	}
}

// NewAPI creates the local API over a hydrated settings store and an orchestrator.
func NewAPI(store *settings.Store, orch *orchestrator.Orchestrator, opts ...Option) *API {
	a := &API{
		settings:     store,
		orchestrator: orch,
		logger:       slog.Default(),
		maxUpload:    DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router builds the gin engine with every route and middleware.
func (a *API) Router() *gin.Engine {
	r := gin.New()
	r.Use(RecoveryMiddleware(a.logger))
	if a.metrics != nil {
		r.Use(MetricsMiddleware(a.metrics))
	}
	r.Use(LoggingMiddleware(a.logger, a.console))
	r.Use(CORSMiddleware())
	r.Use(IdentityMiddleware())

	r.GET("/health", a.handleHealth)
	if a.metrics != nil {
		r.GET("/metrics", gin.WrapH(a.metrics.Handler()))
	}

	api := r.Group("/api")
	api.GET("/providers", a.handleProviders)

	api.GET("/settings", a.handleGetSettings)
	api.PUT("/settings", a.handlePutSettings)
	api.DELETE("/settings", a.handleResetSettings)
	api.POST("/settings/validate-key", a.handleValidateKey)

	api.POST("/generate", a.handleGenerate)
	api.GET("/state", a.handleState)
	api.POST("/generate/dismiss", a.handleDismiss)

	if a.recipes != nil {
		a.registerRecipeRoutes(api)
	}
	return r
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"settingsReady": a.settings.IsReady(),
	})
}

func (a *API) handleProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": domain.Providers()})
}

// settingsView is the masked settings state.
func (a *API) settingsView() domain.SettingsState {
	state := a.settings.State()
	state.Settings = a.settings.MaskedSettings()
	return state
}

func (a *API) handleGetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, a.settingsView())
}

func (a *API) handlePutSettings(c *gin.Context) {
	var candidate domain.PartialSettings
	if err := c.ShouldBindJSON(&candidate); err != nil {
		renderError(c, domain.WrapAPIError(CodeBadRequest, "Invalid settings body.", "", err))
		return
	}
	if _, err := a.settings.Save(c.Request.Context(), candidate); err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.settingsView())
}

func (a *API) handleResetSettings(c *gin.Context) {
	if _, err := a.settings.Reset(c.Request.Context()); err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.settingsView())
}

// handleValidateKey checks the saved key, or the candidate in the body when given.
// A rejected key is a 200 with valid=false.
func (a *API) handleValidateKey(c *gin.Context) {
	var candidate domain.PartialSettings
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&candidate); err != nil && !errors.Is(err, io.EOF) {
			renderError(c, domain.WrapAPIError(CodeBadRequest, "Invalid key validation body.", "", err))
			return
		}
	}
	result, err := a.orchestrator.VerifyKey(c.Request.Context(), candidate)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleGenerate runs one generation from a multipart form with exactly one of
// file, text_prompt or image_url.
func (a *API) handleGenerate(c *gin.Context) {
	input := domain.GenerationInput{
		TextPrompt: c.PostForm("text_prompt"),
		ImageURL:   c.PostForm("image_url"),
	}

	fh, err := c.FormFile("file")
	switch {
	case err == nil:
		if fh.Size > a.maxUpload {
			renderError(c, domain.NewAPIError(CodePayloadTooLarge, "The photo is too large.", ""))
			return
		}
		f, err := fh.Open()
		if err != nil {
			renderError(c, domain.WrapAPIError(domain.CodeImageMissing, backend.MsgUnreadable, "", err))
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, a.maxUpload))
		f.Close()
		if err != nil {
			renderError(c, domain.WrapAPIError(domain.CodeImageMissing, backend.MsgUnreadable, "", err))
			return
		}
		input.Image = &domain.ImageInput{
			Bytes:    data,
			Filename: fh.Filename,
			MIMEType: fh.Header.Get("Content-Type"),
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		renderError(c, domain.WrapAPIError(CodeBadRequest, "Invalid upload.", "", err))
		return
	}

	result, err := a.orchestrator.Generate(c.Request.Context(), input, strings.TrimSpace(c.PostForm("language")))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a *API) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, a.orchestrator.Snapshot())
}

func (a *API) handleDismiss(c *gin.Context) {
	a.orchestrator.Dismiss()
	c.JSON(http.StatusOK, a.orchestrator.Snapshot())
}
