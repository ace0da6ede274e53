package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/dishcovery/dishcovery-client/internal/backend"
	"github.com/dishcovery/dishcovery-client/internal/domain"
	"github.com/dishcovery/dishcovery-client/internal/settings"
)

// User-facing messages owned by the orchestrator.
const (
	MsgInProgress         = "A recipe is already being generated. Please wait."
	MsgSuperseded         = "This request was replaced by a newer one."
	MsgNoImage            = "No image provided. Please select a photo."
	MsgSettingsIncomplete = "Finish setting up your AI provider before generating a recipe."
	MsgSettingsInvalid    = "Your AI provider settings are invalid."
	MsgImageGeneration    = "Could not generate an image for this dish."
	MsgNoRecipe           = "Generate a recipe before saving it."
	MsgSavingUnavailable  = "Saving recipes is not available right now."

	outcomeServerError = "server_error"

	DefaultImageSize = "1024x1024"
	DefaultLanguage  = "en"
)

// SettingsSource is the part of the settings store the orchestrator needs.
type SettingsSource interface {
	Current() domain.Settings
	Validate(candidate domain.PartialSettings) domain.ValidationResult
	ApplyKeyValidation(ctx context.Context, base domain.Settings, provider, apiKey, baseURL string, models []domain.ModelDescriptor) (domain.Settings, error)
}

// Backend is the remote recipe service.
type Backend interface {
	BuildRecipe(ctx context.Context, req domain.GenerationRequest) (*backend.MultipartPayload, error)
	SendRecipe(ctx context.Context, baseURL string, payload *backend.MultipartPayload) (*domain.GenerationResult, error)
	GenerateImage(ctx context.Context, req domain.ImageRequest) (*domain.ImageResult, error)
	ValidateKey(ctx context.Context, baseURL, provider, apiKey string) (*domain.KeyValidation, error)
}

// RecipeSaver persists a generated recipe on explicit user action.
type RecipeSaver interface {
	Save(ctx context.Context, result domain.GenerationResult) (domain.RecordID, error)
}

// Recorder receives generation metrics. *metrics.Collector implements it.
type Recorder interface {
	ObserveGeneration(provider, outcome string)
	ObservePhase(provider, phase string, d time.Duration)
	ObserveKeyValidation(provider, result string)
}

// Config wires the orchestrator's collaborators. Settings and Backend are required.
type Config struct {
	Settings  SettingsSource
	Backend   Backend
	Recipes   RecipeSaver
	Metrics   Recorder
	Logger    *slog.Logger
	ImageSize string
	Language  string
}

// Orchestrator runs at most one generation at a time.
//
// Every generation gets a correlation token. Results are only applied while
// their token is current; Dismiss and a completed generation both move the
// token on, so a late response can never overwrite newer state.
type Orchestrator struct {
	cfg Config

	mu     sync.Mutex
	snap   Snapshot
	subs   map[int]func(Snapshot)
	nextID int

	keyMu    sync.Mutex
	keyToken string
	verify   singleflight.Group
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Settings == nil {
		return nil, errors.New("orchestrator: settings source is required")
	}
	if cfg.Backend == nil {
		return nil, errors.New("orchestrator: backend is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopRecorder{}
	}
	if cfg.ImageSize == "" {
		cfg.ImageSize = DefaultImageSize
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	return &Orchestrator{
		cfg:  cfg,
		snap: Snapshot{State: StateIdle},
		subs: make(map[int]func(Snapshot)),
	}, nil
}

// Subscribe registers fn to receive every snapshot change. The returned
// function removes the subscription.
func (o *Orchestrator) Subscribe(fn func(Snapshot)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextID
	o.nextID++
	o.subs[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subs, id)
	}
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snap
}

// Dismiss drops interest in the current generation and returns to Idle.
// An in-flight request is not aborted; its response is discarded on arrival.
func (o *Orchestrator) Dismiss() {
	o.mu.Lock()
	o.snap = Snapshot{State: StateIdle, Token: newToken()}
	snap, subs := o.snap, o.subscribers()
	o.mu.Unlock()
	publish(subs, snap)
}

// Generate runs one generation for input.
//
// It returns generation_in_progress while another generation is busy and
// superseded when Dismiss was called before the response arrived. Any other
// error is the normalized failure that is also published as a Failed snapshot.
func (o *Orchestrator) Generate(ctx context.Context, input domain.GenerationInput, language string) (*domain.GenerationResult, error) {
	token, err := o.begin()
	if err != nil {
		return nil, err
	}

	// Validating
	switch n := input.Populated(); {
	case n == 0:
		code, msg := domain.CodeMissingInput, backend.MsgNoInput
		if input.Image != nil {
			code, msg = domain.CodeImageMissing, MsgNoImage
		}
		return nil, o.fail(token, "", domain.NewAPIError(code, msg, ""))
	case n > 1:
		return nil, o.fail(token, "", domain.NewAPIError(domain.CodeAmbiguousInput, backend.MsgAmbiguousInput, ""))
	}

	check := o.cfg.Settings.Validate(domain.PartialSettings{})
	if !check.OK() {
		_, hint := check.FirstError()
		return nil, o.fail(token, string(check.Sanitized.Provider),
			domain.NewAPIError(domain.CodeSettingsIncomplete, MsgSettingsIncomplete, hint))
	}
	current := check.Sanitized
	descriptor, _ := current.Descriptor()
	provider := string(current.Provider)

	if strings.TrimSpace(language) == "" {
		language = o.cfg.Language
	}
	req := domain.GenerationRequest{
		Input:    input,
		Provider: provider,
		APIKey:   current.APIKey,
		Model:    current.Model,
		Language: language,
		BaseURL:  current.APIBaseURL,
	}

	// Two-phase flow: render the prompt as an image first.
	var imageURI string
	if descriptor.RequiresGeneratedImage && input.IsTextPrompt() {
		image, err := o.generateImage(ctx, token, current, input.TextPrompt)
		if err != nil {
			return nil, err
		}
		imageURI = image.ImageURL
		req.Input = domain.GenerationInput{ImageURL: image.ImageURL}
	}

	if err := o.transition(token, StateBuilding, PhaseRecipe); err != nil {
		return nil, err
	}
	payload, err := o.cfg.Backend.BuildRecipe(ctx, req)
	if err != nil {
		return nil, o.fail(token, provider, domain.AsAPIError(err))
	}

	if err := o.transition(token, StateSending, PhaseRecipe); err != nil {
		return nil, err
	}
	if err := o.transition(token, StateAwaitingResponse, PhaseRecipe); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := o.cfg.Backend.SendRecipe(ctx, req.BaseURL, payload)
	o.cfg.Metrics.ObservePhase(provider, string(PhaseRecipe), time.Since(start))
	if err != nil {
		return nil, o.fail(token, provider, domain.AsAPIError(err))
	}

	result.ImageURI = imageURI
	switch {
	case result.ImageURI != "":
	case strings.TrimSpace(input.ImageURL) != "":
		result.ImageURI = strings.TrimSpace(input.ImageURL)
	case input.Image != nil:
		result.ImageURI = input.Image.URI
	}
	if err := o.succeed(token, provider, result); err != nil {
		return nil, err
	}
	return result, nil
}

// generateImage runs phase one. A failure stops the generation; it never
// falls through to the recipe request.
func (o *Orchestrator) generateImage(ctx context.Context, token string, current domain.Settings, prompt string) (*domain.ImageResult, error) {
	provider := string(current.Provider)
	if err := o.transition(token, StateBuilding, PhaseImage); err != nil {
		return nil, err
	}
	if err := o.transition(token, StateSending, PhaseImage); err != nil {
		return nil, err
	}
	if err := o.transition(token, StateAwaitingResponse, PhaseImage); err != nil {
		return nil, err
	}

	start := time.Now()
	image, err := o.cfg.Backend.GenerateImage(ctx, domain.ImageRequest{
		Prompt:   prompt,
		Provider: provider,
		APIKey:   current.APIKey,
		Size:     o.cfg.ImageSize,
		BaseURL:  current.APIBaseURL,
	})
	o.cfg.Metrics.ObservePhase(provider, string(PhaseImage), time.Since(start))
	if err != nil {
		cause := domain.AsAPIError(err)
		wrapped := domain.WrapAPIError(domain.CodeImageGenerationFailed, MsgImageGeneration, cause.Message, err).
			WithStatus(cause.HTTPStatus)
		return nil, o.fail(token, provider, wrapped)
	}
	o.cfg.Logger.Info("image phase complete", "provider", provider, "token", token)
	return image, nil
}

// VerifyKey checks candidate's provider and key against the backend.
//
// Identical concurrent checks share one request; a caller that gives up only
// cancels its own wait. A valid result is applied to the settings only if no
// newer VerifyKey started and the saved credentials did not change meanwhile.
// Stale results are still returned to their caller.
func (o *Orchestrator) VerifyKey(ctx context.Context, candidate domain.PartialSettings) (*domain.KeyValidation, error) {
	base := o.cfg.Settings.Current()
	merged := settings.Validate(base, candidate).Sanitized
	provider, apiKey, baseURL := string(merged.Provider), merged.APIKey, merged.APIBaseURL

	token := newToken()
	o.keyMu.Lock()
	o.keyToken = token
	o.keyMu.Unlock()

	shared := context.WithoutCancel(ctx)
	ch := o.verify.DoChan(provider+"\x00"+apiKey+"\x00"+baseURL, func() (any, error) {
		return o.cfg.Backend.ValidateKey(shared, baseURL, provider, apiKey)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		o.cfg.Metrics.ObserveKeyValidation(provider, domain.CodeNetworkError)
		return nil, domain.WrapAPIError(domain.CodeNetworkError, domain.MsgNetworkError, "", ctx.Err())
	}
	if res.Err != nil {
		apiErr := domain.AsAPIError(res.Err)
		o.cfg.Metrics.ObserveKeyValidation(provider, metricOutcome(apiErr.Code))
		return nil, apiErr
	}

	cp := *res.Val.(*domain.KeyValidation)
	result := &cp
	result.Models = append([]domain.ModelDescriptor(nil), result.Models...)

	if !result.Valid {
		o.cfg.Metrics.ObserveKeyValidation(provider, "invalid")
		return result, nil
	}

	o.keyMu.Lock()
	defer o.keyMu.Unlock()
	if o.keyToken != token {
		o.cfg.Logger.Debug("discarding stale key validation", "provider", provider, "shared", res.Shared)
		o.cfg.Metrics.ObserveKeyValidation(provider, "stale")
		return result, nil
	}

	if _, err := o.cfg.Settings.ApplyKeyValidation(ctx, base, provider, apiKey, baseURL, result.Models); err != nil {
		if errors.Is(err, settings.ErrStale) {
			o.cfg.Logger.Debug("settings changed during key validation", "provider", provider)
			o.cfg.Metrics.ObserveKeyValidation(provider, "stale")
			return result, nil
		}
		var ve *settings.ValidationError
		if errors.As(err, &ve) {
			_, hint := domain.ValidationResult{Errors: ve.Errors}.FirstError()
			return result, domain.WrapAPIError(domain.CodeSettingsInvalid, MsgSettingsInvalid, hint, err)
		}
		return result, domain.AsAPIError(err)
	}
	o.cfg.Metrics.ObserveKeyValidation(provider, "valid")
	return result, nil
}

// SaveLastRecipe persists the result of the last successful generation.
func (o *Orchestrator) SaveLastRecipe(ctx context.Context) (domain.RecordID, error) {
	o.mu.Lock()
	snap := o.snap
	o.mu.Unlock()

	if snap.State != StateSuccess || snap.Result == nil {
		return "", domain.NewAPIError(domain.CodeNoRecipe, MsgNoRecipe, "")
	}
	if o.cfg.Recipes == nil {
		return "", domain.NewAPIError(domain.CodeStorageError, MsgSavingUnavailable, "")
	}
	return o.cfg.Recipes.Save(ctx, *snap.Result)
}

// begin claims the busy flag and issues a new token.
func (o *Orchestrator) begin() (string, error) {
	o.mu.Lock()
	if o.snap.Busy {
		o.mu.Unlock()
		return "", domain.NewAPIError(domain.CodeGenerationInProgress, MsgInProgress, "")
	}
	token := newToken()
	o.snap = Snapshot{State: StateValidating, Busy: true, Token: token}
	snap, subs := o.snap, o.subscribers()
	o.mu.Unlock()

	o.cfg.Logger.Debug("generation started", "token", token)
	publish(subs, snap)
	return token, nil
}

// transition moves a live generation to state. It fails with superseded when token is stale.
func (o *Orchestrator) transition(token string, state State, phase Phase) error {
	o.mu.Lock()
	if o.snap.Token != token {
		o.mu.Unlock()
		return supersededError()
	}
	o.snap.State = state
	o.snap.Phase = phase
	snap, subs := o.snap, o.subscribers()
	o.mu.Unlock()

	publish(subs, snap)
	return nil
}

// fail publishes a Failed snapshot and returns apiErr, or superseded when token is stale.
func (o *Orchestrator) fail(token, provider string, apiErr *domain.APIError) error {
	o.mu.Lock()
	if o.snap.Token != token {
		o.mu.Unlock()
		return supersededError()
	}
	o.snap = Snapshot{
		State:        StateFailed,
		Phase:        o.snap.Phase,
		Error:        apiErr,
		ShowSettings: apiErr.RevealsSettings(),
		Token:        token,
	}
	snap, subs := o.snap, o.subscribers()
	o.mu.Unlock()

	if provider != "" {
		o.cfg.Metrics.ObserveGeneration(provider, metricOutcome(apiErr.Code))
	}
	o.cfg.Logger.Warn("generation failed",
		"token", token,
		"provider", provider,
		"code", apiErr.Code,
		"status", apiErr.HTTPStatus,
		"cause", apiErr.Cause(),
	)
	publish(subs, snap)
	return apiErr
}

func (o *Orchestrator) succeed(token, provider string, result *domain.GenerationResult) error {
	o.mu.Lock()
	if o.snap.Token != token {
		o.mu.Unlock()
		return supersededError()
	}
	o.snap = Snapshot{State: StateSuccess, Phase: PhaseRecipe, Result: result, Token: token}
	snap, subs := o.snap, o.subscribers()
	o.mu.Unlock()

	o.cfg.Metrics.ObserveGeneration(provider, "success")
	title := ""
	if result.Recipe != nil {
		title = result.Recipe.Title
	}
	o.cfg.Logger.Info("recipe generated", "token", token, "provider", provider, "title", title)
	publish(subs, snap)
	return nil
}

// subscribers must be called with o.mu held.
func (o *Orchestrator) subscribers() []func(Snapshot) {
	out := make([]func(Snapshot), 0, len(o.subs))
	for _, fn := range o.subs {
		out = append(out, fn)
	}
	return out
}

func publish(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}

// metricOutcome keeps metric labels bounded. Codes the backend invents are
// counted as server_error.
func metricOutcome(code string) string {
	if domain.IsKnownCode(code) {
		return code
	}
	return outcomeServerError
}

func supersededError() *domain.APIError {
	return domain.NewAPIError(domain.CodeSuperseded, MsgSuperseded, "")
}

func newToken() string {
	return uuid.Must(uuid.NewV7()).String()
}

type nopRecorder struct{}

func (nopRecorder) ObserveGeneration(string, string)           {}
func (nopRecorder) ObservePhase(string, string, time.Duration) {}
func (nopRecorder) ObserveKeyValidation(string, string)        {}
