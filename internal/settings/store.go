package settings

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/dishcovery/dishcovery-client/internal/domain"
)

// DefaultStorageKey is the versioned key the settings blob lives under.
const DefaultStorageKey = "@dishcovery/settings/v1"

// MsgPersistFailed is surfaced when the durable write fails.
const MsgPersistFailed = "Could not save settings on this device. Please try again."

// ErrStale is returned by ApplyKeyValidation when the saved provider, key or
// base URL changed after the check started.
var ErrStale = errors.New("settings: changed since the key check started")

// Store manages the persisted, validated settings of one device.
//
// Writes follow write-then-commit ordering: the durable copy is replaced
// first and the in-memory view only changes once that write succeeded, so
// after a crash the persisted blob is authoritative on the next Hydrate.
type Store struct {
	mu          sync.RWMutex
	storage     Storage
	key         string
	defaults    domain.Settings
	current     domain.Settings
	errors      map[string]string
	lastSavedAt *time.Time
	hydrated    bool
	loadErr     error

	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithStorageKey overrides DefaultStorageKey.
func WithStorageKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithClock sets the time source used for LastSavedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store holding defaults until Hydrate is called.
func NewStore(storage Storage, defaultBaseURL string, opts ...Option) *Store {
	defaults := Defaults(defaultBaseURL)
	s := &Store{
		storage:  storage,
		key:      DefaultStorageKey,
		defaults: defaults,
		current:  defaults.Clone(),
		errors:   map[string]string{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate loads the persisted blob. Unparseable data yields defaults without
// an error; individual fields of the wrong type or shape fall back to their
// default. Only a storage read failure is returned, and defaults are still
// installed in that case.
func (s *Store) Hydrate(ctx context.Context) (domain.Settings, error) {
	raw, err := s.storage.Get(ctx, s.key)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.hydrated = true

	switch {
	case errors.Is(err, ErrNotFound):
		s.current = s.defaults.Clone()
		s.errors = map[string]string{}
		return s.current.Clone(), nil
	case err != nil:
		s.logger.Warn("settings load failed, using defaults", "error", err)
		s.current = s.defaults.Clone()
		s.errors = map[string]string{}
		s.loadErr = err
		return s.current.Clone(), err
	}

	loaded := s.decode(raw)
	result := Validate(loaded, domain.PartialSettings{})
	sanitized := result.Sanitized

	if _, bad := result.Errors[domain.FieldModel]; bad {
		sanitized.Model = pickModel(sanitized.Model, sanitized.Provider, sanitized.AvailableModels)
		delete(result.Errors, domain.FieldModel)
	}

	s.current = sanitized
	s.errors = result.Errors
	s.loadErr = nil

	s.logger.Debug("settings hydrated",
		"provider", sanitized.Provider,
		"model", sanitized.Model,
		"key_validated", sanitized.IsKeyValidated,
		"errors", len(result.Errors),
	)
	return s.current.Clone(), nil
}

// decode reads the blob field by field over the defaults.
func (s *Store) decode(raw []byte) domain.Settings {
	out := s.defaults.Clone()
	if !gjson.ValidBytes(raw) {
		s.logger.Warn("persisted settings are not valid JSON, using defaults")
		return out
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return out
	}

	if v := root.Get("provider"); v.Type == gjson.String && v.Str != "" {
		out.Provider = domain.ProviderID(v.Str)
		if p, ok := domain.LookupProvider(v.Str); ok {
			out.Provider = p.ID
		}
	}
	if v := root.Get("apiKey"); v.Type == gjson.String {
		out.APIKey = strings.TrimSpace(v.Str)
	}
	if v := root.Get("apiBaseUrl"); v.Type == gjson.String {
		if sanitized, msg := SanitizeBaseURL(v.Str); msg == "" {
			out.APIBaseURL = sanitized
		}
	}
	if v := root.Get("model"); v.Type == gjson.String {
		out.Model = v.Str
	}
	if v := root.Get("isKeyValidated"); v.IsBool() {
		out.IsKeyValidated = v.Bool()
	}
	if v := root.Get("availableModels"); v.IsArray() {
		models := []domain.ModelDescriptor{}
		v.ForEach(func(_, item gjson.Result) bool {
			id := item.Get("id")
			if id.Type != gjson.String || id.Str == "" {
				return true
			}
			name := item.Get("name").String()
			if name == "" {
				name = id.Str
			}
			models = append(models, domain.ModelDescriptor{ID: id.Str, Name: name})
			return true
		})
		out.AvailableModels = models
	}
	if !out.IsKeyValidated {
		out.AvailableModels = []domain.ModelDescriptor{}
	}
	return out
}

// Validate merges candidate over the current settings. It has no side effects.
func (s *Store) Validate(candidate domain.PartialSettings) domain.ValidationResult {
	return Validate(s.Current(), candidate)
}

// Save validates candidate and persists the sanitized result.
// A rejected candidate returns *ValidationError and changes nothing.
func (s *Store) Save(ctx context.Context, candidate domain.PartialSettings) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := Validate(s.current, candidate)
	if !result.OK() {
		return domain.Settings{}, &ValidationError{Errors: result.Errors}
	}
	if err := s.commit(ctx, result.Sanitized); err != nil {
		return domain.Settings{}, err
	}
	s.logger.Info("settings saved",
		"provider", result.Sanitized.Provider,
		"model", result.Sanitized.Model,
		"key_validated", result.Sanitized.IsKeyValidated,
	)
	return s.current.Clone(), nil
}

// ApplyKeyValidation records a successful remote key check. It is the only
// path that sets IsKeyValidated and AvailableModels.
//
// base is the settings the check was started from. When the current provider,
// key or base URL no longer match it, nothing is written and ErrStale is returned.
func (s *Store) ApplyKeyValidation(ctx context.Context, base domain.Settings, provider, apiKey, baseURL string, models []domain.ModelDescriptor) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !sameCredentials(s.current, base) {
		return domain.Settings{}, ErrStale
	}

	candidate := domain.PartialSettings{
		Provider: domain.StringPtr(provider),
		APIKey:   domain.StringPtr(apiKey),
	}
	if baseURL != "" {
		candidate.APIBaseURL = domain.StringPtr(baseURL)
	}
	result := Validate(s.current, candidate)
	if !result.OK() {
		return domain.Settings{}, &ValidationError{Errors: result.Errors}
	}

	validated := result.Sanitized
	validated.IsKeyValidated = true
	validated.AvailableModels = make([]domain.ModelDescriptor, len(models))
	copy(validated.AvailableModels, models)
	validated.Model = pickModel(validated.Model, validated.Provider, validated.AvailableModels)

	if err := s.commit(ctx, validated); err != nil {
		return domain.Settings{}, err
	}
	s.logger.Info("api key validated",
		"provider", validated.Provider,
		"models", len(validated.AvailableModels),
		"model", validated.Model,
	)
	return s.current.Clone(), nil
}

// Reset clears the persisted blob and reverts to defaults.
func (s *Store) Reset(ctx context.Context) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Remove(ctx, s.key); err != nil {
		return domain.Settings{}, domain.WrapAPIError(domain.CodeStorageError, MsgPersistFailed, "", err)
	}
	now := s.now()
	s.current = s.defaults.Clone()
	s.errors = map[string]string{}
	s.lastSavedAt = &now
	s.logger.Info("settings reset")
	return s.current.Clone(), nil
}

// commit must be called with s.mu held.
func (s *Store) commit(ctx context.Context, next domain.Settings) error {
	blob, err := json.Marshal(next)
	if err != nil {
		return domain.WrapAPIError(domain.CodeStorageError, MsgPersistFailed, "", err)
	}
	if err := s.storage.Set(ctx, s.key, blob); err != nil {
		s.logger.Error("settings write failed", "error", err)
		return domain.WrapAPIError(domain.CodeStorageError, MsgPersistFailed, "", err)
	}
	now := s.now()
	s.current = next.Clone()
	s.errors = map[string]string{}
	s.lastSavedAt = &now
	return nil
}

// Current returns a copy of the in-memory settings.
func (s *Store) Current() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// ValidationErrors returns the errors found by the last hydration.
func (s *Store) ValidationErrors() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.errors)
}

// LoadError returns the storage error of the last Hydrate, if any.
func (s *Store) LoadError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

// IsReady reports whether a generation can be attempted with the current settings.
func (s *Store) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hydrated && s.current.APIKey != "" && len(s.errors) == 0
}

// State returns a read-only snapshot for the presentation layer.
func (s *Store) State() domain.SettingsState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := domain.SettingsState{
		Settings: s.current.Clone(),
		Errors:   maps.Clone(s.errors),
		IsReady:  s.hydrated && s.current.APIKey != "" && len(s.errors) == 0,
	}
	if s.lastSavedAt != nil {
		t := *s.lastSavedAt
		state.LastSavedAt = &t
	}
	return state
}

// MaskedSettings returns the current settings with the API key masked for display.
func (s *Store) MaskedSettings() domain.Settings {
	cur := s.Current()
	cur.APIKey = MaskSecret(cur.APIKey)
	return cur
}

// MaskSecret keeps the last four characters of secret, e.g. "****abcd".
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

func sameCredentials(a, b domain.Settings) bool {
	return a.Provider == b.Provider && a.APIKey == b.APIKey && a.APIBaseURL == b.APIBaseURL
}

// pickModel keeps current when it is listed, else the provider default when
// listed, else the first available model.
func pickModel(current string, provider domain.ProviderID, models []domain.ModelDescriptor) string {
	if len(models) == 0 {
		return current
	}
	listed := func(id string) bool {
		for _, m := range models {
			if m.ID == id {
				return true
			}
		}
		return false
	}
	if current != "" && listed(current) {
		return current
	}
	if p, ok := domain.LookupProvider(string(provider)); ok && listed(p.DefaultModel) {
		return p.DefaultModel
	}
	return models[0].ID
}
