package domain

import "time"

// Field names used as keys in validation error maps.
const (
	FieldProvider   = "provider"
	FieldAPIKey     = "apiKey"
	FieldAPIBaseURL = "apiBaseUrl"
	FieldModel      = "model"
)

// FieldOrder is the order in which settings fields are checked and reported.
var FieldOrder = []string{FieldProvider, FieldAPIKey, FieldAPIBaseURL, FieldModel}

// ModelDescriptor is a model offered by a provider for a validated key.
type ModelDescriptor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Settings is the device-local provider configuration.
//
// IsKeyValidated and AvailableModels always describe the current
// Provider/APIKey pair; they are derived, never set directly by callers.
type Settings struct {
	Provider        ProviderID        `json:"provider"`
	APIKey          string            `json:"apiKey"`
	APIBaseURL      string            `json:"apiBaseUrl"`
	Model           string            `json:"model"`
	AvailableModels []ModelDescriptor `json:"availableModels"`
	IsKeyValidated  bool              `json:"isKeyValidated"`
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	cp := s
	if s.AvailableModels != nil {
		cp.AvailableModels = make([]ModelDescriptor, len(s.AvailableModels))
		copy(cp.AvailableModels, s.AvailableModels)
	}
	return cp
}

// HasModel reports whether id is one of the available models.
func (s Settings) HasModel(id string) bool {
	for _, m := range s.AvailableModels {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Descriptor resolves the configured provider.
func (s Settings) Descriptor() (ProviderDescriptor, bool) {
	return LookupProvider(string(s.Provider))
}

// PartialSettings is a candidate update. Nil fields keep the current value.
type PartialSettings struct {
	Provider   *string `json:"provider,omitempty"`
	APIKey     *string `json:"apiKey,omitempty"`
	APIBaseURL *string `json:"apiBaseUrl,omitempty"`
	Model      *string `json:"model,omitempty"`
}

// StringPtr is a helper for building PartialSettings literals.
func StringPtr(s string) *string {
	return &s
}

// ValidationResult is the outcome of validating a candidate. Errors are data.
type ValidationResult struct {
	Sanitized Settings          `json:"sanitized"`
	Errors    map[string]string `json:"errors"`
}

// OK reports whether no field failed validation.
func (r ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

// FirstError returns the message of the first failing field in FieldOrder.
func (r ValidationResult) FirstError() (field, message string) {
	for _, f := range FieldOrder {
		if msg, ok := r.Errors[f]; ok {
			return f, msg
		}
	}
	return "", ""
}

// SettingsState is a read-only view of the store for the presentation layer.
type SettingsState struct {
	Settings    Settings          `json:"settings"`
	Errors      map[string]string `json:"errors"`
	LastSavedAt *time.Time        `json:"lastSavedAt,omitempty"`
	IsReady     bool              `json:"isReady"`
}
