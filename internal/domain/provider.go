// Package domain contains the core business entities and value objects.
// These structs are framework-agnostic and represent the heart of the application.
package domain

import (
	"fmt"
	"strings"
)

// ProviderID identifies a supported AI provider (e.g., Gemini, OpenAI, Anthropic).
type ProviderID string

const (
	ProviderGemini    ProviderID = "gemini"
	ProviderOpenAI    ProviderID = "openai"
	ProviderAnthropic ProviderID = "anthropic"
)

// DefaultProvider is selected on first run.
const DefaultProvider = ProviderGemini

// ProviderDescriptor describes a provider and the rules its API keys must follow.
// Descriptors are static; callers must not mutate the slices they expose.
type ProviderDescriptor struct {
	// ID is the stable identifier persisted in settings and sent to the backend.
	ID ProviderID `json:"id"`

	// Label is the human-readable provider name.
	Label string `json:"label"`

	// Description is a one-line summary shown next to the provider picker.
	Description string `json:"description"`

	// DefaultModel is used until a key has been validated and a model picked.
	DefaultModel string `json:"defaultModel"`

	// KeyPrefixes lists accepted key prefixes; a key must match at least one.
	KeyPrefixes []string `json:"keyPrefixes"`

	// MinKeyLength is the shortest key accepted after trimming.
	MinKeyLength int `json:"minKeyLength"`

	// KeyHint explains where keys for this provider come from.
	KeyHint string `json:"keyHint"`

	// RequiresGeneratedImage is true when text prompts must first be turned
	// into an image before a recipe can be generated.
	RequiresGeneratedImage bool `json:"requiresGeneratedImage"`

	// keyPrefixError is returned when a key does not match KeyPrefixes.
	keyPrefixError string
}

var providerCatalog = []ProviderDescriptor{
	{
		ID:             ProviderGemini,
		Label:          "Google Gemini",
		Description:    "Gemini Vision via Google AI Studio",
		DefaultModel:   "gemini-2.5-flash",
		KeyPrefixes:    []string{"AI"},
		MinKeyLength:   12,
		KeyHint:        `Keys start with "AI" and are generated in Google AI Studio.`,
		keyPrefixError: `Gemini keys should start with "AI" (Google AI Studio).`,
	},
	{
		ID:                     ProviderOpenAI,
		Label:                  "OpenAI GPT-4o",
		Description:            "Vision-enabled GPT models from OpenAI",
		DefaultModel:           "gpt-4o-mini",
		KeyPrefixes:            []string{"sk-", "sk-proj-"},
		MinKeyLength:           12,
		KeyHint:                `Keys begin with "sk-" or "sk-proj-" and are managed in the OpenAI dashboard.`,
		RequiresGeneratedImage: true,
		keyPrefixError:         `OpenAI keys typically start with "sk-" or "sk-proj-".`,
	},
	{
		ID:             ProviderAnthropic,
		Label:          "Anthropic Claude",
		Description:    "Claude 3 vision models",
		DefaultModel:   "claude-3-sonnet-20240229",
		KeyPrefixes:    []string{"sk-ant-"},
		MinKeyLength:   12,
		KeyHint:        `Keys start with "sk-ant-" and are available in the Anthropic console.`,
		keyPrefixError: `Anthropic keys should start with "sk-ant-".`,
	},
}

// Key validation messages shared by all providers.
const (
	MsgUnknownProvider    = "Select a supported AI provider."
	MsgKeyRequiredUnknown = "API key is required for the selected provider."
	MsgKeyEmpty           = "Enter an API key for this provider."
	MsgKeyTooShort        = "API key looks too short. Double-check and paste the full value."
)

// Providers returns every supported provider in display order.
func Providers() []ProviderDescriptor {
	out := make([]ProviderDescriptor, len(providerCatalog))
	copy(out, providerCatalog)
	return out
}

// LookupProvider resolves a provider by id or label, ignoring case and surrounding whitespace.
func LookupProvider(name string) (ProviderDescriptor, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return ProviderDescriptor{}, false
	}
	for _, p := range providerCatalog {
		if string(p.ID) == normalized || strings.ToLower(p.Label) == normalized {
			return p, true
		}
	}
	return ProviderDescriptor{}, false
}

// MustProvider returns the descriptor for id and panics if it is not in the catalog.
func MustProvider(id ProviderID) ProviderDescriptor {
	p, ok := LookupProvider(string(id))
	if !ok {
		panic(fmt.Sprintf("domain: unknown provider %q", id))
	}
	return p
}

// CheckKey returns a human-readable problem with key, or "" when the key is acceptable.
// The key is expected to be trimmed already.
func (p ProviderDescriptor) CheckKey(key string) string {
	if key == "" {
		return MsgKeyEmpty
	}

	matched := len(p.KeyPrefixes) == 0
	for _, prefix := range p.KeyPrefixes {
		if strings.HasPrefix(key, prefix) {
			matched = true
			break
		}
	}
	if !matched {
		return p.keyPrefixError
	}

	if len(key) < p.MinKeyLength {
		return MsgKeyTooShort
	}
	return ""
}

// IsValid checks if the descriptor has all required fields.
func (p ProviderDescriptor) IsValid() bool {
	return p.ID != "" && p.Label != "" && p.DefaultModel != ""
}
