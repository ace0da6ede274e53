// Package settings owns the device-local provider configuration: validation,
// sanitization and the persisted lifecycle (hydrate, save, reset).
package settings

import (
	"net"
	"net/url"
	"strings"

	"github.com/dishcovery/dishcovery-client/internal/domain"
)

// Base URL validation messages.
const (
	MsgBaseURLRequired = "API base URL is required."
	MsgBaseURLScheme   = "API URL must start with http:// or https://."
	MsgBaseURLInvalid  = "Enter a valid API URL (e.g., http://localhost:5001)."
	MsgModelNotListed  = "Select one of the models available for this key."
)

// Defaults returns the first-run settings for the given base URL.
func Defaults(baseURL string) domain.Settings {
	sanitized, _ := SanitizeBaseURL(baseURL)
	return domain.Settings{
		Provider:        domain.DefaultProvider,
		APIBaseURL:      sanitized,
		Model:           domain.MustProvider(domain.DefaultProvider).DefaultModel,
		AvailableModels: []domain.ModelDescriptor{},
	}
}

// Validate merges candidate over current and checks the result.
//
// The function is pure: it never performs I/O and never fails; every problem
// is reported in the returned error map. Sanitization always runs, so the
// sanitized value is meaningful even when some fields are invalid.
func Validate(current domain.Settings, candidate domain.PartialSettings) domain.ValidationResult {
	merged := current.Clone()
	if merged.AvailableModels == nil {
		merged.AvailableModels = []domain.ModelDescriptor{}
	}

	if candidate.Provider != nil {
		merged.Provider = domain.ProviderID(*candidate.Provider)
	}
	if candidate.APIKey != nil {
		merged.APIKey = *candidate.APIKey
	}
	if candidate.APIBaseURL != nil {
		merged.APIBaseURL = *candidate.APIBaseURL
	}
	if candidate.Model != nil {
		merged.Model = *candidate.Model
	}

	errs := make(map[string]string)

	// 1. Provider
	descriptor, known := domain.LookupProvider(string(merged.Provider))
	if known {
		merged.Provider = descriptor.ID
	} else {
		errs[domain.FieldProvider] = domain.MsgUnknownProvider
	}

	// 2. API key
	merged.APIKey = strings.TrimSpace(merged.APIKey)
	if known {
		if msg := descriptor.CheckKey(merged.APIKey); msg != "" {
			errs[domain.FieldAPIKey] = msg
		}
	} else {
		errs[domain.FieldAPIKey] = domain.MsgKeyRequiredUnknown
	}

	// 3. Base URL
	baseURL, baseErr := SanitizeBaseURL(merged.APIBaseURL)
	merged.APIBaseURL = baseURL
	if baseErr != "" {
		errs[domain.FieldAPIBaseURL] = baseErr
	}

	// Derived fields only ever describe the current provider/key pair.
	providerChanged := merged.Provider != current.Provider
	keyChanged := merged.APIKey != strings.TrimSpace(current.APIKey)
	if providerChanged || keyChanged {
		merged.IsKeyValidated = false
		merged.AvailableModels = []domain.ModelDescriptor{}
		if providerChanged && candidate.Model == nil {
			merged.Model = ""
		}
	}

	// 4. Model
	merged.Model = normalizeModel(merged.Model, descriptor, known)
	if merged.IsKeyValidated && len(merged.AvailableModels) > 0 && !merged.HasModel(merged.Model) {
		errs[domain.FieldModel] = MsgModelNotListed
	}

	return domain.ValidationResult{Sanitized: merged, Errors: errs}
}

// SanitizeBaseURL normalizes raw to scheme://host[:port]/path without a
// trailing slash. It returns "" and a user-facing message when raw is unusable.
func SanitizeBaseURL(raw string) (string, string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", MsgBaseURLRequired
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", MsgBaseURLInvalid
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		return "", MsgBaseURLInvalid
	}
	if scheme != "http" && scheme != "https" {
		return "", MsgBaseURLScheme
	}
	if u.Host == "" || u.Hostname() == "" {
		return "", MsgBaseURLInvalid
	}

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	path := strings.TrimRight(u.EscapedPath(), "/")
	return scheme + "://" + host + path, ""
}

func normalizeModel(model string, descriptor domain.ProviderDescriptor, known bool) string {
	trimmed := strings.TrimSpace(model)
	if trimmed != "" {
		return trimmed
	}
	if known {
		return descriptor.DefaultModel
	}
	return ""
}
