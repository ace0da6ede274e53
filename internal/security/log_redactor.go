// Package security keeps provider keys and deployment secrets out of log output.
package security

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
)

// RedactedPlaceholder replaces every secret found in log output.
const RedactedPlaceholder = "[REDACTED]"

// sensitivePatterns match the key shapes of the supported providers.
var sensitivePatterns = []*regexp.Regexp{
	// Anthropic keys: sk-ant-...
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{12,}`),
	// OpenAI keys: sk-... and sk-proj-...
	regexp.MustCompile(`sk-[a-zA-Z0-9_-]{12,}`),
	// Google AI keys: AIza...
	regexp.MustCompile(`AIza[a-zA-Z0-9_-]{20,}`),
	// Bearer tokens
	regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]{12,}`),
	// Keys in query strings and form bodies
	regexp.MustCompile(`(api_key|apiKey|key)=[^&\s"]{8,}`),
	// Deployment-protection bypass header echoed in dumps
	regexp.MustCompile(`(?i)x-vercel-protection-bypass:\s*\S+`),
}

var (
	secretsMu sync.RWMutex
	secrets   []string
)

// RegisterSecret makes Redact scrub s verbatim, e.g. a bypass token read from
// the environment. Values shorter than 8 characters are ignored.
func RegisterSecret(s string) {
	s = strings.TrimSpace(s)
	if len(s) < 8 {
		return
	}
	secretsMu.Lock()
	defer secretsMu.Unlock()
	for _, known := range secrets {
		if known == s {
			return
		}
	}
	secrets = append(secrets, s)
}

// Redact scans a string for sensitive patterns and replaces them.
func Redact(s string) string {
	secretsMu.RLock()
	for _, secret := range secrets {
		s = strings.ReplaceAll(s, secret, RedactedPlaceholder)
	}
	secretsMu.RUnlock()

	for _, pattern := range sensitivePatterns {
		s = pattern.ReplaceAllString(s, RedactedPlaceholder)
	}
	return s
}

// RedactedHandler wraps an slog.Handler and redacts sensitive data from log records.
type RedactedHandler struct {
	inner slog.Handler
}

// NewRedactedHandler creates a new handler that wraps an existing handler
// and redacts sensitive data from all log output.
func NewRedactedHandler(inner slog.Handler) *RedactedHandler {
	return &RedactedHandler{inner: inner}
}

// Enabled reports whether the handler handles records at the given level.
func (h *RedactedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle redacts the message and every attribute before passing r on.
func (h *RedactedHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, Redact(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

// WithAttrs returns a new handler with the given attributes added.
func (h *RedactedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &RedactedHandler{inner: h.inner.WithAttrs(redacted)}
}

// WithGroup returns a new handler with the given group name.
func (h *RedactedHandler) WithGroup(name string) slog.Handler {
	return &RedactedHandler{inner: h.inner.WithGroup(name)}
}

// redactAttr redacts sensitive data from a single attribute, descending into groups.
func redactAttr(a slog.Attr) slog.Attr {
	if isSensitiveKey(strings.ToLower(a.Key)) {
		return slog.String(a.Key, RedactedPlaceholder)
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, Redact(v.String()))
	case slog.KindGroup:
		group := v.Group()
		redacted := make([]any, len(group))
		for i, ga := range group {
			redacted[i] = redactAttr(ga)
		}
		return slog.Group(a.Key, redacted...)
	case slog.KindAny:
		switch x := v.Any().(type) {
		case error:
			return slog.String(a.Key, Redact(x.Error()))
		case []string:
			out := make([]string, len(x))
			for i, s := range x {
				out[i] = Redact(s)
			}
			return slog.Any(a.Key, out)
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

// sensitiveKeys are attribute names whose values are never logged.
var sensitiveKeys = []string{
	"authorization",
	"api_key",
	"apikey",
	"api-key",
	"secret",
	"password",
	"bypass",
	"bearer",
	"credential",
}

// isSensitiveKey checks if an attribute key is known to contain sensitive data.
func isSensitiveKey(key string) bool {
	for _, k := range sensitiveKeys {
		if strings.Contains(key, k) {
			return true
		}
	}
	return false
}
