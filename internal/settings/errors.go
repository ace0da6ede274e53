package settings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dishcovery/dishcovery-client/internal/domain"
)

// ValidationError is returned by Save when a candidate is rejected.
// Nothing is persisted or committed when it is returned.
type ValidationError struct {
	Errors map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, field := range domain.FieldOrder {
		if msg, ok := e.Errors[field]; ok {
			parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
		}
	}
	if len(parts) == 1 {
		return "settings validation failed: " + parts[0]
	}
	return fmt.Sprintf("settings validation failed with %d errors: %s", len(parts), strings.Join(parts, "; "))
}

// HasError reports whether field failed validation.
func (e *ValidationError) HasError(field string) bool {
	_, ok := e.Errors[field]
	return ok
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
