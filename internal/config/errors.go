package config

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError is a failure to read or decode the configuration sources.
type ConfigError struct {
	Op  string // read, unmarshal, bind_env or bind_flags
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Problem is one rejected configuration key.
type Problem struct {
	Key     string
	Message string
}

func (p Problem) String() string {
	return p.Key + ": " + p.Message
}

// ValidationError collects every problem found by Configuration.Validate.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid configuration: " + e.Problems[0].String()
	}
	lines := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		lines[i] = p.String()
	}
	return fmt.Sprintf("invalid configuration (%d problems):\n  - %s", len(e.Problems), strings.Join(lines, "\n  - "))
}

// HasError reports whether key was rejected.
func (e *ValidationError) HasError(key string) bool {
	for _, p := range e.Problems {
		if p.Key == key {
			return true
		}
	}
	return false
}

func (e *ValidationError) add(key, format string, args ...any) {
	e.Problems = append(e.Problems, Problem{Key: key, Message: fmt.Sprintf(format, args...)})
}

// InvalidValueError is a value outside its allowed set.
type InvalidValueError struct {
	Key           string
	Value         any
	AllowedValues []string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%q is not one of %s", e.Value, strings.Join(e.AllowedValues, ", "))
}

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConfigError reports whether err is a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
