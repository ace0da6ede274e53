package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Error codes surfaced to the presentation layer.
const (
	CodeMissingInput          = "missing_input"
	CodeImageMissing          = "image_missing"
	CodeAmbiguousInput        = "ambiguous_input"
	CodeAPIBaseMissing        = "api_base_missing"
	CodeSettingsIncomplete    = "settings_incomplete"
	CodeSettingsInvalid       = "settings_invalid"
	CodeNetworkError          = "network_error"
	CodeGenerationFailed      = "generation_failed"
	CodeImageGenerationFailed = "image_generation_failed"
	CodeInvalidResponse       = "invalid_response"
	CodeMissingParameters     = "missing_parameters"
	CodeGenerationInProgress  = "generation_in_progress"
	CodeSuperseded            = "superseded"
	CodeNoRecipe              = "no_recipe"
	CodeUnauthorized          = "unauthorized"
	CodeNotFound              = "not_found"
	CodeStorageError          = "storage_error"
	CodeInvalidRecord         = "invalid_record"
)

var knownCodes = map[string]struct{}{
	CodeMissingInput: {}, CodeImageMissing: {}, CodeAmbiguousInput: {}, CodeAPIBaseMissing: {},
	CodeSettingsIncomplete: {}, CodeSettingsInvalid: {}, CodeNetworkError: {}, CodeGenerationFailed: {},
	CodeImageGenerationFailed: {}, CodeInvalidResponse: {}, CodeMissingParameters: {},
	CodeGenerationInProgress: {}, CodeSuperseded: {}, CodeNoRecipe: {}, CodeUnauthorized: {},
	CodeNotFound: {}, CodeStorageError: {}, CodeInvalidRecord: {},
}

// IsKnownCode reports whether code is one of the codes declared above.
// Codes read from backend responses usually are not.
func IsKnownCode(code string) bool {
	_, ok := knownCodes[code]
	return ok
}

// Messages shared by several error sites.
const (
	MsgNetworkError   = "Unable to reach the recipe service. Please check your connection and try again."
	MsgTooManyRequest = "Too many requests. Please wait a moment and try again."
	MsgServerTrouble  = "Server is experiencing issues. Please try again later."
)

// APIError is the single error shape surfaced to the presentation layer.
// It is fully serializable; the underlying cause is kept for logs only.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Hint       string `json:"hint,omitempty"`
	HTTPStatus int    `json:"status,omitempty"`

	cause error
}

// NewAPIError creates an APIError without a cause.
func NewAPIError(code, message, hint string) *APIError {
	return &APIError{Code: code, Message: message, Hint: hint}
}

// WrapAPIError creates an APIError that keeps cause for errors.Is/As and logging.
func WrapAPIError(code, message, hint string, cause error) *APIError {
	return &APIError{Code: code, Message: message, Hint: hint, cause: cause}
}

func (e *APIError) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// Cause returns the underlying error, if any.
func (e *APIError) Cause() error {
	return e.cause
}

// WithStatus returns e with HTTPStatus set.
func (e *APIError) WithStatus(status int) *APIError {
	e.HTTPStatus = status
	return e
}

// RevealsSettings reports whether the error is a configuration problem that
// should open the settings editor.
func (e *APIError) RevealsSettings() bool {
	if e == nil {
		return false
	}
	switch e.Code {
	case CodeSettingsIncomplete, CodeSettingsInvalid, CodeAPIBaseMissing, CodeMissingParameters:
		return true
	default:
		return false
	}
}

// HTTPStatusCode returns the error code for a bare HTTP status, e.g. "http_502".
func HTTPStatusCode(status int) string {
	return "http_" + strconv.Itoa(status)
}

// StatusMessage returns the user-facing message for a non-2xx status without a structured body.
func StatusMessage(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return MsgTooManyRequest
	case status >= 500:
		return MsgServerTrouble
	default:
		return fmt.Sprintf("Server error (%d)", status)
	}
}

// AsAPIError extracts an *APIError from err. Errors of any other type are
// normalized to an "unexpected_error" record so nothing opaque reaches the UI.
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return WrapAPIError("unexpected_error", "Something went wrong. Please try again.", "", err)
}

// IsCode reports whether err is an *APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
