package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dishcovery/dishcovery-client/internal/domain"
	"github.com/dishcovery/dishcovery-client/internal/orchestrator"
	"github.com/dishcovery/dishcovery-client/internal/recipes"
	"github.com/dishcovery/dishcovery-client/internal/settings"
)

// errorCodeKey is the gin context key the logging middleware reads.
const errorCodeKey = "error_code"

// Handler-local error codes.
const (
	CodeBadRequest      = "bad_request"
	CodePayloadTooLarge = "payload_too_large"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error          *domain.APIError  `json:"error"`
	RevealSettings bool              `json:"revealSettings,omitempty"`
	Fields         map[string]string `json:"fields,omitempty"`
}

// renderError writes err in the API error shape with a status derived from its code.
func renderError(c *gin.Context, err error) {
	var body errorBody
	var ve *settings.ValidationError
	if errors.As(err, &ve) {
		_, hint := domain.ValidationResult{Errors: ve.Errors}.FirstError()
		body.Error = domain.WrapAPIError(domain.CodeSettingsInvalid, orchestrator.MsgSettingsInvalid, hint, err)
		body.Fields = ve.Errors
	} else {
		body.Error = domain.AsAPIError(err)
	}
	apiErr := body.Error
	body.RevealSettings = apiErr.RevealsSettings()

	c.Set(errorCodeKey, apiErr.Code)
	c.AbortWithStatusJSON(statusFor(c, apiErr), body)
}

// statusFor maps an error code to the local API status.
func statusFor(c *gin.Context, err *domain.APIError) int {
	switch err.Code {
	case domain.CodeMissingInput, domain.CodeImageMissing, domain.CodeAmbiguousInput, CodeBadRequest:
		return http.StatusBadRequest
	case domain.CodeSettingsIncomplete, domain.CodeSettingsInvalid, domain.CodeAPIBaseMissing,
		domain.CodeMissingParameters, domain.CodeInvalidRecord:
		return http.StatusUnprocessableEntity
	case domain.CodeGenerationInProgress, domain.CodeSuperseded, domain.CodeNoRecipe:
		return http.StatusConflict
	case domain.CodeUnauthorized:
		if recipes.UserFromContext(c.Request.Context()) != "" {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case domain.CodeNotFound:
		return http.StatusNotFound
	case CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case domain.CodeStorageError:
		return http.StatusInternalServerError
	case domain.CodeNetworkError, domain.CodeGenerationFailed, domain.CodeImageGenerationFailed, domain.CodeInvalidResponse:
		return http.StatusBadGateway
	}
	if err.HTTPStatus > 0 || strings.HasPrefix(err.Code, "http_") {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
