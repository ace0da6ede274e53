package backend

import (
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/dishcovery/dishcovery-client/internal/domain"
)

// Messages for malformed or negative responses.
const (
	MsgGenerationFailed = "Failed to generate recipe"
	MsgImageFailed      = "Failed to generate image"
	MsgInvalidResponse  = "The recipe service returned an unexpected response."
)

type recipeResponse struct {
	Success bool                   `json:"success"`
	Recipe  *domain.Recipe         `json:"recipe"`
	Meta    *domain.GenerationMeta `json:"meta"`
	Warning string                 `json:"warning"`
}

type imageResponse struct {
	Success  bool                   `json:"success"`
	ImageURL string                 `json:"imageUrl"`
	Meta     *domain.GenerationMeta `json:"meta"`
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func decodeRecipeResponse(status int, body []byte) (*domain.GenerationResult, error) {
	if !isSuccess(status) {
		return nil, statusError(status, body)
	}

	var resp recipeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.WrapAPIError(domain.CodeInvalidResponse, MsgInvalidResponse, "", err).WithStatus(status)
	}
	if !resp.Success {
		return nil, failedError(domain.CodeGenerationFailed, MsgGenerationFailed, status, body)
	}
	if resp.Recipe == nil {
		return nil, domain.NewAPIError(domain.CodeInvalidResponse, MsgInvalidResponse, "response has no recipe").WithStatus(status)
	}

	return &domain.GenerationResult{
		Success: true,
		Recipe:  resp.Recipe,
		Meta:    resp.Meta,
		Warning: resp.Warning,
	}, nil
}

func decodeImageResponse(status int, body []byte) (*domain.ImageResult, error) {
	if !isSuccess(status) {
		return nil, statusError(status, body)
	}

	var resp imageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.WrapAPIError(domain.CodeInvalidResponse, MsgInvalidResponse, "", err).WithStatus(status)
	}
	// Older deployments omit "success" on the image route.
	explicitFailure := gjson.GetBytes(body, "success").Exists() && !resp.Success
	if explicitFailure || strings.TrimSpace(resp.ImageURL) == "" {
		return nil, failedError(domain.CodeGenerationFailed, MsgImageFailed, status, body)
	}
	return &domain.ImageResult{ImageURL: resp.ImageURL, Meta: resp.Meta}, nil
}

// statusError normalizes a non-2xx response. A structured error body is
// passed through verbatim; otherwise the code is http_<status>.
func statusError(status int, body []byte) *domain.APIError {
	if apiErr := structuredError(body); apiErr != nil {
		if apiErr.Message == "" {
			apiErr.Message = domain.StatusMessage(status)
		}
		return apiErr.WithStatus(status)
	}

	message := domain.StatusMessage(status)
	if status != http.StatusTooManyRequests && status < 500 {
		if text := errorText(body); text != "" {
			message = text
		}
	}
	return domain.NewAPIError(domain.HTTPStatusCode(status), message, "").WithStatus(status)
}

// failedError builds the error for a 2xx body that reports failure.
func failedError(code, fallback string, status int, body []byte) *domain.APIError {
	if apiErr := structuredError(body); apiErr != nil {
		if apiErr.Message == "" {
			apiErr.Message = fallback
		}
		return apiErr.WithStatus(status)
	}
	message := fallback
	if text := errorText(body); text != "" {
		message = text
	}
	return domain.NewAPIError(code, message, "").WithStatus(status)
}

// structuredError reads {"error": {"code", "message", "hint"}}. It returns nil
// when the body carries no error code.
func structuredError(body []byte) *domain.APIError {
	if !gjson.ValidBytes(body) {
		return nil
	}
	e := gjson.GetBytes(body, "error")
	if !e.IsObject() {
		return nil
	}
	code := strings.TrimSpace(e.Get("code").String())
	if code == "" {
		return nil
	}
	return domain.NewAPIError(code, e.Get("message").String(), e.Get("hint").String())
}

// errorText returns a plain error string from {"error": "..."}, {"error": {"message": "..."}} or a text body.
func errorText(body []byte) string {
	if gjson.ValidBytes(body) {
		e := gjson.GetBytes(body, "error")
		switch {
		case e.Type == gjson.String:
			return strings.TrimSpace(e.Str)
		case e.IsObject():
			return strings.TrimSpace(e.Get("message").String())
		}
		return ""
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 || strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}
