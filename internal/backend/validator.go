package backend

import (
	"context"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/dishcovery/dishcovery-client/internal/domain"
	"github.com/dishcovery/dishcovery-client/internal/settings"
)

// MsgMissingParameters is returned when ValidateKey is called without a provider or key.
const MsgMissingParameters = "Provider and API key are required to validate a key."

type validateKeyRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey"`
}

// ValidateKey asks the backend whether apiKey works for provider and which models it unlocks.
//
// A 401 carrying {"valid": false} is a normal answer and is returned without an
// error. The client never mutates settings; persisting a positive result is
// the caller's job.
func (c *Client) ValidateKey(ctx context.Context, baseURL, provider, apiKey string) (*domain.KeyValidation, error) {
	provider = strings.TrimSpace(provider)
	apiKey = strings.TrimSpace(apiKey)
	if provider == "" || apiKey == "" {
		return nil, domain.NewAPIError(domain.CodeMissingParameters, MsgMissingParameters, "")
	}

	endpoint, err := endpointURL(baseURL, PathValidateKey)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(validateKeyRequest{Provider: provider, APIKey: apiKey})
	if err != nil {
		return nil, domain.WrapAPIError(domain.CodeInvalidResponse, MsgInvalidResponse, "", err)
	}

	c.logger.Debug("validating api key",
		"endpoint", endpoint,
		"provider", provider,
		"api_key", settings.MaskSecret(apiKey),
	)

	status, respBody, err := c.post(ctx, endpoint, "application/json", body)
	if err != nil {
		return nil, err
	}
	return decodeKeyValidation(status, respBody)
}

func decodeKeyValidation(status int, body []byte) (*domain.KeyValidation, error) {
	rejected := status == http.StatusUnauthorized && gjson.ValidBytes(body) &&
		gjson.GetBytes(body, "valid").Type == gjson.False
	if !isSuccess(status) && !rejected {
		return nil, statusError(status, body)
	}

	var result domain.KeyValidation
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, domain.WrapAPIError(domain.CodeInvalidResponse, MsgInvalidResponse, "", err).WithStatus(status)
	}
	if result.Models == nil {
		result.Models = []domain.ModelDescriptor{}
	}
	if !result.Valid {
		result.Models = []domain.ModelDescriptor{}
		if result.Error == "" {
			result.Error = errorText(body)
		}
	}
	for i, m := range result.Models {
		if m.Name == "" {
			result.Models[i].Name = m.ID
		}
	}
	return &result, nil
}
