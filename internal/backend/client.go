// Package backend is the HTTP client for the remote recipe service.
// Every network-facing method returns a *domain.APIError on failure.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dishcovery/dishcovery-client/internal/domain"
	"github.com/dishcovery/dishcovery-client/internal/settings"
)

const (
	// DefaultTimeout is the default HTTP client timeout. Vision models are slow.
	DefaultTimeout = 60 * time.Second

	// BypassHeader carries the deployment-protection bypass token.
	BypassHeader = "x-vercel-protection-bypass"

	// Endpoint paths under the configured base URL.
	PathGenerateRecipe = "/api/generate-recipe"
	PathGenerateImage  = "/api/generate-image"
	PathValidateKey    = "/api/validate-key"

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 8 << 20
)

// MsgBaseURLMissing is returned when no usable base URL is configured.
const MsgBaseURLMissing = "The recipe service URL is not configured."

// Client talks to the recipe backend.
type Client struct {
	httpClient  *http.Client
	builder     *Builder
	bypassToken string
	logger      *slog.Logger
}

// ClientOption is a functional option for configuring Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithBypassToken attaches the deployment-protection bypass header when token is non-empty.
func WithBypassToken(token string) ClientOption {
	return func(c *Client) {
		c.bypassToken = token
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithOpener sets how image references are read.
func WithOpener(open Opener) ClientOption {
	return func(c *Client) {
		c.builder = NewBuilder(open)
	}
}

// NewClient creates a new Client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		builder: NewBuilder(nil),
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Builder returns the payload builder used by the client.
func (c *Client) Builder() *Builder {
	return c.builder
}

// GenerateRecipe builds the multipart payload for req and posts it to /api/generate-recipe.
// Local problems (no input, bad base URL) fail before any network I/O.
func (c *Client) GenerateRecipe(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	payload, err := c.BuildRecipe(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.SendRecipe(ctx, req.BaseURL, payload)
}

// BuildRecipe assembles the payload for req without touching the network.
func (c *Client) BuildRecipe(ctx context.Context, req domain.GenerationRequest) (*MultipartPayload, error) {
	payload, err := c.builder.BuildRecipe(ctx, req)
	if err != nil {
		return nil, err
	}
	if _, err := endpointURL(req.BaseURL, PathGenerateRecipe); err != nil {
		return nil, err
	}
	c.logger.Debug("recipe payload built",
		"provider", req.Provider,
		"model", req.Model,
		"api_key", settings.MaskSecret(req.APIKey),
		"has_file", payload.File != nil,
		"bytes", len(payload.Body),
	)
	return payload, nil
}

// SendRecipe posts a payload built by BuildRecipe to /api/generate-recipe.
func (c *Client) SendRecipe(ctx context.Context, baseURL string, payload *MultipartPayload) (*domain.GenerationResult, error) {
	endpoint, err := endpointURL(baseURL, PathGenerateRecipe)
	if err != nil {
		return nil, err
	}
	status, body, err := c.post(ctx, endpoint, payload.ContentType, payload.Body)
	if err != nil {
		return nil, err
	}
	return decodeRecipeResponse(status, body)
}

// GenerateImage posts a prompt to /api/generate-image and returns the rendered image URL.
func (c *Client) GenerateImage(ctx context.Context, req domain.ImageRequest) (*domain.ImageResult, error) {
	payload, err := c.builder.BuildImage(req)
	if err != nil {
		return nil, err
	}
	endpoint, err := endpointURL(req.BaseURL, PathGenerateImage)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("generating image",
		"endpoint", endpoint,
		"provider", req.Provider,
		"api_key", settings.MaskSecret(req.APIKey),
	)

	status, body, err := c.post(ctx, endpoint, payload.ContentType, payload.Body)
	if err != nil {
		return nil, err
	}
	return decodeImageResponse(status, body)
}

// post executes one round trip. Transport failures become network_error.
func (c *Client) post(ctx context.Context, endpoint, contentType string, body []byte) (int, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, domain.WrapAPIError(domain.CodeAPIBaseMissing, MsgBaseURLMissing, "", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if c.bypassToken != "" {
		httpReq.Header.Set(BypassHeader, c.bypassToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("backend request failed",
			"endpoint", endpoint,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return 0, nil, domain.WrapAPIError(domain.CodeNetworkError, domain.MsgNetworkError, "", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, domain.WrapAPIError(domain.CodeNetworkError, domain.MsgNetworkError, "",
			fmt.Errorf("read response: %w", err))
	}

	c.logger.Debug("backend response",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"bytes", len(respBody),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp.StatusCode, respBody, nil
}

// endpointURL joins a sanitized base URL with path.
func endpointURL(baseURL, path string) (string, error) {
	base, msg := settings.SanitizeBaseURL(baseURL)
	if msg != "" {
		return "", domain.NewAPIError(domain.CodeAPIBaseMissing, MsgBaseURLMissing, msg)
	}
	return base + path, nil
}
