package backend_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dishcovery/dishcovery-client/internal/backend"
	"github.com/dishcovery/dishcovery-client/internal/backend/backendtest"
	"github.com/dishcovery/dishcovery-client/internal/domain"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func geminiRequest(baseURL string, input domain.GenerationInput) domain.GenerationRequest {
	return domain.GenerationRequest{
		Input:    input,
		Provider: "gemini",
		APIKey:   "AIxxxxxxxxxxxx",
		Model:    "gemini-2.5-flash",
		Language: "en",
		BaseURL:  baseURL,
	}
}

func TestClient_GenerateRecipe_Success(t *testing.T) {
	srv := backendtest.New(t)
	client := backend.NewClient(backend.WithBypassToken("bypass-secret"))

	res, err := client.GenerateRecipe(context.Background(), geminiRequest(srv.URL+"/", domain.GenerationInput{
		Image: &domain.ImageInput{Bytes: pngHeader, Filename: "dish.png"},
	}))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Pasta", res.Recipe.Title)
	assert.Equal(t, "gemini", res.Meta.Provider)

	reqs := srv.Requests(backend.PathGenerateRecipe)
	require.Len(t, reqs, 1)
	got := reqs[0]
	assert.Equal(t, "bypass-secret", got.Header.Get(backend.BypassHeader))
	assert.Equal(t, "dish.png", got.Filename)
	assert.Equal(t, "image/png", got.FileType)
	assert.Equal(t, "frontend", got.Fields["client"])
	assert.Equal(t, "AIxxxxxxxxxxxx", got.Fields["api_key"])
	assert.Equal(t, []string{"file", "provider", "api_key", "model", "language", "client"}, got.Order)
}

func TestClient_GenerateRecipe_OmitsEmptyFields(t *testing.T) {
	srv := backendtest.New(t)
	client := backend.NewClient()

	req := geminiRequest(srv.URL, domain.GenerationInput{TextPrompt: "  tomato soup  "})
	req.Model = "   "
	req.Language = ""
	_, err := client.GenerateRecipe(context.Background(), req)
	require.NoError(t, err)

	got := srv.Requests(backend.PathGenerateRecipe)[0]
	assert.Equal(t, "tomato soup", got.Fields["text_prompt"])
	assert.NotContains(t, got.Fields, "model")
	assert.NotContains(t, got.Fields, "language")
	assert.NotContains(t, got.Fields, "image_url")
	assert.Empty(t, got.Filename)
	assert.Empty(t, got.Header.Get(backend.BypassHeader))
}

func TestClient_GenerateRecipe_LocalErrorsMakeNoNetworkCalls(t *testing.T) {
	transport := &backendtest.CountingTransport{}
	client := backend.NewClient(backend.WithHTTPClient(transport.Client()))

	tests := []struct {
		name string
		req  domain.GenerationRequest
		code string
	}{
		{
			name: "no input",
			req:  geminiRequest("http://localhost:5001", domain.GenerationInput{}),
			code: domain.CodeMissingInput,
		},
		{
			name: "whitespace only",
			req:  geminiRequest("http://localhost:5001", domain.GenerationInput{TextPrompt: "   ", Image: &domain.ImageInput{}}),
			code: domain.CodeMissingInput,
		},
		{
			name: "two inputs",
			req: geminiRequest("http://localhost:5001", domain.GenerationInput{
				TextPrompt: "soup", ImageURL: "https://example.com/soup.jpg",
			}),
			code: domain.CodeAmbiguousInput,
		},
		{
			name: "bad base url",
			req:  geminiRequest("localhost", domain.GenerationInput{TextPrompt: "soup"}),
			code: domain.CodeAPIBaseMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.GenerateRecipe(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, domain.IsCode(err, tt.code), "got %v", err)
		})
	}
	assert.Zero(t, transport.Count())
}

func TestClient_GenerateRecipe_NetworkError(t *testing.T) {
	transport := &backendtest.CountingTransport{Err: errors.New("dial tcp 127.0.0.1:5001: connect: connection refused")}
	client := backend.NewClient(backend.WithHTTPClient(transport.Client()))

	_, err := client.GenerateRecipe(context.Background(),
		geminiRequest("http://localhost:5001", domain.GenerationInput{TextPrompt: "soup"}))

	apiErr := domain.AsAPIError(err)
	assert.Equal(t, domain.CodeNetworkError, apiErr.Code)
	assert.Equal(t, domain.MsgNetworkError, apiErr.Message)
	assert.NotContains(t, apiErr.Message, "refused")
	assert.ErrorContains(t, apiErr.Cause(), "connection refused")
	assert.Equal(t, 1, transport.Count())
}

func TestClient_GenerateRecipe_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name       string
		resp       backendtest.Response
		wantCode   string
		wantMsg    string
		wantHint   string
		wantStatus int
	}{
		{
			name:       "structured error passes through",
			resp:       backendtest.Response{Status: 400, Body: map[string]any{"error": map[string]string{"code": "invalid_api_key", "message": "Key rejected", "hint": "Check the key"}}},
			wantCode:   "invalid_api_key",
			wantMsg:    "Key rejected",
			wantHint:   "Check the key",
			wantStatus: 400,
		},
		{
			name:       "string error on 400",
			resp:       backendtest.Response{Status: 400, Body: map[string]any{"error": "No image uploaded"}},
			wantCode:   "http_400",
			wantMsg:    "No image uploaded",
			wantStatus: 400,
		},
		{
			name:       "rate limited",
			resp:       backendtest.Response{Status: 429, Raw: "slow down"},
			wantCode:   "http_429",
			wantMsg:    domain.MsgTooManyRequest,
			wantStatus: 429,
		},
		{
			name:       "server error hides body",
			resp:       backendtest.Response{Status: 502, Raw: "<html>bad gateway</html>"},
			wantCode:   "http_502",
			wantMsg:    domain.MsgServerTrouble,
			wantStatus: 502,
		},
		{
			name:       "other status",
			resp:       backendtest.Response{Status: 404, Raw: ""},
			wantCode:   "http_404",
			wantMsg:    "Server error (404)",
			wantStatus: 404,
		},
		{
			name:       "success false without code",
			resp:       backendtest.Response{Status: 200, Body: map[string]any{"success": false}},
			wantCode:   domain.CodeGenerationFailed,
			wantMsg:    backend.MsgGenerationFailed,
			wantStatus: 200,
		},
		{
			name:       "success false with code",
			resp:       backendtest.Response{Status: 200, Body: map[string]any{"success": false, "error": map[string]string{"code": "unsafe_image", "message": "Not food"}}},
			wantCode:   "unsafe_image",
			wantMsg:    "Not food",
			wantStatus: 200,
		},
		{
			name:       "garbage body",
			resp:       backendtest.Response{Status: 200, Raw: "not json"},
			wantCode:   domain.CodeInvalidResponse,
			wantMsg:    backend.MsgInvalidResponse,
			wantStatus: 200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := backendtest.New(t)
			srv.Respond(backend.PathGenerateRecipe, tt.resp)
			client := backend.NewClient()

			_, err := client.GenerateRecipe(context.Background(),
				geminiRequest(srv.URL, domain.GenerationInput{ImageURL: "https://example.com/dish.jpg"}))

			var apiErr *domain.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			assert.Equal(t, tt.wantHint, apiErr.Hint)
			assert.Equal(t, tt.wantStatus, apiErr.HTTPStatus)
		})
	}
}

func TestClient_GenerateImage(t *testing.T) {
	srv := backendtest.New(t)
	client := backend.NewClient()

	res, err := client.GenerateImage(context.Background(), domain.ImageRequest{
		Prompt: "grilled cheese sandwich", Provider: "openai", APIKey: "sk-xxxxxxxxxxxx", Size: "1024x1024", BaseURL: srv.URL,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.ImageURL, "grilled-cheese.png"))

	got := srv.Requests(backend.PathGenerateImage)[0]
	assert.Equal(t, "grilled cheese sandwich", got.Fields["prompt"])
	assert.Equal(t, "1024x1024", got.Fields["size"])

	_, err = client.GenerateImage(context.Background(), domain.ImageRequest{BaseURL: srv.URL})
	assert.True(t, domain.IsCode(err, domain.CodeMissingInput))
	assert.Equal(t, 1, srv.Calls(backend.PathGenerateImage))
}

func TestClient_GenerateImage_MissingURLIsFailure(t *testing.T) {
	srv := backendtest.New(t)
	srv.Respond(backend.PathGenerateImage, backendtest.Response{Status: http.StatusOK, Body: map[string]any{"success": true}})

	_, err := backend.NewClient().GenerateImage(context.Background(), domain.ImageRequest{Prompt: "soup", BaseURL: srv.URL})
	assert.True(t, domain.IsCode(err, domain.CodeGenerationFailed))
}
