// Package backendtest provides an in-process fake of the recipe backend for tests.
package backendtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

// Recorded is one request received by the fake.
type Recorded struct {
	Path     string
	Header   http.Header
	Fields   map[string]string
	Order    []string
	Filename string
	FileType string
	FileSize int64
	JSON     map[string]any
}

// Response is a canned reply.
type Response struct {
	Status int
	Body   any    // marshaled as JSON when non-nil
	Raw    string // sent verbatim when Body is nil
}

// Server is a gin-routed fake of /api/generate-recipe, /api/generate-image and /api/validate-key.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	responses map[string]Response
	requests  []Recorded
}

// Default canned responses.
var (
	RecipeOK = Response{Status: http.StatusOK, Body: map[string]any{
		"success": true,
		"recipe": map[string]any{
			"title":       "Pasta",
			"ingredients": []string{"200g spaghetti", "2 tomatoes"},
			"steps":       []string{"Boil the pasta.", "Add the sauce."},
		},
		"meta": map[string]any{"provider": "gemini", "model": "gemini-2.5-flash", "language": "en"},
	}}
	ImageOK = Response{Status: http.StatusOK, Body: map[string]any{
		"success":  true,
		"imageUrl": "https://images.example.com/generated/grilled-cheese.png",
		"meta":     map[string]any{"provider": "openai", "model": "dall-e-3"},
	}}
	KeyOK = Response{Status: http.StatusOK, Body: map[string]any{
		"valid": true,
		"models": []map[string]string{
			{"id": "gemini-2.5-flash", "name": "Gemini 2.5 Flash"},
			{"id": "gemini-2.5-pro", "name": "Gemini 2.5 Pro"},
		},
	}}
)

// New starts a fake backend that is closed when t finishes.
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		responses: map[string]Response{
			"/api/generate-recipe": RecipeOK,
			"/api/generate-image":  ImageOK,
			"/api/validate-key":    KeyOK,
		},
	}

	router := gin.New()
	for path := range s.responses {
		router.POST(path, s.handle)
	}
	s.Server = httptest.NewServer(router)
	t.Cleanup(s.Close)
	return s
}

// Respond replaces the canned response for path.
func (s *Server) Respond(path string, resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[path] = resp
}

// Requests returns the requests received on path, oldest first.
func (s *Server) Requests(path string) []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Recorded
	for _, r := range s.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Calls returns how many requests path received.
func (s *Server) Calls(path string) int {
	return len(s.Requests(path))
}

func (s *Server) handle(c *gin.Context) {
	rec := Recorded{
		Path:   c.FullPath(),
		Header: c.Request.Header.Clone(),
		Fields: map[string]string{},
	}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if reader, err := c.Request.MultipartReader(); err == nil {
			for {
				part, err := reader.NextPart()
				if err != nil {
					break
				}
				data, _ := io.ReadAll(part)
				name := part.FormName()
				rec.Order = append(rec.Order, name)
				if part.FileName() != "" {
					rec.Filename = part.FileName()
					rec.FileType = part.Header.Get("Content-Type")
					rec.FileSize = int64(len(data))
					continue
				}
				rec.Fields[name] = string(data)
			}
		}
	} else {
		data, _ := io.ReadAll(c.Request.Body)
		_ = json.Unmarshal(data, &rec.JSON)
	}

	s.mu.Lock()
	s.requests = append(s.requests, rec)
	resp := s.responses[rec.Path]
	s.mu.Unlock()

	if resp.Body != nil {
		c.JSON(resp.Status, resp.Body)
		return
	}
	c.Data(resp.Status, "text/plain; charset=utf-8", []byte(resp.Raw))
}

// CountingTransport counts round trips. When Err is set every round trip fails with it.
type CountingTransport struct {
	Base http.RoundTripper
	Err  error

	n atomic.Int64
}

// RoundTrip implements http.RoundTripper.
func (t *CountingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.n.Add(1)
	if t.Err != nil {
		return nil, t.Err
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// Count returns the number of round trips attempted.
func (t *CountingTransport) Count() int {
	return int(t.n.Load())
}

// Client returns an *http.Client using t.
func (t *CountingTransport) Client() *http.Client {
	return &http.Client{Transport: t}
}
