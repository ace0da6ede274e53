package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counts(t *testing.T) {
	c := New()

	c.ObserveGeneration("gemini", "success")
	c.ObserveGeneration("gemini", "success")
	c.ObserveGeneration("openai", "network_error")
	c.ObserveKeyValidation("gemini", "valid")
	c.ObserveRecipeOp("save", "ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.generationsTotal.WithLabelValues("gemini", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.generationsTotal.WithLabelValues("openai", "network_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.keyValidations.WithLabelValues("gemini", "valid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.recipeOps.WithLabelValues("save", "ok")))
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.ObserveGeneration("gemini", "success")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.generationsTotal.WithLabelValues("gemini", "success")))
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.ObserveHTTP(http.MethodGet, "/health", http.StatusOK, 5*time.Millisecond)
	c.ObservePhase("openai", "image", 2*time.Second)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `dishcovery_http_requests_total{method="GET",route="/health",status_code="200"} 1`)
	assert.Contains(t, string(body), "dishcovery_generation_phase_duration_seconds")
}
