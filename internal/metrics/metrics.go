// Package metrics exposes Prometheus collectors for generations, key
// validations, saved recipes and the local HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dishcovery"

// Collector holds the application metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	keyValidations     *prometheus.CounterVec
	recipeOps          *prometheus.CounterVec
	httpRequestsTotal  *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// New creates a Collector with a fresh registry, so several instances can coexist in tests.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		generationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_total",
				Help:      "Recipe generations by provider and outcome code",
			},
			[]string{"provider", "outcome"},
		),
		generationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_phase_duration_seconds",
				Help:      "Duration of each generation phase",
				Buckets:   []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"provider", "phase"},
		),
		keyValidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "key_validations_total",
				Help:      "Remote API key validations by provider and result",
			},
			[]string{"provider", "result"},
		),
		recipeOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recipe_operations_total",
				Help:      "Saved-recipe operations by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Local API requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Local API request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveGeneration counts a finished generation. outcome is "success" or an error code.
func (c *Collector) ObserveGeneration(provider, outcome string) {
	c.generationsTotal.WithLabelValues(provider, outcome).Inc()
}

// ObservePhase records how long one phase ("image" or "recipe") took.
func (c *Collector) ObservePhase(provider, phase string, d time.Duration) {
	c.generationDuration.WithLabelValues(provider, phase).Observe(d.Seconds())
}

// ObserveKeyValidation counts a key validation. result is "valid", "invalid", "stale" or an error code.
func (c *Collector) ObserveKeyValidation(provider, result string) {
	c.keyValidations.WithLabelValues(provider, result).Inc()
}

// ObserveRecipeOp counts a saved-recipe operation.
func (c *Collector) ObserveRecipeOp(op, outcome string) {
	c.recipeOps.WithLabelValues(op, outcome).Inc()
}

// ObserveHTTP records one local API request.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
