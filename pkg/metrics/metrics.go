// Package metrics is the gateway's Prometheus surface: provider error
// categories, Shared-Conversation Cache hit rate, and the Bayesian
// Memory Manager's selection ratio.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements chatflow.MetricsRecorder and exposes everything
// else the gateway wants observed on /metrics.
type Recorder struct {
	providerErrorsTotal   *prometheus.CounterVec
	providerRequestsTotal *prometheus.CounterVec
	bayesianShare         prometheus.Histogram
	cacheHitRatePct       prometheus.Gauge
	cacheKeysTotal        prometheus.Gauge
}

// New registers the gateway's metrics with the default Prometheus
// registry and returns a Recorder ready to observe them.
func New() *Recorder {
	return &Recorder{
		providerErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_provider_errors_total",
				Help: "Total provider call failures by provider and normalized error category",
			},
			[]string{"provider", "category"},
		),
		providerRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_provider_requests_total",
				Help: "Total provider calls attempted by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		bayesianShare: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gateway_bayesian_selection_ratio",
				Help:    "Share of an assembled context window's tokens contributed by Bayesian-selected history",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
		cacheHitRatePct: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_sharedcache_hit_rate_pct",
				Help: "Shared-Conversation Cache hit rate as a percentage",
			},
		),
		cacheKeysTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_sharedcache_keys_total",
				Help: "Number of published conversations currently held in the Shared-Conversation Cache",
			},
		),
	}
}

// ObserveProviderError records a provider call failure.
func (r *Recorder) ObserveProviderError(provider, category string) {
	r.providerErrorsTotal.WithLabelValues(provider, category).Inc()
	r.providerRequestsTotal.WithLabelValues(provider, "error").Inc()
}

// ObserveProviderSuccess records a provider call that returned a response.
func (r *Recorder) ObserveProviderSuccess(provider string) {
	r.providerRequestsTotal.WithLabelValues(provider, "success").Inc()
}

// ObserveBayesianShare records one context window's Bayesian selection
// ratio (0 when the window was built with no query or no history to draw
// from).
func (r *Recorder) ObserveBayesianShare(share float64) {
	r.bayesianShare.Observe(share)
}

// CacheStats is the subset of sharedcache.Stats the gateway reports.
// Defined locally so this package does not need to import sharedcache
// just to read two fields.
type CacheStats struct {
	HitRatePct float64
	TotalKeys  int
}

// ObserveCacheStats updates the cache gauges from a fresh snapshot.
func (r *Recorder) ObserveCacheStats(stats CacheStats) {
	r.cacheHitRatePct.Set(stats.HitRatePct)
	r.cacheKeysTotal.Set(float64(stats.TotalKeys))
}

// Handler returns the /metrics HTTP handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
