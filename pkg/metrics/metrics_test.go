package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveProviderError(t *testing.T) {
	r := New()

	r.ObserveProviderError("anthropic", "rate_limit")

	if got := testutil.ToFloat64(r.providerErrorsTotal.WithLabelValues("anthropic", "rate_limit")); got != 1 {
		t.Fatalf("provider_errors_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.providerRequestsTotal.WithLabelValues("anthropic", "error")); got != 1 {
		t.Fatalf("provider_requests_total{outcome=error} = %v, want 1", got)
	}
}

func TestObserveProviderSuccess(t *testing.T) {
	r := New()

	r.ObserveProviderSuccess("openai")

	if got := testutil.ToFloat64(r.providerRequestsTotal.WithLabelValues("openai", "success")); got != 1 {
		t.Fatalf("provider_requests_total{outcome=success} = %v, want 1", got)
	}
}

func TestObserveBayesianShare(t *testing.T) {
	r := New()

	r.ObserveBayesianShare(0.4)

	// A Histogram collects several metrics at once (_sum, _count, one per
	// bucket), so ToFloat64 does not apply; just confirm the Observe call
	// reached the collector.
	if n := testutil.CollectAndCount(r.bayesianShare); n == 0 {
		t.Fatal("expected bayesianShare to report at least one metric after Observe")
	}
}

func TestObserveCacheStats(t *testing.T) {
	r := New()

	r.ObserveCacheStats(CacheStats{HitRatePct: 87.5, TotalKeys: 42})

	if got := testutil.ToFloat64(r.cacheHitRatePct); got != 87.5 {
		t.Fatalf("cacheHitRatePct = %v, want 87.5", got)
	}
	if got := testutil.ToFloat64(r.cacheKeysTotal); got != 42 {
		t.Fatalf("cacheKeysTotal = %v, want 42", got)
	}

	// A later observation replaces rather than accumulates.
	r.ObserveCacheStats(CacheStats{HitRatePct: 90, TotalKeys: 50})
	if got := testutil.ToFloat64(r.cacheKeysTotal); got != 50 {
		t.Fatalf("cacheKeysTotal after second observe = %v, want 50", got)
	}
}

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	if Handler() == nil {
		t.Fatal("Handler() returned nil")
	}
}
