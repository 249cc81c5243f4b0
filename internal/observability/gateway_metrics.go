package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level gateway metrics, registered once at init like the rest of
// this package's promauto counters. These are consulted directly by
// components (cache, breaker, selector) that don't hold a *Metrics
// instance, mirroring the package-level diagnostic event helpers above.
var (
	toolSelectorFallback = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockgateway_tool_selector_fallback_total",
		Help: "ML tool-selection failures that fell back to the heuristic selector, by reason.",
	}, []string{"reason"})

	responseCacheResult = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockgateway_response_cache_result_total",
		Help: "Response cache lookups by outcome (hit|miss).",
	}, []string{"outcome"})

	inFlightCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stockgateway_inflight_coalesced_total",
		Help: "Requests that joined an already in-flight computation instead of starting a new one.",
	})

	breakerStateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stockgateway_breaker_state",
		Help: "Circuit breaker state per upstream (0=closed, 1=half-open, 2=open).",
	}, []string{"upstream"})

	toolRoundsUsed = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stockgateway_orchestrator_tool_rounds",
		Help:    "Number of tool-calling rounds used per request before a final completion.",
		Buckets: []float64{0, 1, 2, 3, 4, 5},
	})

	rankLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stockgateway_rank_latency_seconds",
		Help:    "Wall-clock time spent ranking a batch of web-search results (BM25 + semantic scoring).",
		Buckets: prometheus.DefBuckets,
	})
)

// RecordToolSelectorFallback increments the fallback counter for reason.
func RecordToolSelectorFallback(reason string) {
	toolSelectorFallback.WithLabelValues(reason).Inc()
}

// RecordResponseCacheResult increments the cache-hit/miss counter.
func RecordResponseCacheResult(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	responseCacheResult.WithLabelValues(outcome).Inc()
}

// RecordInFlightCoalesced increments the request-coalescing counter.
func RecordInFlightCoalesced() {
	inFlightCoalesced.Inc()
}

// RecordBreakerState sets the gauge for upstream to state (0/1/2).
func RecordBreakerState(upstream string, state float64) {
	breakerStateGauge.WithLabelValues(upstream).Set(state)
}

// RecordToolRounds observes how many tool-calling rounds one request used.
func RecordToolRounds(rounds int) {
	toolRoundsUsed.Observe(float64(rounds))
}

// RecordRankLatency observes how long a ranking pass took.
func RecordRankLatency(d time.Duration) {
	rankLatency.Observe(d.Seconds())
}
