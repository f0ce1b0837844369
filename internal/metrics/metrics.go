package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "binge",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "binge",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	}, []string{"method", "path"})

	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "binge",
		Name:      "upstream_requests_total",
		Help:      "Total requests to upstream catalog APIs by upstream name and result status.",
	}, []string{"upstream", "status"})

	UpstreamRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "binge",
		Name:      "upstream_request_duration_seconds",
		Help:      "Upstream catalog request duration in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"upstream"})

	UpstreamAvailable = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "binge",
		Name:      "upstream_available",
		Help:      "Whether an upstream is available (1) or blocked by circuit breaker (0).",
	}, []string{"upstream"})

	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "binge",
		Name:      "cache_hits_total",
		Help:      "Total number of response cache hits.",
	})

	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "binge",
		Name:      "cache_misses_total",
		Help:      "Total number of response cache misses.",
	})

	RecommendationRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "binge",
		Name:      "recommendation_requests_total",
		Help:      "Total recommendation requests by dispatch route (inference, catalog, keyword, default).",
	}, []string{"route"})

	InferenceFallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "binge",
		Name:      "inference_fallbacks_total",
		Help:      "Total inference calls that fell back to curated catalogs.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		UpstreamRequestsTotal,
		UpstreamRequestDuration,
		UpstreamAvailable,
		CacheHitsTotal,
		CacheMissesTotal,
		RecommendationRequestsTotal,
		InferenceFallbacksTotal,
	)
}
