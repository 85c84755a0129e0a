package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_upstream_requests_total",
			Help: "Requests sent to the market API",
		},
		[]string{"method", "endpoint", "status"},
	)

	upstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "market_upstream_request_duration_seconds",
			Help:    "Market API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	cacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_requests_total",
			Help: "Catalog cache lookups by result",
		},
		[]string{"result"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"breaker"},
	)
)

// ObserveUpstream records one market API call. status is 0 for transport errors.
func ObserveUpstream(method, endpoint string, status int, d time.Duration) {
	upstreamRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	upstreamRequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

func CacheHit()  { cacheRequestsTotal.WithLabelValues("hit").Inc() }
func CacheMiss() { cacheRequestsTotal.WithLabelValues("miss").Inc() }

func SetBreakerState(name string, state int) {
	breakerState.WithLabelValues(name).Set(float64(state))
}
