package observability

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream", "outcome"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)

	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Nearby cache lookups by outcome.",
		},
		[]string{"outcome", "driver"},
	)

	cacheOpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_op_duration_seconds",
			Help:    "Duration of cache operations.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "result"},
	)

	searchResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_results",
			Help:    "Number of records returned per search.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 30},
		},
		[]string{"kind"},
	)

	distanceBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "distance_batches_total",
			Help: "Distance provider batches by outcome.",
		},
		[]string{"provider", "outcome"},
	)

	kafkaErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_errors_total",
			Help: "Kafka producer/consumer errors by component and stage.",
		},
		[]string{"component", "stage"},
	)

	cachePurgesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_purges_total",
			Help: "Nearby cache purges triggered by invalidation events.",
		},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds, upstreamLatencySeconds, buildInfo,
		cacheResults, cacheOpDurationSeconds, searchResults, distanceBatchesTotal,
		kafkaErrorsTotal, cachePurgesTotal,
	}
}

func init() {
	Init(prometheus.DefaultRegisterer)
}

// Init registers the app collectors with reg. Registering twice is a no-op.
func Init(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, err error, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream, outcome(err)).Observe(durationSeconds)
}

func IncCacheHit(driver string)  { cacheResults.WithLabelValues("hit", driver).Inc() }
func IncCacheMiss(driver string) { cacheResults.WithLabelValues("miss", driver).Inc() }

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	cacheOpDurationSeconds.WithLabelValues(op, outcome(err)).Observe(durationSeconds)
}

func ObserveSearchResults(kind string, n int) {
	searchResults.WithLabelValues(kind).Observe(float64(n))
}

func IncDistanceBatch(provider, result string) {
	distanceBatchesTotal.WithLabelValues(provider, result).Inc()
}

func IncKafkaError(component, stage string) {
	kafkaErrorsTotal.WithLabelValues(component, stage).Inc()
}

func IncCachePurge() { cachePurgesTotal.Inc() }

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
