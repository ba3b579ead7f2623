package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	AnalyticsLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "indipull",
			Subsystem: "analytics",
			Name:      "latency_seconds",
			Help:      "Latency of correlation, lag and forecast requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	AnalyticsErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "indipull",
			Subsystem: "analytics",
			Name:      "errors_total",
			Help:      "Analytics requests rejected, by endpoint and reason",
		},
		[]string{"endpoint", "reason"},
	)

	RefreshRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "indipull",
			Subsystem: "api",
			Name:      "refresh_rate_limited_total",
			Help:      "Manual refreshes refused by the per-client limiter",
		},
	)
)

// Register adds the API collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(AnalyticsLatency, AnalyticsErrors, RefreshRejected)
	})
}
