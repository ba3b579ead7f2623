package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetchTotal   *prometheus.CounterVec
	fetchLatency *prometheus.HistogramVec
	lastValue    *prometheus.GaugeVec
	alerts       *prometheus.GaugeVec
	builds       *prometheus.HistogramVec
}

// New creates a recorder registered on reg; nil means the default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		fetchTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indipull_source_fetch_total",
				Help: "Source fetches by outcome (ok, error, cached)",
			},
			[]string{"source", "outcome"},
		),
		fetchLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "indipull_source_fetch_duration_seconds",
				Help:    "Duration of upstream source fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		lastValue: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "indipull_indicator_value",
				Help: "Latest normalized value of an indicator",
			},
			[]string{"code"},
		),
		alerts: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "indipull_active_alerts",
				Help: "Alerts raised by the latest build per category",
			},
			[]string{"category"},
		),
		builds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "indipull_dashboard_build_duration_seconds",
				Help:    "Duration of dashboard builds in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
	}
}

func (r *Recorder) RecordFetch(source, outcome string) {
	r.fetchTotal.WithLabelValues(source, outcome).Inc()
}

func (r *Recorder) RecordFetchLatency(source string, d time.Duration) {
	r.fetchLatency.WithLabelValues(source).Observe(d.Seconds())
}

func (r *Recorder) RecordLastValue(code string, value float64) {
	r.lastValue.WithLabelValues(code).Set(value)
}

func (r *Recorder) RecordAlerts(category string, n int) {
	r.alerts.WithLabelValues(category).Set(float64(n))
}

func (r *Recorder) RecordBuild(outcome string, d time.Duration) {
	r.builds.WithLabelValues(outcome).Observe(d.Seconds())
}

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordFetch(string, string)               {}
func (Nop) RecordFetchLatency(string, time.Duration) {}
func (Nop) RecordLastValue(string, float64)          {}
func (Nop) RecordAlerts(string, int)                 {}
func (Nop) RecordBuild(string, time.Duration)        {}
