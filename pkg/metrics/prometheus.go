package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	extractions        *prometheus.CounterVec
	commits            *prometheus.CounterVec
	quotaRejections    *prometheus.CounterVec
	sessionTransitions *prometheus.CounterVec
	errorsTotal        *prometheus.CounterVec
	latency            *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		extractions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trademynd_extractions_total",
				Help: "Total number of extraction attempts by input type and outcome",
			},
			[]string{"input_type", "outcome"},
		),
		commits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trademynd_trades_committed_total",
				Help: "Total number of trades committed by confirmation source",
			},
			[]string{"source"},
		),
		quotaRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trademynd_quota_rejections_total",
				Help: "Total number of requests rejected by the quota governor",
			},
			[]string{"limit"},
		),
		sessionTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trademynd_session_transitions_total",
				Help: "Total number of confirmation session transitions by target status",
			},
			[]string{"to"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trademynd_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trademynd_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordExtraction records one extraction attempt outcome.
func (r *Recorder) RecordExtraction(inputType, outcome string) {
	r.extractions.WithLabelValues(inputType, outcome).Inc()
}

// RecordCommit records a committed trade by source (auto or confirm).
func (r *Recorder) RecordCommit(source string) {
	r.commits.WithLabelValues(source).Inc()
}

// RecordQuotaRejection records a quota governor rejection.
func (r *Recorder) RecordQuotaRejection(limit string) {
	r.quotaRejections.WithLabelValues(limit).Inc()
}

// RecordSessionTransition records a session status change.
func (r *Recorder) RecordSessionTransition(to string) {
	r.sessionTransitions.WithLabelValues(to).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
