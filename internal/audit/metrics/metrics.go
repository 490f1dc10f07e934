package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the audit engine's Prometheus metrics.
type Metrics struct {
	RecordsIngested   *prometheus.CounterVec
	RecordsDropped    prometheus.Counter
	RecordsRetried    prometheus.Counter
	SuspiciousFlagged prometheus.Counter
	ReviewsCompleted  prometheus.Counter
	SinkDropped       prometheus.Counter
	ClassifyDuration  prometheus.Histogram
}

// New creates and registers all audit metrics on the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics on a caller-supplied registerer. Tests use a
// fresh registry per suite so repeated construction never collides.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caretrail_audit_records_ingested_total",
			Help: "Audit records appended to the ledger, by action.",
		}, []string{"action"}),
		RecordsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "caretrail_audit_records_dropped_total",
			Help: "Audit records that failed to persist and were parked or lost.",
		}),
		RecordsRetried: factory.NewCounter(prometheus.CounterOpts{
			Name: "caretrail_audit_records_retried_total",
			Help: "Audit records successfully re-appended from the retry queue.",
		}),
		SuspiciousFlagged: factory.NewCounter(prometheus.CounterOpts{
			Name: "caretrail_audit_suspicious_flagged_total",
			Help: "Records classified as suspicious at write time.",
		}),
		ReviewsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "caretrail_audit_reviews_completed_total",
			Help: "Successful review annotations.",
		}),
		SinkDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "caretrail_audit_sink_dropped_total",
			Help: "Records dropped by the SIEM sink because its buffer was full.",
		}),
		ClassifyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "caretrail_audit_classify_duration_seconds",
			Help:    "Time spent classifying one event, including history lookback.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
