// Package telemetry defines the Prometheus collectors exported by the server.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "adpulse"

type Metrics struct {
	RowsIngested     prometheus.Counter
	RowsSkipped      *prometheus.CounterVec
	AnomaliesFlagged *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass a fresh prometheus.NewRegistry()
// in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RowsIngested: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_ingested_total",
			Help:      "Delivery rows accepted by ingestion.",
		}),
		RowsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Delivery rows dropped by ingestion, by reason.",
		}, []string{"reason"}),
		AnomaliesFlagged: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_flagged_total",
			Help:      "Anomalies returned by detection requests, by mode.",
		}, []string{"mode"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// Nop returns collectors bound to a throwaway registry.
func Nop() *Metrics { return New(prometheus.NewRegistry()) }
