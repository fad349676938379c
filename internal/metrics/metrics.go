// Package metrics exports the Prometheus instrumentation. Everything hangs
// off the default registry and is served by promhttp on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "persacc_ledger_writes_total",
		Help: "Ledger mutations by operation and outcome.",
	}, []string{"operation", "outcome"})

	ClosingsCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "persacc_closings_committed_total",
		Help: "Monthly closings committed successfully.",
	})

	ClosingFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "persacc_closing_failures_total",
		Help: "Closing attempts rejected or rolled back, by stage.",
	}, []string{"stage"})

	RetainedCents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "persacc_retained_cents_total",
		Help: "Cents moved into retention by kind (surplus, salary, consequence).",
	}, []string{"kind"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "persacc_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status class.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "persacc_events_published_total",
		Help: "Broker messages published, by outcome.",
	}, []string{"outcome"})

	InsightRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "persacc_insight_runs_total",
		Help: "Insight generations attempted by the worker, by outcome.",
	}, []string{"outcome"})
)
