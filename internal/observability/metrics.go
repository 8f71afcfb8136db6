// Package observability exposes the sync jobs' Prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters the sync services report into
type Metrics struct {
	TokensUpserted     prometheus.Counter
	MarketUpdates      *prometheus.CounterVec
	MarketFallbackRuns prometheus.Counter
	HistoryPoints      prometheus.Counter
	NamesResolved      prometheus.Counter
	JobRuns            *prometheus.CounterVec
	JobDurationSeconds *prometheus.HistogramVec
}

// NewMetrics creates and registers the sync metrics on the given
// registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TokensUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sync_tokens_upserted_total",
			Help: "Merged token records written to storage",
		}),
		MarketUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_market_updates_total",
			Help: "Market data snapshots written, by source",
		}, []string{"source"}),
		MarketFallbackRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sync_market_fallback_runs_total",
			Help: "Market data runs that used the AMM fallback path",
		}),
		HistoryPoints: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sync_history_points_total",
			Help: "OHLCV points written to storage",
		}),
		NamesResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sync_names_resolved_total",
			Help: "Wallet names resolved through the explorer",
		}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_job_runs_total",
			Help: "Job executions, by job and outcome",
		}, []string{"job", "outcome"}),
		JobDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sync_job_duration_seconds",
			Help:    "Job execution time",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"job"}),
	}

	reg.MustRegister(
		m.TokensUpserted,
		m.MarketUpdates,
		m.MarketFallbackRuns,
		m.HistoryPoints,
		m.NamesResolved,
		m.JobRuns,
		m.JobDurationSeconds,
	)
	return m
}

// NewTestMetrics creates metrics on a private registry for tests
func NewTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
