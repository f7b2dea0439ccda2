// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package txn

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects transaction outcomes for the daemon's prometheus
// registry. A nil *Metrics is a valid no-op collector, so the runner can
// be used without metrics wired up.
type Metrics struct {
	txnTotal    *prometheus.CounterVec
	txnRetries  prometheus.Counter
	txnDuration prometheus.Histogram
}

// NewMetrics returns a new transaction metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		txnTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gvmd",
			Subsystem: "db",
			Name:      "txn_total",
			Help:      "Total number of transactions run, by result.",
		}, []string{"result"}),
		txnRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gvmd",
			Subsystem: "db",
			Name:      "txn_retries_total",
			Help:      "Number of transaction attempts that hit a transient failure.",
		}),
		txnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gvmd",
			Subsystem: "db",
			Name:      "txn_duration_seconds",
			Help:      "Duration of transaction attempts.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.txnTotal.Describe(ch)
	m.txnRetries.Describe(ch)
	m.txnDuration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.txnTotal.Collect(ch)
	m.txnRetries.Collect(ch)
	m.txnDuration.Collect(ch)
}

func (m *Metrics) observe(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.txnTotal.WithLabelValues(result).Inc()
	m.txnDuration.Observe(d.Seconds())
}

func (m *Metrics) retried() {
	if m == nil {
		return
	}
	m.txnRetries.Inc()
}
