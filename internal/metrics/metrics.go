// Package metrics provides Prometheus metrics for the quote pipeline
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Import metrics
	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_imports_total",
			Help: "Vendor documents imported, by outcome",
		},
		[]string{"company", "status"},
	)

	ImportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quote_import_duration_seconds",
			Help:    "Time taken to parse and aggregate a vendor document",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"company"},
	)

	ImportedItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_imported_items_total",
			Help: "Priced items read from vendor documents",
		},
		[]string{"company"},
	)

	// Draft metrics
	DraftsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quote_drafts_active",
			Help: "Number of in-progress drafts held in memory",
		},
	)

	CommandsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_commands_rejected_total",
			Help: "Operator commands rejected by validation",
		},
		[]string{"company", "command"},
	)

	// Finalization metrics
	FinalizationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_finalizations_total",
			Help: "Finalization attempts, by outcome",
		},
		[]string{"company", "status"},
	)

	ContractValue = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quote_contract_final_value",
			Help:    "Final value of finalized contracts",
			Buckets: prometheus.ExponentialBuckets(1000, 2, 12),
		},
		[]string{"company"},
	)
)

// Finalization outcomes.
const (
	StatusSuccess = "success"
	StatusBlocked = "blocked"
	StatusError   = "error"
)

// QuoteMetrics records pipeline metrics for one company.
type QuoteMetrics struct {
	company string
}

// NewQuoteMetrics creates a metrics recorder for a company
func NewQuoteMetrics(company string) *QuoteMetrics {
	return &QuoteMetrics{company: company}
}

// RecordImport records one import attempt.
func (m *QuoteMetrics) RecordImport(status string, items int, duration time.Duration) {
	ImportsTotal.WithLabelValues(m.company, status).Inc()
	ImportDuration.WithLabelValues(m.company).Observe(duration.Seconds())
	if items > 0 {
		ImportedItems.WithLabelValues(m.company).Add(float64(items))
	}
}

// RecordRejected records a command refused by validation.
func (m *QuoteMetrics) RecordRejected(command string) {
	CommandsRejected.WithLabelValues(m.company, command).Inc()
}

// RecordFinalization records one finalization attempt. finalValue is only
// observed on success.
func (m *QuoteMetrics) RecordFinalization(status string, finalValue float64) {
	FinalizationsTotal.WithLabelValues(m.company, status).Inc()
	if status == StatusSuccess {
		ContractValue.WithLabelValues(m.company).Observe(finalValue)
	}
}

// SetActiveDrafts publishes the current size of the draft store.
func SetActiveDrafts(n int) {
	DraftsActive.Set(float64(n))
}
