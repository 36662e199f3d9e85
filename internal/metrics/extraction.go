package metrics

import "github.com/prometheus/client_golang/prometheus"

// Extraction Prometheus metrics.
var (
	ExtractionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "extraction_requests_total",
			Help:      "Total number of invoice extraction calls",
		},
		[]string{"model", "status"}, // status: success / refused / error
	)

	ExtractionRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "extraction_request_duration_seconds",
			Help:      "Extraction call duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
		[]string{"model"},
	)

	ExtractionTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "extraction_tokens_total",
			Help:      "Total tokens consumed by extraction",
		},
		[]string{"model", "type"}, // prompt / completion / total
	)

	ExtractionRefusalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "extraction_refusals_total",
			Help:      "Extractions the model declined",
		},
		[]string{"model"},
	)

	ExtractionUnreconciledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "extraction_unreconciled_total",
			Help:      "Extracted invoices whose line items do not add up to the total",
		},
	)
)
