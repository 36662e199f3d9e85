package invoicedex

import (
	"github.com/kailas-cloud/invoicedex/internal/domain/invoice"
	"github.com/kailas-cloud/invoicedex/internal/domain/point"
	healthuc "github.com/kailas-cloud/invoicedex/internal/usecase/health"
	usageuc "github.com/kailas-cloud/invoicedex/internal/usecase/usage"
)

type (
	// Invoice is a structured invoice as returned by the server.
	Invoice = invoice.Invoice
	// Item is one invoice line.
	Item = invoice.Item
	// Date is a calendar date without time of day.
	Date = invoice.Date
	// Currency is an ISO 4217 code.
	Currency = invoice.Currency
	// Hit is one search result.
	Hit = point.Hit
	// UsageReport describes token consumption against the budget.
	UsageReport = usageuc.Report
	// Period selects the budget window of a UsageReport.
	Period = usageuc.Period
	// HealthStatus is the aggregated service status.
	HealthStatus = healthuc.Status
	// CheckResult is the outcome of a single health check.
	CheckResult = healthuc.CheckResult
)

// Budget windows.
const (
	PeriodDay   = usageuc.PeriodDay
	PeriodMonth = usageuc.PeriodMonth
)

// Aggregated health states.
const (
	Healthy   = healthuc.Healthy
	Degraded  = healthuc.Degraded
	Unhealthy = healthuc.Unhealthy
)

// Usage is the token spend reported for one request.
type Usage struct {
	EmbeddingTokens  int
	ExtractionTokens int
}

// Total returns embedding plus extraction tokens.
func (u Usage) Total() int { return u.EmbeddingTokens + u.ExtractionTokens }

// ExtractResult is the outcome of Extract or Preview.
type ExtractResult struct {
	// ID is empty for previews.
	ID      string
	Invoice Invoice
	Usage   Usage
}

// BatchItem is the outcome for one document of a batch.
type BatchItem struct {
	Index   int
	ID      string
	Invoice *Invoice
	Err     *APIError
}

// BatchResult is the outcome of ExtractBatch.
type BatchResult struct {
	Items     []BatchItem
	Succeeded int
	Failed    int
	Usage     Usage
}

// SearchResult holds ranked hits, best first.
type SearchResult struct {
	Hits  []Hit
	Usage Usage
}

// HealthReport is the body of GET /health.
type HealthReport struct {
	Status  HealthStatus           `json:"status"`
	Checks  map[string]CheckResult `json:"checks"`
	Version string                 `json:"version,omitempty"`
}
