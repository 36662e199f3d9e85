package chi

import (
	"context"

	"github.com/kailas-cloud/invoicedex/internal/domain/filter"
	"github.com/kailas-cloud/invoicedex/internal/domain/invoice"
	dompoint "github.com/kailas-cloud/invoicedex/internal/domain/point"
	healthuc "github.com/kailas-cloud/invoicedex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/invoicedex/internal/usecase/ingest"
	usageuc "github.com/kailas-cloud/invoicedex/internal/usecase/usage"
)

// Ingester extracts invoices and stores them.
type Ingester interface {
	Preview(ctx context.Context, raw string) (invoice.Invoice, error)
	Ingest(ctx context.Context, raw string) (ingestuc.Result, error)
	IngestBatch(ctx context.Context, raws []string) []ingestuc.Outcome
}

// Searcher runs similarity queries over stored invoices.
type Searcher interface {
	SearchWithFilter(ctx context.Context, query string, limit int, f filter.Expression) ([]dompoint.Hit, error)
	DefaultLimit() int
	MaxLimit() int
}

// HealthReporter aggregates component checks.
type HealthReporter interface {
	Check(ctx context.Context) healthuc.Report
}

// UsageReporter reports token consumption against the budget.
type UsageReporter interface {
	Report(period usageuc.Period) usageuc.Report
}
