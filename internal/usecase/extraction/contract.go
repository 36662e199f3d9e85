package extraction

import (
	"context"

	"github.com/kailas-cloud/invoicedex/internal/domain"
	"github.com/kailas-cloud/invoicedex/internal/domain/invoice"
)

// Generator produces schema-conforming output from a policy and raw text.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error)
}

// BudgetChecker enforces the shared token budget.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
}

// Outcome is the result of one extraction in a batch or async call.
// Exactly one of Invoice and Err is meaningful.
type Outcome struct {
	Index   int
	Invoice invoice.Invoice
	Err     error
}
