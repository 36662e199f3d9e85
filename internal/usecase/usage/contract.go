package usage

import "github.com/kailas-cloud/invoicedex/internal/usecase/budget"

// BudgetReader provides read-only access to token budget state.
type BudgetReader interface {
	Status() budget.Status
}
