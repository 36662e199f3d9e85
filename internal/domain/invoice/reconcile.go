package invoice

import "github.com/shopspring/decimal"

// DefaultMaxTaxRate covers the highest standard VAT rate in the EU.
var DefaultMaxTaxRate = decimal.RequireFromString("0.27")

var cent = decimal.New(1, -2)

// Reconciliation compares the line items against the payable total.
type Reconciliation struct {
	LinesTotal decimal.Decimal
	Total      decimal.Decimal
	// Delta is Total minus LinesTotal.
	Delta      decimal.Decimal
	Consistent bool
}

// Reconcile checks Σ(quantity × price) against total_amount. Unit prices are
// usually net while the total is gross, so the total may exceed the lines by
// up to maxTaxRate. One cent per line is tolerated for rounding. An invoice
// without items is trivially consistent.
func Reconcile(inv *Invoice, maxTaxRate decimal.Decimal) Reconciliation {
	lines := decimal.Zero
	for _, it := range inv.Items {
		lines = lines.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	r := Reconciliation{
		LinesTotal: lines,
		Total:      inv.TotalAmount,
		Delta:      inv.TotalAmount.Sub(lines),
	}
	if len(inv.Items) == 0 {
		r.Consistent = true
		return r
	}

	tolerance := cent.Mul(decimal.NewFromInt(int64(len(inv.Items))))
	low := lines.Sub(tolerance)
	high := lines.Mul(decimal.NewFromInt(1).Add(maxTaxRate)).Add(tolerance)
	r.Consistent = inv.TotalAmount.GreaterThanOrEqual(low) && inv.TotalAmount.LessThanOrEqual(high)
	return r
}
