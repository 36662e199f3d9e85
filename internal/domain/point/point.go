// Package point defines the stored unit of the invoice collection.
package point

import (
	"github.com/kailas-cloud/invoicedex/internal/domain/filter"
	"github.com/kailas-cloud/invoicedex/internal/domain/invoice"
)

// Point is one persisted invoice: an embedding of the raw text plus the
// structured record as payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload invoice.Invoice
}

// Hit is a search result. Score is cosine similarity, higher is closer.
type Hit struct {
	ID      string          `json:"id"`
	Score   float64         `json:"score"`
	Payload invoice.Invoice `json:"payload"`
}

// Tags returns the tag attributes indexed for filtering.
func (p *Point) Tags() map[string]string {
	return map[string]string{
		filter.FieldCurrency: string(p.Payload.Currency),
		filter.FieldVendor:   p.Payload.VendorName,
	}
}

// Numbers returns the numeric attributes indexed for filtering.
func (p *Point) Numbers() map[string]float64 {
	return map[string]float64{
		filter.FieldTotalAmount: p.Payload.TotalAmount.InexactFloat64(),
		filter.FieldInvoiceDate: float64(p.Payload.InvoiceDate.Ordinal()),
	}
}
