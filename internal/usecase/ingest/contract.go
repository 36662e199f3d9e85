package ingest

import (
	"context"

	"github.com/kailas-cloud/invoicedex/internal/domain/invoice"
)

// Extractor turns raw text into a validated invoice.
type Extractor interface {
	Extract(ctx context.Context, raw string) (invoice.Invoice, error)
}

// Storer persists an invoice with the embedding of its raw text.
type Storer interface {
	AddInvoice(ctx context.Context, inv *invoice.Invoice, raw string) (string, error)
}
