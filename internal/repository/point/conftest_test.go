package point

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kailas-cloud/invoicedex/internal/db"
	"github.com/kailas-cloud/invoicedex/internal/domain/invoice"
	dompoint "github.com/kailas-cloud/invoicedex/internal/domain/point"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn        func(ctx context.Context, key string, fields map[string]string) error
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
	searchKNNFn   func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func samplePoint() *dompoint.Point {
	return &dompoint.Point{
		ID:     "0b6f9a0e-1f51-4b7e-9c55-7d8e7b0c1a2f",
		Vector: []float32{0.1, 0.2, 0.3},
		Payload: invoice.Invoice{
			VendorName:  "MebleX Sp. z o.o.",
			InvoiceDate: invoice.NewDate(2025, time.February, 1),
			Items: []invoice.Item{
				{Name: "Fotel Ergonomiczny", Quantity: 2, Price: decimal.RequireFromString("600.00")},
			},
			TotalAmount: decimal.RequireFromString("1200.00"),
			Currency:    "PLN",
		},
	}
}
