package storage

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kailas-cloud/invoicedex/internal/domain"
	"github.com/kailas-cloud/invoicedex/internal/domain/filter"
	"github.com/kailas-cloud/invoicedex/internal/domain/invoice"
	dompoint "github.com/kailas-cloud/invoicedex/internal/domain/point"
)

// --- Mocks ---

type mockRepo struct {
	existsFn func(ctx context.Context, name string) (bool, error)
	createFn func(ctx context.Context, name string, dim int, metric string) error
	upsertFn func(ctx context.Context, collection string, p *dompoint.Point) error
	queryFn  func(ctx context.Context, collection string, vec []float32, limit int, f filter.Expression) ([]dompoint.Hit, error)

	creates int
	upserts []*dompoint.Point
}

func (m *mockRepo) CollectionExists(ctx context.Context, name string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, name)
	}
	return false, nil
}

func (m *mockRepo) CreateCollection(ctx context.Context, name string, dim int, metric string) error {
	m.creates++
	if m.createFn != nil {
		return m.createFn(ctx, name, dim, metric)
	}
	return nil
}

func (m *mockRepo) Upsert(ctx context.Context, collection string, p *dompoint.Point) error {
	m.upserts = append(m.upserts, p)
	if m.upsertFn != nil {
		return m.upsertFn(ctx, collection, p)
	}
	return nil
}

func (m *mockRepo) Query(
	ctx context.Context, collection string, vec []float32, limit int, f filter.Expression,
) ([]dompoint.Hit, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, collection, vec, limit, f)
	}
	return nil, nil
}

type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)
	texts   []string
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.texts = append(m.texts, text)
	return m.embedFn(ctx, text)
}

func fixedEmbedder(dims int) *mockEmbedder {
	return &mockEmbedder{embedFn: func(context.Context, string) (domain.EmbeddingResult, error) {
		v := make([]float32, dims)
		v[0] = 1
		return domain.EmbeddingResult{Embedding: v}, nil
	}}
}

// conceptEmbedder maps words to fixed concept axes so that texts sharing a
// theme land close together. Axis 0 is a small constant so no vector is zero.
type conceptEmbedder struct{}

var concepts = [][]string{
	{"fotel", "biur", "krzes", "wyposaż", "mebl", "lamp"},
	{"kaw", "herbat", "mlek", "cukier"},
	{"laptop", "mysz", "kabel", "monitor", "klawiatur"},
	{"paliw", "benzyn", "diesel", "olej"},
}

const conceptDims = 5

func (conceptEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	v := make([]float32, conceptDims)
	v[0] = 0.1
	for _, word := range strings.Fields(strings.ToLower(text)) {
		for axis, stems := range concepts {
			for _, stem := range stems {
				if strings.HasPrefix(word, stem) {
					v[axis+1]++
				}
			}
		}
	}
	return domain.EmbeddingResult{Embedding: v, TotalTokens: len(text) / 4}, nil
}

func sampleInvoice(vendor string, items ...string) invoice.Invoice {
	inv := invoice.Invoice{
		VendorName:  vendor,
		InvoiceDate: invoice.NewDate(2025, time.January, 24),
		Currency:    "PLN",
		TotalAmount: decimal.RequireFromString("100.00"),
	}
	for _, name := range items {
		inv.Items = append(inv.Items, invoice.Item{Name: name, Quantity: 1, Price: decimal.RequireFromString("100.00")})
	}
	return inv
}
