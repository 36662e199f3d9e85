package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kailas-cloud/invoicedex/internal/domain/filter"
	"github.com/kailas-cloud/invoicedex/internal/domain/invoice"
	dompoint "github.com/kailas-cloud/invoicedex/internal/domain/point"
	healthuc "github.com/kailas-cloud/invoicedex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/invoicedex/internal/usecase/ingest"
)

type fakeIngester struct {
	previewFn func(ctx context.Context, raw string) (invoice.Invoice, error)
	ingestFn  func(ctx context.Context, raw string) (ingestuc.Result, error)
	batchFn   func(ctx context.Context, raws []string) []ingestuc.Outcome
}

func (f *fakeIngester) Preview(ctx context.Context, raw string) (invoice.Invoice, error) {
	return f.previewFn(ctx, raw)
}

func (f *fakeIngester) Ingest(ctx context.Context, raw string) (ingestuc.Result, error) {
	return f.ingestFn(ctx, raw)
}

func (f *fakeIngester) IngestBatch(ctx context.Context, raws []string) []ingestuc.Outcome {
	return f.batchFn(ctx, raws)
}

type fakeSearcher struct {
	searchFn func(ctx context.Context, query string, limit int, f filter.Expression) ([]dompoint.Hit, error)
}

func (f *fakeSearcher) SearchWithFilter(
	ctx context.Context, query string, limit int, expr filter.Expression,
) ([]dompoint.Hit, error) {
	return f.searchFn(ctx, query, limit, expr)
}

func (f *fakeSearcher) DefaultLimit() int { return 5 }
func (f *fakeSearcher) MaxLimit() int     { return 100 }

type fakeHealth struct {
	report healthuc.Report
}

func (f *fakeHealth) Check(context.Context) healthuc.Report { return f.report }

func sampleInvoice() invoice.Invoice {
	return invoice.Invoice{
		VendorName:  "Meble Biurowe Sp. z o.o.",
		InvoiceDate: invoice.NewDate(2025, time.January, 24),
		Items: []invoice.Item{
			{Name: "Fotel Ergonomiczny", Quantity: 1, Price: decimal.RequireFromString("1200.00")},
		},
		TotalAmount: decimal.RequireFromString("1200.00"),
		Currency:    "PLN",
	}
}

func newTestServer(ing Ingester, srch Searcher, h HealthReporter) http.Handler {
	if ing == nil {
		ing = &fakeIngester{}
	}
	if srch == nil {
		srch = &fakeSearcher{}
	}
	if h == nil {
		h = &fakeHealth{}
	}
	return NewServer(ing, srch, h, nil).Router()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}
