package chi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kailas-cloud/invoicedex/internal/domain"
	"github.com/kailas-cloud/invoicedex/internal/domain/filter"
	"github.com/kailas-cloud/invoicedex/internal/domain/invoice"
	dompoint "github.com/kailas-cloud/invoicedex/internal/domain/point"
	healthuc "github.com/kailas-cloud/invoicedex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/invoicedex/internal/usecase/ingest"
	usageuc "github.com/kailas-cloud/invoicedex/internal/usecase/usage"
)

func TestExtract_Success(t *testing.T) {
	var gotRaw string
	ing := &fakeIngester{
		ingestFn: func(ctx context.Context, raw string) (ingestuc.Result, error) {
			gotRaw = raw
			domain.UsageFromContext(ctx).AddExtraction(420)
			domain.UsageFromContext(ctx).AddEmbedding(35)
			return ingestuc.Result{ID: "id-1", Invoice: sampleInvoice()}, nil
		},
	}
	h := newTestServer(ing, nil, nil)

	rec := do(t, h, http.MethodPost, "/extract", map[string]string{"content": "Faktura nr 1"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if gotRaw != "Faktura nr 1" {
		t.Errorf("raw = %q", gotRaw)
	}
	if rec.Header().Get(HeaderInvoiceID) != "id-1" {
		t.Errorf("invoice id header = %q", rec.Header().Get(HeaderInvoiceID))
	}
	if rec.Header().Get(HeaderExtractionTokens) != "420" {
		t.Errorf("extraction tokens header = %q", rec.Header().Get(HeaderExtractionTokens))
	}
	if rec.Header().Get(HeaderEmbeddingTokens) != "35" {
		t.Errorf("embedding tokens header = %q", rec.Header().Get(HeaderEmbeddingTokens))
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected request id header")
	}

	inv := decodeBody[invoice.Invoice](t, rec)
	if inv.VendorName != "Meble Biurowe Sp. z o.o." || inv.Currency != "PLN" {
		t.Errorf("unexpected invoice: %+v", inv)
	}
	if inv.InvoiceDate.String() != "2025-01-24" {
		t.Errorf("invoice_date = %s", inv.InvoiceDate)
	}
}

func TestExtract_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorCode
		msg    string
	}{
		{
			name:   "blank content",
			err:    fmt.Errorf("extract: %w: text is empty", domain.ErrInvalidInput),
			status: http.StatusBadRequest,
			code:   CodeInvalidInput,
			msg:    "invalid input",
		},
		{
			name:   "provider failure",
			err:    fmt.Errorf("extract: %w: %w", domain.ErrExtractionFailed, errors.New("dial tcp: secret-host")),
			status: http.StatusBadGateway,
			code:   CodeExtractionFailed,
			msg:    "extraction failed",
		},
		{
			name: "budget rejected",
			err: fmt.Errorf("extract: %w: %w", domain.ErrExtractionFailed,
				fmt.Errorf("openai budget: %w", domain.ErrQuotaExceeded)),
			status: http.StatusPaymentRequired,
			code:   CodeQuotaExceeded,
			msg:    "token quota exceeded",
		},
		{
			name:   "unknown",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			code:   CodeInternalError,
			msg:    "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing := &fakeIngester{
				ingestFn: func(context.Context, string) (ingestuc.Result, error) {
					return ingestuc.Result{}, tt.err
				},
			}
			rec := do(t, newTestServer(ing, nil, nil), http.MethodPost, "/extract", map[string]string{"content": "x"})

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			body := decodeBody[errorResponse](t, rec)
			if body.Code != tt.code || body.Message != tt.msg {
				t.Errorf("body = %+v, want code %s message %q", body, tt.code, tt.msg)
			}
			if strings.Contains(rec.Body.String(), "secret-host") {
				t.Error("cause leaked into the response")
			}
		})
	}
}

func TestExtract_Refusal(t *testing.T) {
	ing := &fakeIngester{
		ingestFn: func(context.Context, string) (ingestuc.Result, error) {
			return ingestuc.Result{}, fmt.Errorf("extract: %w", domain.NewRefusal("I cannot help with that."))
		},
	}
	rec := do(t, newTestServer(ing, nil, nil), http.MethodPost, "/extract", map[string]string{"content": "x"})

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody[errorResponse](t, rec)
	if body.Code != CodeExtractionRefused || body.Reason != "I cannot help with that." {
		t.Errorf("body = %+v", body)
	}
}

func TestExtract_StorageFailureReturnsInvoice(t *testing.T) {
	ing := &fakeIngester{
		ingestFn: func(context.Context, string) (ingestuc.Result, error) {
			return ingestuc.Result{Invoice: sampleInvoice()},
				fmt.Errorf("store: %w: %w", domain.ErrPersistenceFailed, errors.New("connection reset"))
		},
	}
	rec := do(t, newTestServer(ing, nil, nil), http.MethodPost, "/extract", map[string]string{"content": "x"})

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody[errorResponse](t, rec)
	if body.Code != CodePersistenceFailed {
		t.Errorf("code = %s", body.Code)
	}
	if body.Invoice == nil || body.Invoice.VendorName != "Meble Biurowe Sp. z o.o." {
		t.Errorf("expected extracted invoice in body, got %+v", body.Invoice)
	}
	if rec.Header().Get(HeaderInvoiceID) != "" {
		t.Error("no invoice id expected on failure")
	}
}

func TestExtract_BadBody(t *testing.T) {
	rec := do(t, newTestServer(nil, nil, nil), http.MethodPost, "/extract", "{not json")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeBody[errorResponse](t, rec); body.Code != CodeBadRequest {
		t.Errorf("code = %s", body.Code)
	}
}

func TestExtract_BodyTooLarge(t *testing.T) {
	called := false
	ing := &fakeIngester{
		ingestFn: func(context.Context, string) (ingestuc.Result, error) {
			called = true
			return ingestuc.Result{}, nil
		},
	}
	h := NewServer(ing, &fakeSearcher{}, &fakeHealth{}, nil).WithMaxBodyKB(1).Router()

	rec := do(t, h, http.MethodPost, "/extract", map[string]string{"content": strings.Repeat("a", 4096)})

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeBody[errorResponse](t, rec); body.Code != CodePayloadTooLarge {
		t.Errorf("code = %s", body.Code)
	}
	if called {
		t.Error("ingester must not be called")
	}
}

func TestPreview(t *testing.T) {
	ing := &fakeIngester{
		previewFn: func(ctx context.Context, raw string) (invoice.Invoice, error) {
			domain.UsageFromContext(ctx).AddExtraction(100)
			return sampleInvoice(), nil
		},
		ingestFn: func(context.Context, string) (ingestuc.Result, error) {
			t.Error("preview must not store")
			return ingestuc.Result{}, nil
		},
	}
	rec := do(t, newTestServer(ing, nil, nil), http.MethodPost, "/extract/preview", map[string]string{"content": "x"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get(HeaderExtractionTokens) != "100" {
		t.Errorf("extraction tokens header = %q", rec.Header().Get(HeaderExtractionTokens))
	}
	if rec.Header().Get(HeaderEmbeddingTokens) != "" {
		t.Error("no embedding tokens expected")
	}
}

func TestExtractBatch(t *testing.T) {
	ing := &fakeIngester{
		batchFn: func(_ context.Context, raws []string) []ingestuc.Outcome {
			if len(raws) != 3 {
				t.Errorf("got %d raws", len(raws))
			}
			return []ingestuc.Outcome{
				{Index: 0, ID: "a", Invoice: sampleInvoice(), Extracted: true},
				{Index: 1, Err: fmt.Errorf("extract: %w", domain.NewRefusal("no"))},
				{Index: 2, Invoice: sampleInvoice(), Extracted: true,
					Err: fmt.Errorf("store: %w: %w", domain.ErrPersistenceFailed, errors.New("down"))},
			}
		},
	}
	rec := do(t, newTestServer(ing, nil, nil), http.MethodPost, "/extract/batch",
		map[string][]string{"contents": {"a", "b", "c"}})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody[batchResponse](t, rec)
	if body.Succeeded != 1 || body.Failed != 2 {
		t.Errorf("succeeded=%d failed=%d", body.Succeeded, body.Failed)
	}
	if body.Items[0].ID != "a" || body.Items[0].Error != nil || body.Items[0].Invoice == nil {
		t.Errorf("item 0 = %+v", body.Items[0])
	}
	if e := body.Items[1].Error; e == nil || e.Code != CodeExtractionRefused || e.Reason != "no" {
		t.Errorf("item 1 error = %+v", e)
	}
	if body.Items[1].Invoice != nil {
		t.Error("item 1 must not carry an invoice")
	}
	if e := body.Items[2].Error; e == nil || e.Code != CodePersistenceFailed || body.Items[2].Invoice == nil {
		t.Errorf("item 2 = %+v", body.Items[2])
	}
}

func TestExtractBatch_Validation(t *testing.T) {
	tests := []struct {
		name     string
		contents []string
	}{
		{"empty", nil},
		{"too large", make([]string, ingestuc.MaxBatchSize+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestServer(nil, nil, nil), http.MethodPost, "/extract/batch",
				map[string][]string{"contents": tt.contents})
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
		})
	}
}

func TestSearch_Post(t *testing.T) {
	var gotLimit int
	var gotExpr filter.Expression
	srch := &fakeSearcher{
		searchFn: func(ctx context.Context, query string, limit int, f filter.Expression) ([]dompoint.Hit, error) {
			if query != "zakup wyposażenia do biura" {
				t.Errorf("query = %q", query)
			}
			gotLimit, gotExpr = limit, f
			domain.UsageFromContext(ctx).AddEmbedding(7)
			return []dompoint.Hit{{ID: "p1", Score: 0.91, Payload: sampleInvoice()}}, nil
		},
	}
	h := newTestServer(nil, srch, nil)

	rec := do(t, h, http.MethodPost, "/search", map[string]any{
		"query":  "zakup wyposażenia do biura",
		"filter": map[string]any{"currency": "PLN", "min_total": 100},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if gotLimit != 5 {
		t.Errorf("limit = %d, want default 5", gotLimit)
	}
	if len(gotExpr.Must()) != 2 {
		t.Errorf("expected 2 filter conditions, got %d", len(gotExpr.Must()))
	}
	if rec.Header().Get(HeaderEmbeddingTokens) != "7" {
		t.Errorf("embedding tokens header = %q", rec.Header().Get(HeaderEmbeddingTokens))
	}

	body := decodeBody[searchResponse](t, rec)
	if len(body.Points) != 1 || body.Points[0].ID != "p1" || body.Points[0].Score != 0.91 {
		t.Errorf("points = %+v", body.Points)
	}
}

func TestSearch_EmptyResultIsArray(t *testing.T) {
	srch := &fakeSearcher{
		searchFn: func(context.Context, string, int, filter.Expression) ([]dompoint.Hit, error) {
			return []dompoint.Hit{}, nil
		},
	}
	rec := do(t, newTestServer(nil, srch, nil), http.MethodPost, "/search", map[string]any{"query": "x", "limit": 3})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"points":[]`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   map[string]any
		err    error
		status int
	}{
		{"invalid filter", map[string]any{"query": "x", "filter": map[string]any{"currency": "  "}}, nil, http.StatusBadRequest},
		{"bad limit", map[string]any{"query": "x", "limit": 0},
			fmt.Errorf("%w: limit", domain.ErrInvalidInput), http.StatusBadRequest},
		{"embedding", map[string]any{"query": "x"},
			fmt.Errorf("embed: %w: %w", domain.ErrEmbeddingFailed, errors.New("timeout")), http.StatusBadGateway},
		{"query", map[string]any{"query": "x"},
			fmt.Errorf("query: %w: %w", domain.ErrSearchFailed, errors.New("down")), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srch := &fakeSearcher{
				searchFn: func(context.Context, string, int, filter.Expression) ([]dompoint.Hit, error) {
					return nil, tt.err
				},
			}
			rec := do(t, newTestServer(nil, srch, nil), http.MethodPost, "/search", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestSearch_GetBindsQuery(t *testing.T) {
	var gotQuery string
	var gotLimit int
	var gotExpr filter.Expression
	srch := &fakeSearcher{
		searchFn: func(_ context.Context, query string, limit int, f filter.Expression) ([]dompoint.Hit, error) {
			gotQuery, gotLimit, gotExpr = query, limit, f
			return []dompoint.Hit{}, nil
		},
	}
	h := newTestServer(nil, srch, nil)

	rec := do(t, h, http.MethodGet, "/search?q=biurko&limit=3&currency=EUR&date_from=20250101", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if gotQuery != "biurko" || gotLimit != 3 {
		t.Errorf("query=%q limit=%d", gotQuery, gotLimit)
	}
	if len(gotExpr.Must()) != 2 {
		t.Fatalf("expected 2 conditions, got %d", len(gotExpr.Must()))
	}
	if c := gotExpr.Must()[0]; c.Key() != filter.FieldCurrency || c.Match() != "EUR" {
		t.Errorf("first condition = %s:%s", c.Key(), c.Match())
	}
}

func TestSearch_GetWithoutFilter(t *testing.T) {
	var gotExpr filter.Expression
	srch := &fakeSearcher{
		searchFn: func(_ context.Context, _ string, _ int, f filter.Expression) ([]dompoint.Hit, error) {
			gotExpr = f
			return []dompoint.Hit{}, nil
		},
	}
	rec := do(t, newTestServer(nil, srch, nil), http.MethodGet, "/search?q=fotel", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !gotExpr.IsEmpty() {
		t.Error("expected empty filter")
	}
}

func TestSearch_GetBindingErrors(t *testing.T) {
	var calls atomic.Int32
	srch := &fakeSearcher{
		searchFn: func(context.Context, string, int, filter.Expression) ([]dompoint.Hit, error) {
			calls.Add(1)
			return nil, nil
		},
	}
	h := newTestServer(nil, srch, nil)

	for _, path := range []string{"/search", "/search?q=x&limit=abc", "/search?q=x&min_total=lots"} {
		rec := do(t, h, http.MethodGet, path, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", path, rec.Code)
		}
		if body := decodeBody[errorResponse](t, rec); body.Code != CodeInvalidInput {
			t.Errorf("%s: code = %s", path, body.Code)
		}
	}
	if calls.Load() != 0 {
		t.Errorf("searcher called %d times", calls.Load())
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		code   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusServiceUnavailable},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			h := &fakeHealth{report: healthuc.Report{
				Status: tt.status,
				Checks: map[string]healthuc.CheckResult{healthuc.Database: healthuc.CheckOK},
			}}
			handler := NewServer(&fakeIngester{}, &fakeSearcher{}, h, nil).WithVersion("v1.2.3").Router()

			rec := do(t, handler, http.MethodGet, "/health", nil)

			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d", rec.Code, tt.code)
			}
			body := decodeBody[healthResponse](t, rec)
			if body.Status != tt.status || body.Checks[healthuc.Database] != healthuc.CheckOK {
				t.Errorf("body = %+v", body)
			}
			if body.Version != "v1.2.3" {
				t.Errorf("version = %q", body.Version)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, newTestServer(nil, nil, nil), http.MethodGet, "/metrics", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("expected Go runtime metrics in exposition")
	}
}

type fakeUsage struct {
	got usageuc.Period
}

func (f *fakeUsage) Report(p usageuc.Period) usageuc.Report {
	f.got = p
	return usageuc.Report{Period: p, TokensUsed: 1200, TokensLimit: 5000, TokensRemaining: 3800, Limited: true}
}

func TestGetUsage(t *testing.T) {
	u := &fakeUsage{}
	h := NewServer(&fakeIngester{}, &fakeSearcher{}, &fakeHealth{}, nil).WithUsage(u).Router()

	rec := do(t, h, http.MethodGet, "/usage?period=month", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if u.got != usageuc.PeriodMonth {
		t.Errorf("period = %s", u.got)
	}
	body := decodeBody[usageuc.Report](t, rec)
	if body.TokensUsed != 1200 || body.TokensRemaining != 3800 || !body.Limited {
		t.Errorf("body = %+v", body)
	}

	rec = do(t, h, http.MethodGet, "/usage", nil)
	if rec.Code != http.StatusOK || u.got != usageuc.PeriodDay {
		t.Errorf("default period: status %d, period %s", rec.Code, u.got)
	}

	rec = do(t, h, http.MethodGet, "/usage?period=year", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid period: status = %d", rec.Code)
	}
}

func TestGetUsage_Disabled(t *testing.T) {
	rec := do(t, newTestServer(nil, nil, nil), http.MethodGet, "/usage", nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
