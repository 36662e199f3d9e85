package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kailas-cloud/invoicedex/internal/config"
	"github.com/kailas-cloud/invoicedex/internal/domain"
	"github.com/kailas-cloud/invoicedex/internal/domain/invoice"
	healthuc "github.com/kailas-cloud/invoicedex/internal/usecase/health"
	usageuc "github.com/kailas-cloud/invoicedex/internal/usecase/usage"
)

const testDims = 8

var axes = []string{"fotel", "biurk", "krzes", "laptop", "kabel", "paliw", "usług"}

// fakeOpenAI serves embeddings, chat completions and the model list.
// Vectors put one axis per stem found in the text plus a small bias.
type fakeOpenAI struct {
	chatCalls  atomic.Int32
	embedCalls atomic.Int32
}

func (f *fakeOpenAI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/embeddings":
		f.embedCalls.Add(1)
		var req struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		text := ""
		if len(req.Input) > 0 {
			text = strings.ToLower(req.Input[0])
		}
		vec := make([]float32, testDims)
		for i, stem := range axes {
			if strings.Contains(text, stem) {
				vec[i] = 1
			}
		}
		vec[testDims-1] = 0.1
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": vec}},
			"usage":  map[string]int{"prompt_tokens": 12, "total_tokens": 12},
		})

	case "/chat/completions":
		f.chatCalls.Add(1)
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		user := req.Messages[len(req.Messages)-1].Content

		content := `{"vendor_name":"TechSklep","invoice_date":"2025-02-01",` +
			`"items":[{"name":"Laptop","quantity":1,"price":"4500.00"}],"total_amount":"4500.00","currency":"PLN"}`
		if strings.Contains(user, "Fotel") {
			content = `{"vendor_name":"Meble Biurowe Sp. z o.o.","invoice_date":"2025-01-24",` +
				`"items":[{"name":"Fotel Ergonomiczny","quantity":1,"price":"1200.00"}],` +
				`"total_amount":"1200.00","currency":"PLN"}`
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 300, "completion_tokens": 50, "total_tokens": 350},
		})

	case "/models":
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": []any{}})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func testConfig(t *testing.T, baseURL string) config.Config {
	t.Helper()
	cfg := config.Config{
		Database:  config.DatabaseConfig{Driver: config.DriverMemory},
		OpenAI:    config.OpenAIConfig{APIKey: "sk-test", BaseURL: baseURL},
		Embedding: config.EmbeddingConfig{Dimensions: testDims},
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return cfg
}

func newFake(t *testing.T) (*fakeOpenAI, string) {
	t.Helper()
	fake := &fakeOpenAI{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return fake, srv.URL
}

func mustNew(t *testing.T, cfg config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.Close)
	if err := a.Storage.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	return a
}

func TestNew_MemoryPipeline(t *testing.T) {
	ctx := context.Background()
	fake, url := newFake(t)

	a := mustNew(t, testConfig(t, url))
	if a.Budget != nil {
		t.Error("budget should be disabled without limits")
	}

	res, err := a.Ingest.Ingest(ctx, "Faktura VAT\nFotel Ergonomiczny 1 szt. 1.200,00 zł")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.ID == "" {
		t.Error("expected a point id")
	}
	if res.Invoice.VendorName != "Meble Biurowe Sp. z o.o." {
		t.Errorf("vendor = %q", res.Invoice.VendorName)
	}

	if _, err := a.Ingest.Ingest(ctx, "Paragon: Laptop 4500 PLN"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	hits, err := a.Storage.Search(ctx, "fotel do biura", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].ID != res.ID || hits[0].Payload.Items[0].Name != "Fotel Ergonomiczny" {
		t.Errorf("hit = %+v", hits[0])
	}

	if n := fake.chatCalls.Load(); n != 2 {
		t.Errorf("chat calls = %d, want 2", n)
	}
	if n := fake.embedCalls.Load(); n != 3 {
		t.Errorf("embedding calls = %d, want 3", n)
	}

	report := a.Health.Check(ctx)
	if report.Status != healthuc.Healthy || len(report.Checks) != 3 {
		t.Errorf("health = %+v", report)
	}
}

func TestNew_SQLite(t *testing.T) {
	ctx := context.Background()
	_, url := newFake(t)

	cfg := testConfig(t, url)
	cfg.Database = config.DatabaseConfig{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "inv.db")}
	cfg.ApplyDefaults()

	a := mustNew(t, cfg)
	if err := a.Storage.EnsureCollection(ctx); err != nil {
		t.Fatalf("second EnsureCollection: %v", err)
	}

	if _, err := a.Ingest.Ingest(ctx, "Fotel Ergonomiczny 1200 zł"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	hits, err := a.Storage.Search(ctx, "fotel", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Payload.Currency != invoice.Currency("PLN") {
		t.Errorf("hits = %+v", hits)
	}
}

func TestNew_BudgetRejectsSharedAcrossStages(t *testing.T) {
	ctx := context.Background()
	_, url := newFake(t)

	cfg := testConfig(t, url)
	cfg.OpenAI.Budget = config.BudgetConfig{DailyTokenLimit: 100, Action: "reject"}

	a := mustNew(t, cfg)
	if a.Budget == nil {
		t.Fatal("expected a budget tracker")
	}

	// Extraction spends 350 tokens, so the embedding stage is already over budget.
	res, err := a.Ingest.Ingest(ctx, "Fotel Ergonomiczny")
	if !errors.Is(err, domain.ErrQuotaExceeded) || !errors.Is(err, domain.ErrEmbeddingFailed) {
		t.Fatalf("expected quota rejection at embedding, got %v", err)
	}
	rep := a.Usage.Report(usageuc.PeriodDay)
	if rep.TokensUsed != 350 || !rep.Exhausted {
		t.Errorf("usage = %+v, want 350 used and exhausted", rep)
	}
	if res.Invoice.VendorName != "Meble Biurowe Sp. z o.o." {
		t.Errorf("extracted vendor = %q", res.Invoice.VendorName)
	}

	if _, err := a.Extraction.Extract(ctx, "Fotel Ergonomiczny"); !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Errorf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1/v1")
	cfg.Database.Driver = "postgres"

	_, err := New(context.Background(), cfg, nil)
	if err == nil || !strings.Contains(err.Error(), "unknown database driver") {
		t.Errorf("expected unknown driver error, got %v", err)
	}
}

func TestNew_InvalidBudgetAction(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1/v1")
	cfg.OpenAI.Budget = config.BudgetConfig{DailyTokenLimit: 10, Action: "explode"}

	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Error("expected error for invalid budget action")
	}
}
