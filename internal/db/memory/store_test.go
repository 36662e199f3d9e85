package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/kailas-cloud/invoicedex/internal/db"
	"github.com/kailas-cloud/invoicedex/internal/domain/filter"
)

func mustCreate(t *testing.T, s *Store, name string, dim int) {
	t.Helper()
	if err := s.CreateCollection(context.Background(), name, dim, db.DistanceCosine); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
}

func mustUpsert(t *testing.T, s *Store, name string, r *db.PointRecord) {
	t.Helper()
	if err := s.UpsertPoint(context.Background(), name, r); err != nil {
		t.Fatalf("UpsertPoint(%s): %v", r.ID, err)
	}
}

func TestCreateCollection(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	ok, err := s.CollectionExists(ctx, "invoices")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("collection should not exist yet")
	}

	mustCreate(t, s, "invoices", 4)
	if err := s.CreateCollection(ctx, "invoices", 4, db.DistanceCosine); !errors.Is(err, db.ErrIndexExists) {
		t.Errorf("expected ErrIndexExists, got %v", err)
	}
	if err := s.CreateCollection(ctx, "other", 4, db.DistanceIP); err == nil {
		t.Error("expected error for unsupported metric")
	}
}

func TestUpsertAndQuery(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	mustCreate(t, s, "invoices", 2)

	mustUpsert(t, s, "invoices", &db.PointRecord{
		ID: "a", Vector: []float32{1, 0}, Payload: []byte("A"),
		Tags: map[string]string{filter.FieldCurrency: "PLN"},
	})
	mustUpsert(t, s, "invoices", &db.PointRecord{
		ID: "b", Vector: []float32{0, 1}, Payload: []byte("B"),
		Tags: map[string]string{filter.FieldCurrency: "EUR"},
	})

	hits, err := s.QueryPoints(ctx, "invoices", &db.PointQuery{Vector: []float32{0.2, 1}, K: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].ID != "b" || !bytes.Equal(hits[0].Payload, []byte("B")) {
		t.Errorf("best hit = %s %q, want b B", hits[0].ID, hits[0].Payload)
	}

	cond, _ := filter.NewMatch(filter.FieldCurrency, "pln")
	expr, _ := filter.NewExpression([]filter.Condition{cond}, nil)
	hits, err = s.QueryPoints(ctx, "invoices", &db.PointQuery{Vector: []float32{0.2, 1}, K: 5, Filters: expr})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "a" {
		t.Errorf("filtered hits = %+v, want only a", hits)
	}
}

func TestUpsert_CopiesInput(t *testing.T) {
	s := NewStore()
	mustCreate(t, s, "c", 2)

	v := []float32{1, 0}
	mustUpsert(t, s, "c", &db.PointRecord{ID: "a", Vector: v})
	v[0], v[1] = 0, 1

	hits, err := s.QueryPoints(context.Background(), "c", &db.PointQuery{Vector: []float32{1, 0}, K: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(hits[0].Score-1) > 1e-6 {
		t.Errorf("score = %v, want 1", hits[0].Score)
	}
}

func TestQuery_ZeroVectorMatchesNothing(t *testing.T) {
	s := NewStore()
	mustCreate(t, s, "c", 2)
	mustUpsert(t, s, "c", &db.PointRecord{ID: "a", Vector: []float32{1, 0}})

	hits, err := s.QueryPoints(context.Background(), "c", &db.PointQuery{Vector: []float32{0, 0}, K: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("hits = %+v, want none", hits)
	}
}

func TestErrors(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.UpsertPoint(ctx, "missing", &db.PointRecord{ID: "a", Vector: []float32{1}}); !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("upsert into missing: got %v", err)
	}
	if _, err := s.QueryPoints(ctx, "missing", &db.PointQuery{Vector: []float32{1}, K: 1}); !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("query missing: got %v", err)
	}

	mustCreate(t, s, "c", 2)
	if err := s.UpsertPoint(ctx, "c", &db.PointRecord{ID: "a", Vector: []float32{1}}); !errors.Is(err, db.ErrDimMismatch) {
		t.Errorf("wrong dims: got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := s.UpsertPoint(cancelled, "c", &db.PointRecord{ID: "a", Vector: []float32{1, 0}}); err == nil {
		t.Error("expected error on cancelled context")
	}
	if n := s.Len("c"); n != 0 {
		t.Errorf("Len = %d, want 0", n)
	}
}

func TestConcurrentUpserts(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	mustCreate(t, s, "c", 2)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.UpsertPoint(ctx, "c", &db.PointRecord{
				ID: fmt.Sprintf("p%d", i), Vector: []float32{1, float32(i)},
			}); err != nil {
				t.Errorf("UpsertPoint(p%d): %v", i, err)
			}
		}()
	}
	wg.Wait()
	if n := s.Len("c"); n != 50 {
		t.Errorf("Len = %d, want 50", n)
	}
}
