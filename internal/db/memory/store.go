// Package memory keeps collections in process memory. It backs tests and
// the "memory" database driver; nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kailas-cloud/invoicedex/internal/db"
	"github.com/kailas-cloud/invoicedex/internal/vector"
)

var _ db.PointTable = (*Store)(nil)

type collection struct {
	dim    int
	points map[string]int // id -> index in rows
	rows   []db.PointRecord
}

// Store implements db.PointTable with a mutex-guarded map.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{collections: make(map[string]*collection)}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(context.Context, time.Duration) error { return nil }

// CollectionExists reports whether the collection has been created.
func (s *Store) CollectionExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

// CreateCollection registers a collection. An existing one yields db.ErrIndexExists.
func (s *Store) CreateCollection(_ context.Context, name string, dim int, metric db.DistanceMetric) error {
	if dim <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", dim)
	}
	if metric != db.DistanceCosine {
		return fmt.Errorf("metric %s is not supported", metric)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return db.ErrIndexExists
	}
	s.collections[name] = &collection{dim: dim, points: make(map[string]int)}
	return nil
}

// UpsertPoint stores a copy of p.
func (s *Store) UpsertPoint(ctx context.Context, name string, p *db.PointRecord) error {
	if err := ctx.Err(); err != nil {
		return &db.Error{Op: db.OpUpsert, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return db.ErrIndexNotFound
	}
	if len(p.Vector) != c.dim {
		return fmt.Errorf("%w: got %d, collection has %d", db.ErrDimMismatch, len(p.Vector), c.dim)
	}

	rec := clone(p)
	if i, ok := c.points[p.ID]; ok {
		c.rows[i] = rec
		return nil
	}
	c.points[p.ID] = len(c.rows)
	c.rows = append(c.rows, rec)
	return nil
}

// QueryPoints ranks the points that pass the filter, highest similarity
// first. Ties keep insertion order.
func (s *Store) QueryPoints(ctx context.Context, name string, q *db.PointQuery) ([]db.ScoredRecord, error) {
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}
	if err := ctx.Err(); err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, db.ErrIndexNotFound
	}
	if len(q.Vector) != c.dim {
		return nil, fmt.Errorf("%w: got %d, collection has %d", db.ErrDimMismatch, len(q.Vector), c.dim)
	}

	query, err := vector.NewQuery(q.Vector)
	if err != nil {
		return []db.ScoredRecord{}, nil
	}

	hits := make([]db.ScoredRecord, 0, len(c.rows))
	for i := range c.rows {
		r := &c.rows[i]
		if !q.Filters.Eval(r.Tags, r.Numbers) {
			continue
		}
		score, err := query.Similarity(r.Vector)
		if err != nil {
			continue
		}
		hits = append(hits, db.ScoredRecord{ID: r.ID, Score: score, Payload: r.Payload})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > q.K {
		hits = hits[:q.K]
	}
	return hits, nil
}

// Len returns the number of points in a collection.
func (s *Store) Len(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.collections[name]; ok {
		return len(c.rows)
	}
	return 0
}

func clone(p *db.PointRecord) db.PointRecord {
	out := db.PointRecord{
		ID:      p.ID,
		Vector:  append([]float32(nil), p.Vector...),
		Payload: append([]byte(nil), p.Payload...),
		Tags:    make(map[string]string, len(p.Tags)),
		Numbers: make(map[string]float64, len(p.Numbers)),
	}
	for k, v := range p.Tags {
		out.Tags[k] = v
	}
	for k, v := range p.Numbers {
		out.Numbers[k] = v
	}
	return out
}
