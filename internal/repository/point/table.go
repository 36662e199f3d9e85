package point

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/invoicedex/internal/db"
	"github.com/kailas-cloud/invoicedex/internal/domain"
	"github.com/kailas-cloud/invoicedex/internal/domain/filter"
	dompoint "github.com/kailas-cloud/invoicedex/internal/domain/point"
)

// table is the consumer interface for table-backed points (ISP).
type table interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string, dim int, metric db.DistanceMetric) error
	UpsertPoint(ctx context.Context, collection string, p *db.PointRecord) error
	QueryPoints(ctx context.Context, collection string, q *db.PointQuery) ([]db.ScoredRecord, error)
}

// TableRepo implements usecase/storage.Repository over SQLite or memory.
type TableRepo struct {
	table table
}

// NewTable creates a table-backed point repository.
func NewTable(t table) *TableRepo {
	return &TableRepo{table: t}
}

// CollectionExists reports whether the collection exists.
func (r *TableRepo) CollectionExists(ctx context.Context, name string) (bool, error) {
	ok, err := r.table.CollectionExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("collection exists %s: %w", name, err)
	}
	return ok, nil
}

// CreateCollection creates the collection. An existing one yields domain.ErrAlreadyExists.
func (r *TableRepo) CreateCollection(ctx context.Context, name string, dim int, metric string) error {
	distance, err := db.ParseDistanceMetric(metric)
	if err != nil {
		return err
	}
	if err := r.table.CreateCollection(ctx, name, dim, distance); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

// Upsert writes one point.
func (r *TableRepo) Upsert(ctx context.Context, collection string, p *dompoint.Point) error {
	rec, err := toRecord(p)
	if err != nil {
		return err
	}
	if err := r.table.UpsertPoint(ctx, collection, rec); err != nil {
		return mapTableErr(fmt.Sprintf("upsert %s/%s", collection, p.ID), err)
	}
	return nil
}

// Query ranks the collection against vec. An absent collection yields domain.ErrNotFound.
func (r *TableRepo) Query(
	ctx context.Context, collection string, vec []float32, limit int, f filter.Expression,
) ([]dompoint.Hit, error) {
	recs, err := r.table.QueryPoints(ctx, collection, &db.PointQuery{Vector: vec, K: limit, Filters: f})
	if err != nil {
		return nil, mapTableErr("query "+collection, err)
	}

	hits := make([]dompoint.Hit, 0, len(recs))
	for _, rec := range recs {
		hit, err := toHit(rec.ID, rec.Score, rec.Payload)
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func mapTableErr(op string, err error) error {
	switch {
	case errors.Is(err, db.ErrIndexNotFound):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case errors.Is(err, db.ErrDimMismatch):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrVectorDimMismatch, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
