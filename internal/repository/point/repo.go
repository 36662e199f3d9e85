// Package point persists invoice points. Repo targets Redis/Valkey search
// indexes over hashes; TableRepo targets stores that own their tables.
package point

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/invoicedex/internal/db"
	"github.com/kailas-cloud/invoicedex/internal/domain"
	"github.com/kailas-cloud/invoicedex/internal/domain/filter"
	dompoint "github.com/kailas-cloud/invoicedex/internal/domain/point"
)

// store is the consumer interface for FT-backed points (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements usecase/storage.Repository over FT.* indexes.
type Repo struct {
	store     store
	keyPrefix string
	hnsw      HNSWConfig
}

// New creates a point repository. An empty prefix falls back to domain.KeyPrefix.
func New(s store, keyPrefix string) *Repo {
	if keyPrefix == "" {
		keyPrefix = domain.KeyPrefix
	}
	return &Repo{store: s, keyPrefix: keyPrefix, hnsw: HNSWConfig{M: 16, EFConstruct: 200}}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// CollectionExists checks the collection's index.
func (r *Repo) CollectionExists(ctx context.Context, name string) (bool, error) {
	ok, err := r.store.IndexExists(ctx, r.indexName(name))
	if err != nil {
		return false, fmt.Errorf("index exists %s: %w", name, err)
	}
	return ok, nil
}

// CreateCollection creates the collection's index. An existing index yields
// domain.ErrAlreadyExists.
func (r *Repo) CreateCollection(ctx context.Context, name string, dim int, metric string) error {
	distance, err := db.ParseDistanceMetric(metric)
	if err != nil {
		return err
	}

	def, err := db.NewIndex(r.indexName(name)).
		Prefix(r.collectionPrefix(name)).
		Tag(filter.FieldCurrency, "").
		Tag(filter.FieldVendor, "|").
		Numeric(filter.FieldTotalAmount).
		Numeric(filter.FieldInvoiceDate).
		VectorHNSW(fieldVector, vectorAlias, dim, distance, r.hnsw.M, r.hnsw.EFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build index %s: %w", name, err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("create index %s: %w", name, err)
	}
	return nil
}

// Upsert writes the point as one hash.
func (r *Repo) Upsert(ctx context.Context, collection string, p *dompoint.Point) error {
	rec, err := toRecord(p)
	if err != nil {
		return err
	}
	key := r.pointKey(collection, p.ID)
	if err := r.store.HSet(ctx, key, hashFields(rec)); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// Query runs KNN over the collection index. An absent index yields domain.ErrNotFound.
func (r *Repo) Query(
	ctx context.Context, collection string, vec []float32, limit int, f filter.Expression,
) ([]dompoint.Hit, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName(collection),
		VectorField:  vectorAlias,
		Filters:      f,
		Vector:       vec,
		K:            limit,
		ReturnFields: []string{fieldPayload},
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("knn %s: %w", collection, err)
	}

	prefix := r.collectionPrefix(collection)
	hits := make([]dompoint.Hit, 0, len(res.Entries))
	for _, e := range res.Entries {
		hit, err := toHit(strings.TrimPrefix(e.Key, prefix), e.Score, []byte(e.Fields[fieldPayload]))
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (r *Repo) collectionPrefix(collection string) string {
	return r.keyPrefix + collection + ":"
}

func (r *Repo) pointKey(collection, id string) string {
	return r.collectionPrefix(collection) + id
}

func (r *Repo) indexName(collection string) string {
	return r.keyPrefix + collection + ":idx"
}
