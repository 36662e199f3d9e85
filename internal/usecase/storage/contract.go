package storage

import (
	"context"

	"github.com/kailas-cloud/invoicedex/internal/domain"
	"github.com/kailas-cloud/invoicedex/internal/domain/filter"
	dompoint "github.com/kailas-cloud/invoicedex/internal/domain/point"
)

// Repository is the vector store port. Query on an absent collection
// returns domain.ErrNotFound; CreateCollection on an existing one returns
// domain.ErrAlreadyExists.
type Repository interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string, dim int, metric string) error
	Upsert(ctx context.Context, collection string, p *dompoint.Point) error
	Query(ctx context.Context, collection string, vec []float32, limit int, f filter.Expression) ([]dompoint.Hit, error)
}

// Embedder vectorizes text. Documents and queries must share one Embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
