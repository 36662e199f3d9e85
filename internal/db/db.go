package db

import (
	"context"
	"time"
)

// Store is the Redis-protocol facade: search indexes over hashes plus plain
// keys for the embedding cache and token budget.
//
//nolint:interfacebloat // facade; consumers declare the narrow subset they use
type Store interface {
	Pinger
	HashStore
	KVStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore writes hash keys. Points are write-once: there is no read-back
// or delete path.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
}

// KVStore provides plain string keys with counters and expiry.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher runs vector similarity queries over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}

// PointTable is implemented by stores that keep vectors in their own tables
// and rank in process (SQLite, memory). Collection errors follow the FT
// conventions: ErrIndexExists on create, ErrIndexNotFound on query.
type PointTable interface {
	Pinger
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string, dim int, metric DistanceMetric) error
	UpsertPoint(ctx context.Context, collection string, p *PointRecord) error
	QueryPoints(ctx context.Context, collection string, q *PointQuery) ([]ScoredRecord, error)
	Close()
}
