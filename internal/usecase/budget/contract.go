package budget

import "context"

// Store persists budget counters. IncrBy may be retried, so it must add, not set.
type Store interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}
