// Package budget persists token budget counters in the key-value store.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/invoicedex/internal/db"
)

const (
	// DefaultDailyTTL keeps a daily counter a day past its period.
	DefaultDailyTTL = 48 * time.Hour
	// DefaultMonthlyTTL keeps a monthly counter past the longest month.
	DefaultMonthlyTTL = 62 * 24 * time.Hour
)

// store is the consumer interface for budget operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store implements the tracker's persistence on INCRBY + EXPIRE NX + GET.
// Every key is namespaced with prefix.
type Store struct {
	store    store
	prefix   string
	dailyTTL time.Duration
	monthTTL time.Duration
}

// New creates a budget store with the default TTLs.
func New(s store, prefix string) *Store {
	return &Store{store: s, prefix: prefix, dailyTTL: DefaultDailyTTL, monthTTL: DefaultMonthlyTTL}
}

// WithTTL overrides the counter TTLs. Zero values keep the defaults.
func (s *Store) WithTTL(daily, monthly time.Duration) *Store {
	if daily > 0 {
		s.dailyTTL = daily
	}
	if monthly > 0 {
		s.monthTTL = monthly
	}
	return s
}

// IncrBy atomically increments the counter and sets its TTL once.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	key = s.prefix + key
	if err := s.store.IncrBy(ctx, key, val); err != nil {
		return fmt.Errorf("budget INCRBY %s: %w", key, err)
	}
	// NX: the first increment of a period fixes the expiry.
	if err := s.store.Expire(ctx, key, s.ttlForKey(key), true); err != nil {
		return fmt.Errorf("budget EXPIRE %s: %w", key, err)
	}
	return nil
}

// Get returns the counter value, 0 when the key does not exist.
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	key = s.prefix + key
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("budget GET %s: %w", key, err)
	}

	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget GET %s parse: %w", key, err)
	}
	return val, nil
}

func (s *Store) ttlForKey(key string) time.Duration {
	if strings.Contains(key, ":daily:") {
		return s.dailyTTL
	}
	return s.monthTTL
}
