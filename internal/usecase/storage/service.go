// Package storage persists invoices as vector points and answers similarity queries.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/invoicedex/internal/domain"
	"github.com/kailas-cloud/invoicedex/internal/domain/filter"
	"github.com/kailas-cloud/invoicedex/internal/domain/invoice"
	dompoint "github.com/kailas-cloud/invoicedex/internal/domain/point"
	"github.com/kailas-cloud/invoicedex/internal/logger"
	"github.com/kailas-cloud/invoicedex/internal/metrics"
)

const (
	// DefaultLimit is the result count when the caller gives none.
	DefaultLimit = 5
	// DefaultMaxLimit caps the result count.
	DefaultMaxLimit = 100
)

// Service is the vector store adapter of the invoice pipeline.
type Service struct {
	repo         Repository
	embed        Embedder
	collection   string
	dims         int
	metric       string
	defaultLimit int
	maxLimit     int
	logger       *zap.Logger
}

// New creates a storage service over the "invoices" collection with the
// default vector configuration.
func New(repo Repository, embed Embedder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	vc := domain.DefaultVectorConfig()
	return &Service{
		repo:         repo,
		embed:        embed,
		collection:   domain.CollectionName,
		dims:         vc.Dimensions,
		metric:       vc.DistanceMetric,
		defaultLimit: DefaultLimit,
		maxLimit:     DefaultMaxLimit,
		logger:       logger,
	}
}

// WithCollection overrides the collection name.
func (s *Service) WithCollection(name string) *Service {
	if name != "" {
		s.collection = name
	}
	return s
}

// WithVectorConfig sets the collection dimension and distance metric.
func (s *Service) WithVectorConfig(dims int, metric string) *Service {
	if dims > 0 {
		s.dims = dims
	}
	if metric != "" {
		s.metric = metric
	}
	return s
}

// WithLimits sets the default and maximum result counts.
func (s *Service) WithLimits(defaultLimit, maxLimit int) *Service {
	if maxLimit > 0 {
		s.maxLimit = maxLimit
	}
	if defaultLimit > 0 && defaultLimit <= s.maxLimit {
		s.defaultLimit = defaultLimit
	}
	return s
}

// DefaultLimit returns the configured default result count.
func (s *Service) DefaultLimit() int { return s.defaultLimit }

// MaxLimit returns the configured maximum result count.
func (s *Service) MaxLimit() int { return s.maxLimit }

// Collection returns the collection name.
func (s *Service) Collection() string { return s.collection }

// EnsureCollection creates the collection unless it exists. It is idempotent.
//
// Existence check and creation are two calls, so two processes may both see
// no collection and both try to create it; the loser's "already exists"
// answer is treated as success.
func (s *Service) EnsureCollection(ctx context.Context) error {
	exists, err := s.repo.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w: %w", s.collection, domain.ErrPersistenceFailed, err)
	}
	if exists {
		return nil
	}

	err = s.repo.CreateCollection(ctx, s.collection, s.dims, s.metric)
	switch {
	case err == nil:
		s.logger.Info("Collection created",
			zap.String("collection", s.collection),
			zap.Int("dimensions", s.dims),
			zap.String("metric", s.metric),
		)
		return nil
	case errors.Is(err, domain.ErrAlreadyExists):
		return nil
	default:
		return fmt.Errorf("create collection %s: %w: %w", s.collection, domain.ErrPersistenceFailed, err)
	}
}

// AddInvoice embeds the raw text, never the record, and stores one point
// carrying the record as payload. It returns the generated point ID.
func (s *Service) AddInvoice(ctx context.Context, inv *invoice.Invoice, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: invoice text is empty", domain.ErrInvalidInput)
	}
	if err := inv.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	vec, err := s.vectorize(ctx, raw)
	if err != nil {
		return "", err
	}

	p := &dompoint.Point{ID: uuid.NewString(), Vector: vec, Payload: *inv}
	if err := s.repo.Upsert(ctx, s.collection, p); err != nil {
		metrics.PointsUpsertedTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("upsert point: %w: %w", domain.ErrPersistenceFailed, err)
	}
	metrics.PointsUpsertedTotal.WithLabelValues("success").Inc()

	logger.FromContextOr(ctx, s.logger).Debug("Invoice stored",
		zap.String("id", p.ID),
		zap.String("vendor", inv.VendorName),
	)
	return p.ID, nil
}

// Search returns the limit points closest to query, best first.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]dompoint.Hit, error) {
	return s.SearchWithFilter(ctx, query, limit, filter.Expression{})
}

// SearchWithFilter is Search narrowed by payload attributes. An empty or
// absent collection yields an empty result.
func (s *Service) SearchWithFilter(
	ctx context.Context, query string, limit int, f filter.Expression,
) ([]dompoint.Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}
	if limit <= 0 || limit > s.maxLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d, got %d", domain.ErrInvalidInput, s.maxLimit, limit)
	}

	vec, err := s.vectorize(ctx, query)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	hits, err := s.repo.Query(ctx, s.collection, vec, limit, f)
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.SearchesTotal.WithLabelValues("success").Inc()
			return []dompoint.Hit{}, nil
		}
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("query %s: %w: %w", s.collection, domain.ErrSearchFailed, err)
	}
	metrics.SearchesTotal.WithLabelValues("success").Inc()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	if hits == nil {
		hits = []dompoint.Hit{}
	}
	return hits, nil
}

func (s *Service) vectorize(ctx context.Context, text string) ([]float32, error) {
	res, err := s.embed.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w: %w", domain.ErrEmbeddingFailed, err)
	}
	if len(res.Embedding) != s.dims {
		return nil, fmt.Errorf("embed: got %d dimensions, expected %d: %w: %w",
			len(res.Embedding), s.dims, domain.ErrEmbeddingFailed, domain.ErrVectorDimMismatch)
	}
	return res.Embedding, nil
}
