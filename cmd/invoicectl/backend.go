package main

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/invoicedex/internal/app"
	"github.com/kailas-cloud/invoicedex/internal/config"
	"github.com/kailas-cloud/invoicedex/internal/domain/filter"
	"github.com/kailas-cloud/invoicedex/internal/domain/invoice"
	dompoint "github.com/kailas-cloud/invoicedex/internal/domain/point"
	logpkg "github.com/kailas-cloud/invoicedex/internal/logger"
	ingestuc "github.com/kailas-cloud/invoicedex/internal/usecase/ingest"
)

// backend is the part of the service the commands drive.
type backend interface {
	Preview(ctx context.Context, raw string) (invoice.Invoice, error)
	IngestBatch(ctx context.Context, raws []string) []ingestuc.Outcome
	EnsureCollection(ctx context.Context) error
	SearchWithFilter(ctx context.Context, query string, limit int, f filter.Expression) ([]dompoint.Hit, error)
	DefaultLimit() int
	Close()
}

// newBackend is replaced in tests.
var newBackend = openBackend

type appBackend struct {
	*app.App
}

func (b appBackend) Preview(ctx context.Context, raw string) (invoice.Invoice, error) {
	return b.Ingest.Preview(ctx, raw) //nolint:wrapcheck // already wrapped by the service
}

func (b appBackend) IngestBatch(ctx context.Context, raws []string) []ingestuc.Outcome {
	return b.Ingest.IngestBatch(ctx, raws)
}

func (b appBackend) EnsureCollection(ctx context.Context) error {
	return b.Storage.EnsureCollection(ctx) //nolint:wrapcheck // already wrapped by the service
}

func (b appBackend) SearchWithFilter(
	ctx context.Context, query string, limit int, f filter.Expression,
) ([]dompoint.Hit, error) {
	return b.Storage.SearchWithFilter(ctx, query, limit, f) //nolint:wrapcheck // already wrapped by the service
}

func (b appBackend) DefaultLimit() int { return b.Storage.DefaultLimit() }

func openBackend(ctx context.Context, env string, verbose bool) (backend, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logpkg.NewLogger(env, level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("assemble services: %w", err)
	}
	return appBackend{App: a}, nil
}
