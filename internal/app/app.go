// Package app wires configuration into ready-to-use services. Both the
// HTTP server and the CLI build on it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kailas-cloud/invoicedex/internal/config"
	"github.com/kailas-cloud/invoicedex/internal/db"
	dbmemory "github.com/kailas-cloud/invoicedex/internal/db/memory"
	dbredis "github.com/kailas-cloud/invoicedex/internal/db/redis"
	dbsqlite "github.com/kailas-cloud/invoicedex/internal/db/sqlite"
	"github.com/kailas-cloud/invoicedex/internal/domain"
	"github.com/kailas-cloud/invoicedex/internal/metrics"
	budgetrepo "github.com/kailas-cloud/invoicedex/internal/repository/budget"
	"github.com/kailas-cloud/invoicedex/internal/repository/embcache"
	pointrepo "github.com/kailas-cloud/invoicedex/internal/repository/point"
	openaitr "github.com/kailas-cloud/invoicedex/internal/transport/openai"
	budgetuc "github.com/kailas-cloud/invoicedex/internal/usecase/budget"
	embeddinguc "github.com/kailas-cloud/invoicedex/internal/usecase/embedding"
	extractionuc "github.com/kailas-cloud/invoicedex/internal/usecase/extraction"
	healthuc "github.com/kailas-cloud/invoicedex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/invoicedex/internal/usecase/ingest"
	storageuc "github.com/kailas-cloud/invoicedex/internal/usecase/storage"
	usageuc "github.com/kailas-cloud/invoicedex/internal/usecase/usage"
)

// Provider labels metrics and budget keys.
const Provider = "openai"

// App holds the assembled services.
type App struct {
	Config     config.Config
	Logger     *zap.Logger
	Extraction *extractionuc.Service
	Storage    *storageuc.Service
	Ingest     *ingestuc.Service
	Health     *healthuc.Service
	Usage      *usageuc.Service
	// Budget is nil when no token limit is configured.
	Budget *budgetuc.Tracker

	close func()
}

// backend is what a database driver contributes to the wiring.
type backend struct {
	repo   storageuc.Repository
	pinger healthuc.DBPinger
	// kv is nil for drivers without a key-value store.
	kv    db.KVStore
	close func()
}

// New builds every service from cfg. The caller must Close the App.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Register()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	tracker, err := newBudget(ctx, cfg.OpenAI.Budget, be.kv, cfg.Storage.KeyPrefix, logger)
	if err != nil {
		be.close()
		return nil, err
	}

	baseEmbedder := openaitr.NewEmbedder(&openaitr.Config{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   Provider,
		Logger:     logger,
	})
	embedder := buildEmbedder(cfg, baseEmbedder, be.kv, tracker, logger)

	extractor := openaitr.NewExtractor(&openaitr.Config{
		APIKey:   cfg.OpenAI.APIKey,
		BaseURL:  cfg.OpenAI.BaseURL,
		Model:    cfg.Extraction.Model,
		Provider: Provider,
		Logger:   logger,
	}, openaitr.ResponseFormat(cfg.Extraction.ResponseFormat))

	extraction := extractionuc.New(extractor, logger).
		WithTimeout(time.Duration(cfg.Extraction.TimeoutSec) * time.Second).
		WithStrictReconciliation(cfg.Extraction.StrictReconciliation).
		WithMaxTaxRate(decimal.NewFromFloat(cfg.Extraction.MaxTaxRate)).
		WithConcurrency(cfg.Extraction.Concurrency)
	if tracker != nil {
		extraction.WithBudget(tracker)
	}

	storage := storageuc.New(be.repo, embedder, logger).
		WithCollection(cfg.Index.Collection).
		WithVectorConfig(cfg.Embedding.Dimensions, "cosine").
		WithLimits(cfg.Search.DefaultLimit, cfg.Search.MaxLimit)

	ingest := ingestuc.New(extraction, storage, logger).
		WithConcurrency(cfg.Extraction.Concurrency)

	health := healthuc.New(be.pinger).
		WithProvider(healthuc.Embedding, baseEmbedder).
		WithProvider(healthuc.Extraction, extractor)

	var budgetReader usageuc.BudgetReader
	if tracker != nil {
		budgetReader = tracker
	}

	logger.Info("Services assembled",
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.String("extraction_model", extractor.Model()),
		zap.String("collection", cfg.Index.Collection),
		zap.Bool("budget", tracker != nil),
	)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Extraction: extraction,
		Storage:    storage,
		Ingest:     ingest,
		Health:     health,
		Usage:      usageuc.New(budgetReader),
		Budget:     tracker,
		close:      be.close,
	}, nil
}

// Close waits for pending budget writes and releases the database connection.
func (a *App) Close() {
	if a.Budget != nil {
		a.Budget.Flush()
	}
	if a.close != nil {
		a.close()
	}
}

func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backend, error) {
	dbc := cfg.Database
	readiness := time.Duration(dbc.ReadinessTimeout) * time.Second

	switch dbc.Driver {
	case config.DriverRedis, config.DriverValkey:
		store, err := dbredis.NewStore(dbredis.Config{Addrs: dbc.Addrs, Password: dbc.Password})
		if err != nil {
			return nil, fmt.Errorf("create %s store: %w", dbc.Driver, err)
		}
		if err := store.WaitForReady(ctx, readiness); err != nil {
			store.Close()
			return nil, fmt.Errorf("%s not ready: %w", dbc.Driver, err)
		}
		logger.Info("Connected to database", zap.String("driver", dbc.Driver), zap.Strings("addrs", dbc.Addrs))
		repo := pointrepo.New(store, cfg.Storage.KeyPrefix).WithHNSW(pointrepo.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		})
		return &backend{repo: repo, pinger: store, kv: store, close: store.Close}, nil

	case config.DriverSQLite:
		store, err := dbsqlite.NewStore(dbc.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := store.WaitForReady(ctx, readiness); err != nil {
			store.Close()
			return nil, fmt.Errorf("sqlite not ready: %w", err)
		}
		logger.Info("Opened database", zap.String("driver", dbc.Driver), zap.String("path", dbc.Path))
		return &backend{repo: pointrepo.NewTable(store), pinger: store, close: store.Close}, nil

	case config.DriverMemory:
		store := dbmemory.NewStore()
		logger.Warn("Using in-memory store, points are lost on exit")
		return &backend{repo: pointrepo.NewTable(store), pinger: store, close: store.Close}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", dbc.Driver)
	}
}

// newBudget returns nil when no limit is configured.
func newBudget(
	ctx context.Context, cfg config.BudgetConfig, kv db.KVStore, keyPrefix string, logger *zap.Logger,
) (*budgetuc.Tracker, error) {
	if cfg.DailyTokenLimit <= 0 && cfg.MonthlyTokenLimit <= 0 {
		return nil, nil //nolint:nilnil // no budget configured
	}
	action, err := budgetuc.ParseAction(cfg.Action)
	if err != nil {
		return nil, fmt.Errorf("budget: %w", err)
	}
	tracker := budgetuc.NewTracker(Provider, cfg.DailyTokenLimit, cfg.MonthlyTokenLimit, action, logger)
	if kv != nil {
		tracker.WithStore(ctx, budgetrepo.New(kv, keyPrefix))
	}
	return tracker, nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
func buildEmbedder(
	cfg config.Config,
	base domain.Embedder,
	kv db.KVStore,
	tracker *budgetuc.Tracker,
	logger *zap.Logger,
) domain.Embedder {
	embedder := base
	if kv != nil && cfg.Embedding.CacheEnabled {
		embedder = embcache.New(base, kv, cfg.Storage.KeyPrefix, cfg.Embedding.Model, metrics.EmbeddingCacheTotal, logger).
			WithTTL(time.Duration(cfg.Embedding.CacheTTLHour) * time.Hour)
	}

	// A nil *Tracker inside a non-nil interface would defeat the nil check.
	var budget embeddinguc.BudgetChecker
	if tracker != nil {
		budget = tracker
	}

	return embeddinguc.NewInstrumentedEmbedder(embedder, Provider, cfg.Embedding.Model, budget, logger).
		WithDimensions(cfg.Embedding.Dimensions)
}
