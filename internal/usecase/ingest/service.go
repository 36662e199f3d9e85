// Package ingest runs the extract-then-store pipeline.
package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/invoicedex/internal/domain"
	"github.com/kailas-cloud/invoicedex/internal/domain/invoice"
	"github.com/kailas-cloud/invoicedex/internal/logger"
)

const (
	// DefaultConcurrency bounds IngestBatch.
	DefaultConcurrency = 4
	// MaxBatchSize is the maximum number of documents per batch.
	MaxBatchSize = 100
)

// Result is a successfully ingested invoice.
type Result struct {
	ID      string
	Invoice invoice.Invoice
}

// Outcome is the result of one document in a batch.
// Extracted reports whether Invoice holds a record even when Err is set,
// which happens when only the storage stage failed.
type Outcome struct {
	Index     int
	ID        string
	Invoice   invoice.Invoice
	Extracted bool
	Err       error
}

// Service runs extraction and storage in sequence.
type Service struct {
	extract     Extractor
	store       Storer
	concurrency int
	logger      *zap.Logger
}

// New creates an ingest service.
func New(extract Extractor, store Storer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{extract: extract, store: store, concurrency: DefaultConcurrency, logger: logger}
}

// WithConcurrency bounds the number of documents processed at once.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// Preview extracts without storing.
func (s *Service) Preview(ctx context.Context, raw string) (invoice.Invoice, error) {
	inv, err := s.extract.Extract(ctx, raw)
	if err != nil {
		return invoice.Invoice{}, fmt.Errorf("extract: %w", err)
	}
	return inv, nil
}

// Ingest extracts the invoice and stores it. Storage runs only after a
// successful extraction. When storage fails the extracted invoice is
// returned with the error so the caller can retry the storage stage alone.
func (s *Service) Ingest(ctx context.Context, raw string) (Result, error) {
	res, _, err := s.ingest(ctx, raw)
	return res, err
}

func (s *Service) ingest(ctx context.Context, raw string) (res Result, extracted bool, err error) {
	inv, err := s.extract.Extract(ctx, raw)
	if err != nil {
		return Result{}, false, fmt.Errorf("extract: %w", err)
	}

	id, err := s.store.AddInvoice(ctx, &inv, raw)
	if err != nil {
		logger.FromContextOr(ctx, s.logger).Error("Extracted invoice not stored",
			zap.String("vendor", inv.VendorName),
			zap.Error(err),
		)
		return Result{Invoice: inv}, true, fmt.Errorf("store: %w", err)
	}
	return Result{ID: id, Invoice: inv}, true, nil
}

// IngestBatch ingests every document with bounded concurrency. Outcomes are
// indexed like raws; failures are independent.
func (s *Service) IngestBatch(ctx context.Context, raws []string) []Outcome {
	out := make([]Outcome, len(raws))
	if len(raws) > MaxBatchSize {
		for i := range raws {
			out[i] = Outcome{Index: i, Err: fmt.Errorf("%w: batch size exceeds %d", domain.ErrInvalidInput, MaxBatchSize)}
		}
		return out
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, raw := range raws {
		g.Go(func() error {
			res, extracted, err := s.ingest(ctx, raw)
			out[i] = Outcome{Index: i, ID: res.ID, Invoice: res.Invoice, Extracted: extracted, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range out {
		if o.Err != nil {
			failed++
		}
	}
	logger.FromContextOr(ctx, s.logger).Info("Batch ingested",
		zap.Int("total", len(raws)),
		zap.Int("failed", failed),
	)
	return out
}
