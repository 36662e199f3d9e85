package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/invoicedex/internal/domain"
	"github.com/kailas-cloud/invoicedex/internal/domain/invoice"
	"github.com/kailas-cloud/invoicedex/internal/logger"
	"github.com/kailas-cloud/invoicedex/internal/metrics"
)

const (
	// DefaultConcurrency bounds ExtractBatch.
	DefaultConcurrency = 4
	// MaxBatchSize is the maximum number of documents per batch.
	MaxBatchSize = 100
)

// Service turns raw invoice text into a validated invoice.
// Extract, ExtractAsync and ExtractBatch share one code path.
type Service struct {
	gen         Generator
	budget      BudgetChecker
	timeout     time.Duration
	strict      bool
	maxTaxRate  decimal.Decimal
	concurrency int
	logger      *zap.Logger
}

// New creates an extraction service.
func New(gen Generator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		gen:         gen,
		maxTaxRate:  invoice.DefaultMaxTaxRate,
		concurrency: DefaultConcurrency,
		logger:      logger,
	}
}

// WithBudget attaches the shared token budget.
func (s *Service) WithBudget(b BudgetChecker) *Service {
	s.budget = b
	return s
}

// WithTimeout bounds a single extraction attempt.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// WithStrictReconciliation turns a line-item/total mismatch into a failure.
func (s *Service) WithStrictReconciliation(strict bool) *Service {
	s.strict = strict
	return s
}

// WithMaxTaxRate sets the largest net-to-gross gap reconciliation accepts.
func (s *Service) WithMaxTaxRate(rate decimal.Decimal) *Service {
	if rate.IsPositive() {
		s.maxTaxRate = rate
	}
	return s
}

// WithConcurrency bounds the number of in-flight extractions in a batch.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// Extract runs one extraction attempt. Blank input fails with
// domain.ErrInvalidInput before the generator is called. A refusal yields a
// *domain.RefusalError; every other failure wraps domain.ErrExtractionFailed.
func (s *Service) Extract(ctx context.Context, raw string) (invoice.Invoice, error) {
	if strings.TrimSpace(raw) == "" {
		return invoice.Invoice{}, fmt.Errorf("%w: invoice text is empty", domain.ErrInvalidInput)
	}

	if s.budget != nil {
		if err := s.budget.Check(ctx); err != nil {
			return invoice.Invoice{}, fmt.Errorf("budget check: %w: %w", domain.ErrExtractionFailed, err)
		}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	log := logger.FromContextOr(ctx, s.logger)

	start := time.Now()
	res, err := s.gen.Generate(ctx, domain.GenerationRequest{
		Instruction: Instruction,
		Input:       raw,
		SchemaName:  SchemaName,
		Schema:      Schema(),
	})
	if s.budget != nil && res.TotalTokens > 0 {
		s.budget.Record(int64(res.TotalTokens))
	}
	if err != nil {
		log.Error("Extraction failed",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return invoice.Invoice{}, fmt.Errorf("generate: %w: %w", domain.ErrExtractionFailed, err)
	}
	if res.Refused() {
		log.Warn("Extraction refused", zap.String("reason", res.Refusal))
		return invoice.Invoice{}, domain.NewRefusal(res.Refusal)
	}

	inv, err := invoice.Decode(res.Content)
	if err != nil {
		log.Error("Extraction output rejected", zap.Error(err))
		return invoice.Invoice{}, fmt.Errorf("decode: %w: %w", domain.ErrExtractionFailed, err)
	}

	if err := s.reconcile(log, &inv); err != nil {
		return invoice.Invoice{}, err
	}

	log.Debug("Extraction completed",
		zap.String("vendor", inv.VendorName),
		zap.Int("items", len(inv.Items)),
		zap.Duration("duration", time.Since(start)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return inv, nil
}

// ExtractAsync runs Extract in its own goroutine. The channel receives
// exactly one outcome and is then closed.
func (s *Service) ExtractAsync(ctx context.Context, raw string) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		inv, err := s.Extract(ctx, raw)
		ch <- Outcome{Invoice: inv, Err: err}
	}()
	return ch
}

// ExtractBatch extracts every document with bounded concurrency. Outcomes are
// indexed like raws; one failure does not affect the others.
func (s *Service) ExtractBatch(ctx context.Context, raws []string) []Outcome {
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
			inv, err := s.Extract(ctx, raw)
			out[i] = Outcome{Index: i, Invoice: inv, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Service) reconcile(log *zap.Logger, inv *invoice.Invoice) error {
	r := invoice.Reconcile(inv, s.maxTaxRate)
	if r.Consistent {
		return nil
	}

	metrics.ExtractionUnreconciledTotal.Inc()
	log.Warn("Line items do not reconcile with total",
		zap.String("vendor", inv.VendorName),
		zap.String("lines_total", r.LinesTotal.String()),
		zap.String("total_amount", r.Total.String()),
		zap.String("delta", r.Delta.String()),
		zap.Bool("strict", s.strict),
	)
	if s.strict {
		return fmt.Errorf("reconcile lines %s against total %s: %w: %w",
			r.LinesTotal, r.Total, domain.ErrExtractionFailed, domain.ErrUnreconciled)
	}
	return nil
}
