// Package chi exposes the invoice pipeline over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	gochi "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/invoicedex/internal/domain"
	"github.com/kailas-cloud/invoicedex/internal/domain/filter"
	"github.com/kailas-cloud/invoicedex/internal/domain/invoice"
	dompoint "github.com/kailas-cloud/invoicedex/internal/domain/point"
	healthuc "github.com/kailas-cloud/invoicedex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/invoicedex/internal/usecase/ingest"
	usageuc "github.com/kailas-cloud/invoicedex/internal/usecase/usage"
)

// DefaultMaxBodyKB caps request bodies when no limit is configured.
const DefaultMaxBodyKB = 256

// Usage headers.
const (
	HeaderEmbeddingTokens  = "X-Embedding-Tokens"
	HeaderExtractionTokens = "X-Extraction-Tokens"
	HeaderInvoiceID        = "X-Invoice-ID"
)

type extractRequest struct {
	Content string `json:"content"`
}

type batchRequest struct {
	Contents []string `json:"contents"`
}

type batchItem struct {
	Index   int              `json:"index"`
	ID      string           `json:"id,omitempty"`
	Invoice *invoice.Invoice `json:"invoice,omitempty"`
	Error   *errorResponse   `json:"error,omitempty"`
}

type batchResponse struct {
	Items     []batchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

type searchRequest struct {
	Query  string         `json:"query"`
	Limit  *int           `json:"limit,omitempty"`
	Filter *filter.Params `json:"filter,omitempty"`
}

type searchResponse struct {
	Points []dompoint.Hit `json:"points"`
}

type healthResponse struct {
	Status  healthuc.Status                 `json:"status"`
	Checks  map[string]healthuc.CheckResult `json:"checks"`
	Version string                          `json:"version,omitempty"`
}

// Server serves the extraction, search and health endpoints.
type Server struct {
	ingest        Ingester
	search        Searcher
	health        HealthReporter
	usage         UsageReporter
	logger        *zap.Logger
	maxBodyBytes  int64
	version       string
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(ingest Ingester, search Searcher, health HealthReporter, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		ingest:       ingest,
		search:       search,
		health:       health,
		logger:       logger,
		maxBodyBytes: DefaultMaxBodyKB << 10,
	}
	s.errorHandlers = []errorHandler{refusalHandler}
	for _, m := range errorTable {
		s.errorHandlers = append(s.errorHandlers, sentinelHandler(m.sentinel, m.status, m.code))
	}
	return s
}

// WithMaxBodyKB sets the request body limit.
func (s *Server) WithMaxBodyKB(kb int) *Server {
	if kb > 0 {
		s.maxBodyBytes = int64(kb) << 10
	}
	return s
}

// WithUsage enables GET /usage.
func (s *Server) WithUsage(u UsageReporter) *Server {
	s.usage = u
	return s
}

// WithVersion reports the build version on /health.
func (s *Server) WithVersion(v string) *Server {
	s.version = v
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r gochi.Router) {
	r.Post("/extract", s.Extract)
	r.Post("/extract/preview", s.Preview)
	r.Post("/extract/batch", s.ExtractBatch)
	r.Post("/search", s.Search)
	r.Get("/search", s.SearchQuery)
	r.Get("/usage", s.GetUsage)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Extract handles POST /extract: extraction followed by storage.
func (s *Server) Extract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.ingest.Ingest(ctx, req.Content)
	setUsageHeaders(w, usage)
	if err != nil {
		if errors.Is(err, domain.ErrPersistenceFailed) || errors.Is(err, domain.ErrEmbeddingFailed) {
			s.handleStorageError(w, err, res.Invoice)
			return
		}
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set(HeaderInvoiceID, res.ID)
	writeJSON(w, http.StatusOK, res.Invoice)
}

// Preview handles POST /extract/preview: extraction only.
func (s *Server) Preview(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	inv, err := s.ingest.Preview(ctx, req.Content)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, inv)
}

// ExtractBatch handles POST /extract/batch.
func (s *Server) ExtractBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Contents) == 0 {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "contents must not be empty")
		return
	}
	if len(req.Contents) > ingestuc.MaxBatchSize {
		writeError(w, http.StatusBadRequest, CodeInvalidInput,
			fmt.Sprintf("batch size %d exceeds maximum of %d", len(req.Contents), ingestuc.MaxBatchSize))
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	outcomes := s.ingest.IngestBatch(ctx, req.Contents)
	setUsageHeaders(w, usage)

	resp := batchResponse{Items: make([]batchItem, len(outcomes))}
	for i, o := range outcomes {
		item := batchItem{Index: o.Index, ID: o.ID}
		if o.Extracted {
			inv := o.Invoice
			item.Invoice = &inv
		}
		if o.Err != nil {
			s.logger.Warn("batch item failed", zap.Int("index", o.Index), zap.Error(o.Err))
			item.Error = errorBody(o.Err)
			resp.Failed++
		} else {
			resp.Succeeded++
		}
		resp.Items[i] = item
	}

	writeJSON(w, http.StatusOK, resp)
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.runSearch(w, r, req)
}

// SearchQuery handles GET /search?q=...&limit=...
func (s *Server) SearchQuery(w http.ResponseWriter, r *http.Request) {
	req, err := bindSearchQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, err.Error())
		return
	}
	s.runSearch(w, r, req)
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, req searchRequest) {
	limit := s.search.DefaultLimit()
	if req.Limit != nil {
		limit = *req.Limit
	}

	expr, err := req.Filter.Expression()
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "invalid filter: "+err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	hits, err := s.search.SearchWithFilter(ctx, req.Query, limit, expr)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{Points: hits})
}

// bindSearchQuery reads the GET /search form parameters.
func bindSearchQuery(r *http.Request) (searchRequest, error) {
	q := r.URL.Query()
	var (
		req              searchRequest
		fp               filter.Params
		currency, vendor *string
	)

	if err := runtime.BindQueryParameter("form", true, true, "q", q, &req.Query); err != nil {
		return searchRequest{}, fmt.Errorf("invalid parameter q: %w", err)
	}

	// Optional destinations are pointers; the binder allocates them only
	// when the parameter is present.
	optional := []struct {
		name string
		dest any
	}{
		{"limit", &req.Limit},
		{"currency", &currency},
		{"vendor_name", &vendor},
		{"min_total", &fp.MinTotal},
		{"max_total", &fp.MaxTotal},
		{"date_from", &fp.DateFrom},
		{"date_to", &fp.DateTo},
	}
	for _, p := range optional {
		if err := runtime.BindQueryParameter("form", true, false, p.name, q, p.dest); err != nil {
			return searchRequest{}, fmt.Errorf("invalid parameter %s: %w", p.name, err)
		}
	}

	if currency != nil {
		fp.Currency = *currency
	}
	if vendor != nil {
		fp.Vendor = *vendor
	}
	if fp != (filter.Params{}) {
		req.Filter = &fp
	}
	return req, nil
}

// GetUsage handles GET /usage?period=day|month.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "usage reporting is not enabled")
		return
	}

	var raw *string
	if err := runtime.BindQueryParameter("form", true, false, "period", r.URL.Query(), &raw); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "invalid parameter period: "+err.Error())
		return
	}
	in := ""
	if raw != nil {
		in = *raw
	}
	period, err := usageuc.ParsePeriod(in)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.usage.Report(period))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status:  report.Status,
		Checks:  report.Checks,
		Version: s.version,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// decode reads a size-limited JSON body. On failure the error response is
// already written and false is returned.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.TokenUsage) {
	if n := usage.Embedding(); n > 0 {
		w.Header().Set(HeaderEmbeddingTokens, strconv.Itoa(n))
	}
	if n := usage.Extraction(); n > 0 {
		w.Header().Set(HeaderExtractionTokens, strconv.Itoa(n))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
