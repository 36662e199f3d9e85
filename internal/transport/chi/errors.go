package chi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/invoicedex/internal/domain"
	"github.com/kailas-cloud/invoicedex/internal/domain/invoice"
)

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest        ErrorCode = "bad_request"
	CodePayloadTooLarge   ErrorCode = "payload_too_large"
	CodeInvalidInput      ErrorCode = "invalid_input"
	CodeExtractionRefused ErrorCode = "extraction_refused"
	CodeExtractionFailed  ErrorCode = "extraction_failed"
	CodeEmbeddingFailed   ErrorCode = "embedding_failed"
	CodePersistenceFailed ErrorCode = "persistence_failed"
	CodeSearchFailed      ErrorCode = "search_failed"
	CodeQuotaExceeded     ErrorCode = "quota_exceeded"
	CodeNotFound          ErrorCode = "not_found"
	CodeInternalError     ErrorCode = "internal_error"
)

type errorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Reason  string    `json:"reason,omitempty"`
	// Invoice is set when extraction succeeded but storage failed.
	Invoice *invoice.Invoice `json:"invoice,omitempty"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

type errorMapping struct {
	sentinel error
	status   int
	code     ErrorCode
}

// errorTable is matched in order. Quota comes first: a rejected budget
// surfaces wrapped in the failure of the stage that hit it.
var errorTable = []errorMapping{
	{domain.ErrQuotaExceeded, http.StatusPaymentRequired, CodeQuotaExceeded},
	{domain.ErrInvalidInput, http.StatusBadRequest, CodeInvalidInput},
	{domain.ErrExtractionRefused, http.StatusUnprocessableEntity, CodeExtractionRefused},
	{domain.ErrExtractionFailed, http.StatusBadGateway, CodeExtractionFailed},
	{domain.ErrEmbeddingFailed, http.StatusBadGateway, CodeEmbeddingFailed},
	{domain.ErrPersistenceFailed, http.StatusServiceUnavailable, CodePersistenceFailed},
	{domain.ErrSearchFailed, http.StatusServiceUnavailable, CodeSearchFailed},
}

// classify maps err to its status, code and client-safe message.
func classify(err error) (int, ErrorCode, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.sentinel) {
			return m.status, m.code, m.sentinel.Error()
		}
	}
	return http.StatusInternalServerError, CodeInternalError, "internal error"
}

func errorBody(err error) *errorResponse {
	_, code, msg := classify(err)
	resp := &errorResponse{Code: code, Message: msg}
	var refusal *domain.RefusalError
	if errors.As(err, &refusal) {
		resp.Reason = refusal.Reason
	}
	return resp
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// refusalHandler returns the model's explanation verbatim.
func refusalHandler(w http.ResponseWriter, err error, msg string) bool {
	var refusal *domain.RefusalError
	if !errors.As(err, &refusal) {
		return false
	}
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
		Code:    CodeExtractionRefused,
		Message: msg,
		Reason:  refusal.Reason,
	})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	_, _, msg := classify(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

// handleStorageError answers a failed storage stage and hands back the
// invoice that was already extracted.
func (s *Server) handleStorageError(w http.ResponseWriter, err error, inv invoice.Invoice) {
	s.logger.Warn("storage stage failed", zap.Error(err))
	resp := errorBody(err)
	resp.Invoice = &inv
	status, _, _ := classify(err)
	writeJSON(w, status, resp)
}
