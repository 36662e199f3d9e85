package invoicedex

import (
	"fmt"

	"github.com/kailas-cloud/invoicedex/internal/domain"
)

// Sentinel errors matched by *APIError through errors.Is.
var (
	ErrInvalidInput      = domain.ErrInvalidInput
	ErrExtractionRefused = domain.ErrExtractionRefused
	ErrExtractionFailed  = domain.ErrExtractionFailed
	ErrEmbeddingFailed   = domain.ErrEmbeddingFailed
	ErrPersistenceFailed = domain.ErrPersistenceFailed
	ErrSearchFailed      = domain.ErrSearchFailed
	ErrQuotaExceeded     = domain.ErrQuotaExceeded
	ErrNotFound          = domain.ErrNotFound
)

// codeSentinels maps server error codes to sentinels.
var codeSentinels = map[string]error{
	"bad_request":        ErrInvalidInput,
	"payload_too_large":  ErrInvalidInput,
	"invalid_input":      ErrInvalidInput,
	"extraction_refused": ErrExtractionRefused,
	"extraction_failed":  ErrExtractionFailed,
	"embedding_failed":   ErrEmbeddingFailed,
	"persistence_failed": ErrPersistenceFailed,
	"search_failed":      ErrSearchFailed,
	"quota_exceeded":     ErrQuotaExceeded,
	"not_found":          ErrNotFound,
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	// Reason is the model's refusal text for extraction_refused.
	Reason string
	// Invoice is set when extraction succeeded but storing it failed.
	Invoice *Invoice
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invoicedex: %d %s: %s: %s", e.StatusCode, e.Code, e.Message, e.Reason)
	}
	return fmt.Sprintf("invoicedex: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap exposes the sentinel for the error code, if any.
func (e *APIError) Unwrap() error {
	return codeSentinels[e.Code]
}

// apiErrorBody is the wire form of an error response.
type apiErrorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Reason  string   `json:"reason,omitempty"`
	Invoice *Invoice `json:"invoice,omitempty"`
}

func (b *apiErrorBody) toError(status int) *APIError {
	return &APIError{
		StatusCode: status,
		Code:       b.Code,
		Message:    b.Message,
		Reason:     b.Reason,
		Invoice:    b.Invoice,
	}
}
