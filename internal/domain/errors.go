package domain

import (
	"errors"
	"fmt"
)

// Pipeline taxonomy. Every failure leaving a usecase wraps exactly one of these.
var (
	// ErrInvalidInput signals a caller mistake (blank text, bad limit). Never retried.
	ErrInvalidInput = errors.New("invalid input")
	// ErrExtractionRefused signals that the generative capability declined to answer.
	ErrExtractionRefused = errors.New("extraction refused")
	// ErrExtractionFailed signals a transport or structural extraction failure.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrEmbeddingFailed signals that the embedding stage failed.
	ErrEmbeddingFailed = errors.New("embedding failed")
	// ErrPersistenceFailed signals that the point upsert failed.
	ErrPersistenceFailed = errors.New("persistence failed")
	// ErrSearchFailed signals that the similarity query failed.
	ErrSearchFailed = errors.New("search failed")
)

// Causes carried inside the taxonomy members.
var (
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrQuotaExceeded signals an exhausted token budget.
	ErrQuotaExceeded = errors.New("token quota exceeded")
	// ErrProviderError signals a model provider failure.
	ErrProviderError = errors.New("provider error")
	// ErrUnreconciled signals that line items do not add up to the invoice total.
	ErrUnreconciled = errors.New("line items do not reconcile with total")
)

// RefusalError wraps ErrExtractionRefused with the model's own explanation.
type RefusalError struct {
	Reason string
}

func (e *RefusalError) Error() string {
	if e.Reason == "" {
		return ErrExtractionRefused.Error()
	}
	return fmt.Sprintf("%s: %s", ErrExtractionRefused.Error(), e.Reason)
}

func (e *RefusalError) Unwrap() error { return ErrExtractionRefused }

// NewRefusal creates a refusal error.
func NewRefusal(reason string) error {
	return &RefusalError{Reason: reason}
}
