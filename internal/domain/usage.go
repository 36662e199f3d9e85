package domain

import (
	"context"
	"sync"
)

type tokenUsageKey struct{}

// TokenUsage collects model token usage for a single request.
// The handler puts a mutable pointer into the context before calling the service;
// the embedder and extractor add to it; the handler reads it for response headers.
type TokenUsage struct {
	mu               sync.Mutex
	embeddingTokens  int
	extractionTokens int
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *TokenUsage) {
	u := &TokenUsage{}
	return context.WithValue(ctx, tokenUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *TokenUsage {
	u, _ := ctx.Value(tokenUsageKey{}).(*TokenUsage)
	return u
}

// AddEmbedding records embedding tokens. Safe on a nil receiver.
func (u *TokenUsage) AddEmbedding(n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.embeddingTokens += n
	u.mu.Unlock()
}

// AddExtraction records extraction tokens. Safe on a nil receiver.
func (u *TokenUsage) AddExtraction(n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.extractionTokens += n
	u.mu.Unlock()
}

// Embedding returns the embedding tokens recorded so far.
func (u *TokenUsage) Embedding() int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.embeddingTokens
}

// Extraction returns the extraction tokens recorded so far.
func (u *TokenUsage) Extraction() int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.extractionTokens
}
