package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestRefusalError_UnwrapsToSentinel(t *testing.T) {
	err := fmt.Errorf("extract: %w", NewRefusal("I can't help with that"))

	if !errors.Is(err, ErrExtractionRefused) {
		t.Fatalf("expected ErrExtractionRefused, got %v", err)
	}
	if errors.Is(err, ErrExtractionFailed) {
		t.Fatal("refusal must not match ErrExtractionFailed")
	}

	var re *RefusalError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RefusalError, got %T", err)
	}
	if re.Reason != "I can't help with that" {
		t.Errorf("unexpected reason %q", re.Reason)
	}
}

func TestRefusalError_Message(t *testing.T) {
	if got := NewRefusal("").Error(); got != "extraction refused" {
		t.Errorf("unexpected message %q", got)
	}
	if got := NewRefusal("policy").Error(); got != "extraction refused: policy" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestTaxonomy_KeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("add invoice: %w: %w", ErrPersistenceFailed, cause)

	if !errors.Is(err, ErrPersistenceFailed) {
		t.Error("expected ErrPersistenceFailed")
	}
	if !errors.Is(err, cause) {
		t.Error("expected original cause to stay reachable")
	}
}

func TestTokenUsage_Concurrent(t *testing.T) {
	ctx, u := NewContextWithUsage(context.Background())
	if UsageFromContext(ctx) != u {
		t.Fatal("expected usage collector in context")
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			UsageFromContext(ctx).AddEmbedding(3)
			UsageFromContext(ctx).AddExtraction(5)
		}()
	}
	wg.Wait()

	if u.Embedding() != 30 {
		t.Errorf("expected 30 embedding tokens, got %d", u.Embedding())
	}
	if u.Extraction() != 50 {
		t.Errorf("expected 50 extraction tokens, got %d", u.Extraction())
	}
}

func TestTokenUsage_NilSafe(t *testing.T) {
	u := UsageFromContext(context.Background())
	if u != nil {
		t.Fatal("expected nil usage without collector")
	}
	u.AddEmbedding(1)
	u.AddExtraction(1)
	if u.Embedding() != 0 || u.Extraction() != 0 {
		t.Error("nil usage must report zero")
	}
}
