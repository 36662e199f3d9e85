package vector

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{1, 1}, []float32{5, 5}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cosine(tt.a, tt.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Cosine = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosine_Errors(t *testing.T) {
	if _, err := Cosine([]float32{1}, []float32{1, 2}); err == nil {
		t.Error("expected dimension mismatch error")
	}
	if _, err := Cosine(nil, nil); err == nil {
		t.Error("expected empty error")
	}
	if _, err := Cosine([]float32{0, 0}, []float32{1, 0}); err == nil {
		t.Error("expected zero-magnitude error")
	}
}

func TestQuery_Similarity(t *testing.T) {
	q, err := NewQuery([]float32{3, 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Dim() != 2 {
		t.Errorf("Dim = %d, want 2", q.Dim())
	}
	got, err := q.Similarity([]float32{4, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-0.96) > 1e-6 {
		t.Errorf("Similarity = %v, want 0.96", got)
	}
	if _, err := q.Similarity([]float32{1, 2, 3}); err == nil {
		t.Error("expected dimension mismatch error")
	}
	if _, err := NewQuery([]float32{0, 0}); err == nil {
		t.Error("expected zero-magnitude error")
	}
}

func TestEncodeDecode(t *testing.T) {
	v := []float32{0.5, -1.25, 3}
	b := Encode(v)
	if len(b) != 12 {
		t.Fatalf("len = %d, want 12", len(b))
	}
	// 0.5 = 0x3F000000, little-endian
	if b[0] != 0 || b[3] != 0x3F {
		t.Errorf("unexpected layout: %x", b[:4])
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("[%d] = %v, want %v", i, got[i], v[i])
		}
	}
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
