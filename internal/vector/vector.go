// Package vector holds the float32 math and blob encoding shared by the
// stores that rank points in process.
package vector

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/viant/vec/search"
)

// Query is a vector whose magnitude is computed once, for scanning many
// candidates against it.
type Query struct {
	v   search.Float32s
	mag float32
}

// NewQuery prepares v for repeated similarity checks.
func NewQuery(v []float32) (Query, error) {
	if len(v) == 0 {
		return Query{}, fmt.Errorf("vector: empty vectors")
	}
	q := Query{v: search.Float32s(v)}
	q.mag = q.v.Magnitude()
	if q.mag == 0 {
		return Query{}, fmt.Errorf("vector: zero-magnitude vector")
	}
	return q, nil
}

// Dim returns the query dimension.
func (q Query) Dim() int { return len(q.v) }

// Similarity returns the cosine similarity of q and p in [-1, 1].
func (q Query) Similarity(p []float32) (float64, error) {
	if len(p) != len(q.v) {
		return 0, fmt.Errorf("vector: dimension mismatch: %d vs %d", len(q.v), len(p))
	}
	pm := search.Float32s(p).Magnitude()
	if pm == 0 {
		return 0, fmt.Errorf("vector: zero-magnitude vector")
	}
	return 1 - float64(cosineDistanceWithMagnitude(q.v, p, q.mag, pm)), nil
}

// Cosine returns the cosine similarity of a and b in [-1, 1].
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector: dimension mismatch: %d vs %d", len(a), len(b))
	}
	q, err := NewQuery(a)
	if err != nil {
		return 0, err
	}
	return q.Similarity(b)
}

// Encode packs v as little-endian IEEE 754 float32 values, the layout
// Redis vector fields expect.
func Encode(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Decode reverses Encode.
func Decode(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector: blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
