//go:build !arm64

package vector

import "github.com/viant/vec/search"

// viant/vec exports this method under a misspelled name on non-arm64 builds.
func cosineDistanceWithMagnitude(v search.Float32s, p []float32, m1, m2 float32) float32 {
	return v.CosineDistanceWithMagnitudesNeon(p, m1, m2)
}
