package vector

import "github.com/viant/vec/search"

func cosineDistanceWithMagnitude(v search.Float32s, p []float32, m1, m2 float32) float32 {
	return v.CosineDistanceWithMagnitude(p, m1, m2)
}
