package vector

import "math"

// InnerProduct scores a against b. Stored and query vectors are unit length,
// so the score is their cosine similarity in [-1, 1]. Vectors of different
// length score 0.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i, v := range a {
		dot += float64(v) * float64(b[i])
	}
	return dot
}

// L2Norm is the Euclidean length of x.
func L2Norm(x []float32) float64 {
	return math.Sqrt(InnerProduct(x, x))
}

// IsFinite reports whether every component of x is a real number. A single
// NaN makes every score against x NaN, which no threshold can filter.
func IsFinite(x []float32) bool {
	for _, v := range x {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
