package utils

import "math"

// NormalizeL2 normalizes the slice in place to unit L2 norm.
// If the norm is zero, the slice is unchanged and false is returned.
func NormalizeL2(x []float32) bool {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return false
	}
	norm := float32(1.0 / math.Sqrt(sum))
	for i := range x {
		x[i] *= norm
	}
	return true
}

// NormalizedCopy returns a unit-norm copy of x, leaving x untouched.
func NormalizedCopy(x []float32) []float32 {
	out := make([]float32, len(x))
	copy(out, x)
	NormalizeL2(out)
	return out
}
