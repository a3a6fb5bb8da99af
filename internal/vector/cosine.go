// Package vector provides pairwise similarity math over embedding vectors.
package vector

import "math"

// Cosine returns the cosine similarity between two vectors in [-1, 1].
//
// Degenerate inputs resolve to 0 rather than an error: a nil or empty
// vector, mismatched dimensionality, or a zero-magnitude vector all mean
// "no evidence", and callers fold the 0 into ranking normally.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
