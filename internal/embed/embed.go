// Package embed provides the embedding vectors the ranking stage scores
// stories with.
package embed

import (
	"context"
	"math"
)

// Embedder turns a batch of texts into vectors, one per input and in input
// order. A row may be nil if the provider skipped it; callers decide whether
// that is fatal.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Name() string
}

// Cosine returns the cosine similarity of two vectors, in [-1, 1]. Zero
// vectors and mismatched dimensions score 0.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, aMag, bMag float64
	for i := range a {
		dot += a[i] * b[i]
		aMag += a[i] * a[i]
		bMag += b[i] * b[i]
	}
	if aMag == 0 || bMag == 0 {
		return 0
	}
	return dot / (math.Sqrt(aMag) * math.Sqrt(bMag))
}
