package embed

import (
	"context"
	"math"
)

// Deterministic is a reproducible stand-in embedder used when no embedding
// service is configured. It folds each character's code point into a
// fixed-length vector and L2-normalizes the result. The vectors carry no
// semantic meaning; they only keep the index/query pipeline exercised, and
// retrieval switches to keyword ranking when this embedder is in use.
type Deterministic struct {
	dimension int
}

func NewDeterministic(dimension int) *Deterministic {
	if dimension <= 0 {
		dimension = 1024
	}
	return &Deterministic{dimension: dimension}
}

func (d *Deterministic) Dimension() int { return d.dimension }

func (d *Deterministic) Semantic() bool { return false }

func (d *Deterministic) Embed(_ context.Context, texts []string, _ InputType) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = d.vector(text)
	}
	return out, nil
}

func (d *Deterministic) vector(text string) []float32 {
	v := make([]float64, d.dimension)
	i := 0
	for _, r := range text {
		idx := i % d.dimension
		v[idx] = math.Mod(v[idx]*31+float64(r), 2)
		i++
	}

	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	out := make([]float32, d.dimension)
	if sumSq > 0 {
		mag := math.Sqrt(sumSq)
		for i, x := range v {
			out[i] = float32(x / mag)
		}
	}
	return out
}
