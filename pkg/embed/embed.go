// Package embed provides text embedding via two independent models whose
// vectors are fused by element-wise averaging.
package embed

import (
	"context"
	"errors"
	"fmt"

	"github.com/DocsageAI/docsage-mvp/pkg/fn"
)

// ErrDimensionMismatch is returned when a model produces a vector of the
// wrong width.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// embedWorkers bounds concurrent model calls in EmbedAll.
const embedWorkers = 8

// Embedder converts one text into a vector. Implementations must be safe
// for concurrent use after construction.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Fuser embeds text under two models and returns the element-wise mean.
// Construct one per process at startup and share the handle; the underlying
// models are read-only after construction.
type Fuser struct {
	first  Embedder
	second Embedder
	dim    int
}

// NewFuser creates a Fuser producing vectors of width dim.
func NewFuser(first, second Embedder, dim int) *Fuser {
	return &Fuser{first: first, second: second, dim: dim}
}

// Dim returns the fused vector width.
func (f *Fuser) Dim() int { return f.dim }

// Embed runs both models concurrently and averages their vectors.
// Model errors propagate unchanged; callers own retry policy.
func (f *Fuser) Embed(ctx context.Context, text string) ([]float32, error) {
	models := []Embedder{f.first, f.second}
	results := fn.ParMapResult(models, len(models), func(e Embedder) fn.Result[[]float32] {
		return fn.FromPair(e.Embed(ctx, text))
	})
	vecs, err := fn.Collect(results).Unwrap()
	if err != nil {
		return nil, err
	}
	for i, v := range vecs {
		if len(v) != f.dim {
			return nil, fmt.Errorf("embed: model %d produced %d dims, want %d: %w", i, len(v), f.dim, ErrDimensionMismatch)
		}
	}

	fused := make([]float32, f.dim)
	for i := range fused {
		fused[i] = (vecs[0][i] + vecs[1][i]) / 2
	}
	return fused, nil
}

// EmbedAll embeds each text with bounded concurrency, preserving order.
func (f *Fuser) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	results := fn.ParMapResult(texts, embedWorkers, func(text string) fn.Result[[]float32] {
		return fn.FromPair(f.Embed(ctx, text))
	})
	return fn.Collect(results).Unwrap()
}
