// Package ai defines the model contracts the pipeline depends on. Providers
// live in subpackages.
package ai

import (
	"context"
	"errors"
)

// ErrUnavailable marks a model that is not configured, not loaded or failing.
// Callers degrade instead of failing the request.
var ErrUnavailable = errors.New("model unavailable")

// Embedder maps texts to fixed-dimension dense vectors. Result i belongs to
// texts[i].
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// PairScorer reads the query and each document jointly and returns one
// relevance score per document.
type PairScorer interface {
	Name() string
	ScorePairs(ctx context.Context, query string, docs []string) ([]float64, error)
}
