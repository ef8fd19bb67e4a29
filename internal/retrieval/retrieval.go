// Package retrieval is the bi-encoder stage: one profile embedding, one
// restricted query against the dense index.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/ai"
	"github.com/spigell/job-recommender/internal/dense"
	"github.com/spigell/job-recommender/internal/filtering"
)

const DefaultTopN = 50

// Candidate is a sieved posting with its bi-encoder similarity.
type Candidate struct {
	filtering.Candidate
	Similarity float64
}

type Retriever struct {
	embedder ai.Embedder
	topN     int
	logger   *zap.Logger
}

func New(embedder ai.Embedder, topN int, logger *zap.Logger) *Retriever {
	if topN <= 0 {
		topN = DefaultTopN
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{embedder: embedder, topN: topN, logger: logger}
}

func (r *Retriever) TopN() int { return r.topN }

// EmbedProfile returns the query embedding of a profile text. Errors wrap
// ai.ErrUnavailable unless the context ended.
func (r *Retriever) EmbedProfile(ctx context.Context, text string) ([]float32, error) {
	if r.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", ai.ErrUnavailable)
	}
	vecs, err := r.embedder.Embed(ctx, []string{text})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("embed profile: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: embedder returned %d vectors", ai.ErrUnavailable, len(vecs))
	}
	return vecs[0], nil
}

// Retrieve embeds the profile and ranks pool by similarity, keeping the top
// N. The result is a subset of pool, ordered by similarity descending with
// ties broken by job ID.
func (r *Retriever) Retrieve(ctx context.Context, ix *dense.Index, profileText string, pool []filtering.Candidate) ([]Candidate, error) {
	if len(pool) == 0 {
		return nil, nil
	}
	vec, err := r.EmbedProfile(ctx, profileText)
	if err != nil {
		return nil, err
	}
	return r.Rank(ix, vec, pool)
}

// Rank is Retrieve with a precomputed profile vector.
func (r *Retriever) Rank(ix *dense.Index, vec []float32, pool []filtering.Candidate) ([]Candidate, error) {
	if len(pool) == 0 {
		return nil, nil
	}
	if ix == nil {
		return nil, fmt.Errorf("%w: dense index is not loaded", ai.ErrUnavailable)
	}

	byPos := make(map[int]filtering.Candidate, len(pool))
	for _, c := range pool {
		byPos[c.Position] = c
	}

	hits, err := ix.Query(vec, r.topN, func(pos int) bool {
		_, ok := byPos[pos]
		return ok
	})
	if err != nil {
		return nil, fmt.Errorf("query dense index: %w", err)
	}

	out := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		out = append(out, Candidate{Candidate: byPos[h.Position], Similarity: h.Similarity})
	}

	r.logger.Debug("retrieved candidates", zap.Int("pool", len(pool)), zap.Int("retrieved", len(out)))
	return out, nil
}
