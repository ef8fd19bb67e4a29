package local

import (
	"context"

	"github.com/spigell/job-recommender/internal/lexical"
)

// OverlapScorer scores a pair by the share of query terms the document
// contains. It reads both texts together, like a cross-encoder, without a
// model.
type OverlapScorer struct{}

func NewOverlapScorer() *OverlapScorer { return &OverlapScorer{} }

func (s *OverlapScorer) Name() string { return "local-overlap" }

func (s *OverlapScorer) ScorePairs(ctx context.Context, query string, docs []string) ([]float64, error) {
	terms := make(map[string]struct{})
	for _, tok := range lexical.Tokenize(query) {
		terms[tok] = struct{}{}
	}

	scores := make([]float64, len(docs))
	if len(terms) == 0 {
		return scores, nil
	}
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seen := make(map[string]struct{})
		for _, tok := range lexical.Tokenize(doc) {
			if _, ok := terms[tok]; ok {
				seen[tok] = struct{}{}
			}
		}
		scores[i] = float64(len(seen)) / float64(len(terms))
	}
	return scores, nil
}
