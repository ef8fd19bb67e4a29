// Package rerank is the cross-encoder stage. It reorders and rescores the
// retrieved candidates; it never adds or removes one.
package rerank

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/job-recommender/internal/ai"
	"github.com/spigell/job-recommender/internal/retrieval"
)

const (
	DefaultBatchSize = 10
	DefaultWorkers   = 4
)

// Candidate is a retrieved posting with its cross-encoder score in [0,1].
type Candidate struct {
	retrieval.Candidate
	CrossScore float64
}

type Options struct {
	BatchSize int
	Workers   int
}

type Reranker struct {
	scorer ai.PairScorer
	opts   Options
	logger *zap.Logger
}

func New(scorer ai.PairScorer, opts Options, logger *zap.Logger) *Reranker {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reranker{scorer: scorer, opts: opts, logger: logger}
}

// Rerank scores every (profile, posting) pair and sorts by that score,
// ties by job ID. A missing or failing model yields an error wrapping
// ai.ErrUnavailable; an expired context yields the context error. There is
// no partial result.
func (r *Reranker) Rerank(ctx context.Context, profileText string, in []retrieval.Candidate) ([]Candidate, error) {
	if len(in) == 0 {
		return nil, nil
	}
	if r.scorer == nil {
		return nil, fmt.Errorf("%w: no cross-encoder configured", ai.ErrUnavailable)
	}

	scores := make([]float64, len(in))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for start := 0; start < len(in); start += r.opts.BatchSize {
		end := min(start+r.opts.BatchSize, len(in))
		g.Go(func() error {
			docs := make([]string, 0, end-start)
			for _, c := range in[start:end] {
				docs = append(docs, c.Features.EmbedText)
			}
			got, err := r.scorer.ScorePairs(gctx, profileText, docs)
			if err != nil {
				return err
			}
			if len(got) != len(docs) {
				return fmt.Errorf("%w: %d scores for %d pairs", ai.ErrUnavailable, len(got), len(docs))
			}
			copy(scores[start:end], got)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("rerank: %w", ctxErr)
		}
		if errors.Is(err, ai.ErrUnavailable) {
			return nil, fmt.Errorf("rerank: %w", err)
		}
		return nil, fmt.Errorf("rerank: %w: %w", ai.ErrUnavailable, err)
	}

	out := make([]Candidate, len(in))
	for i, c := range in {
		out[i] = Candidate{Candidate: c, CrossScore: clamp(scores[i])}
	}
	slices.SortFunc(out, func(a, b Candidate) int {
		if c := cmp.Compare(b.CrossScore, a.CrossScore); c != 0 {
			return c
		}
		return strings.Compare(a.Job.ID, b.Job.ID)
	})

	r.logger.Debug("reranked candidates", zap.Int("count", len(out)), zap.String("model", r.scorer.Name()))
	return out, nil
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return min(max(v, 0), 1)
}
