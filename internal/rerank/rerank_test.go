package rerank

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/ai"
	"github.com/spigell/job-recommender/internal/corpus"
	"github.com/spigell/job-recommender/internal/features"
	"github.com/spigell/job-recommender/internal/filtering"
	"github.com/spigell/job-recommender/internal/retrieval"
)

// stubScorer scores a document by the number written after "score=".
type stubScorer struct {
	err   error
	delay time.Duration
	short bool
}

func (s stubScorer) Name() string { return "stub" }

func (s stubScorer) ScorePairs(ctx context.Context, _ string, docs []string) ([]float64, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]float64, len(docs))
	for i, d := range docs {
		_, num, _ := strings.Cut(d, "score=")
		var v float64
		_, _ = fmt.Sscan(num, &v)
		out[i] = v
	}
	if s.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func candidates(scores ...string) []retrieval.Candidate {
	out := make([]retrieval.Candidate, len(scores))
	for i, s := range scores {
		id := fmt.Sprintf("j%02d", i)
		f := &features.JobFeatures{ID: id, EmbedText: "score=" + s}
		out[i] = retrieval.Candidate{
			Candidate:  filtering.Candidate{Position: i, Job: &corpus.JobPosting{ID: id}, Features: f},
			Similarity: 1 - float64(i)/100,
		}
	}
	return out
}

func jobIDs(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Job.ID
	}
	return out
}

func TestRerankIsPermutation(t *testing.T) {
	in := candidates("0.2", "0.9", "0.5", "0.9", "1.5", "-1", "NaN", "0.7", "0.1", "0.3", "0.6", "0.4")
	r := New(stubScorer{}, Options{BatchSize: 5, Workers: 2}, zap.NewNop())

	out, err := r.Rerank(context.Background(), "profile", in)
	require.NoError(t, err)
	require.Len(t, out, len(in))

	got := jobIDs(out)
	want := make([]string, len(in))
	for i, c := range in {
		want[i] = c.Job.ID
	}
	slices.Sort(got)
	assert.Equal(t, want, got)
}

func TestRerankOrdersByCrossScore(t *testing.T) {
	in := candidates("0.2", "0.9", "0.5", "0.9", "1.5", "-1")
	r := New(stubScorer{}, Options{BatchSize: 2}, zap.NewNop())

	out, err := r.Rerank(context.Background(), "profile", in)
	require.NoError(t, err)
	assert.Equal(t, []string{"j04", "j01", "j03", "j02", "j00", "j05"}, jobIDs(out))
	assert.Equal(t, 1.0, out[0].CrossScore)
	assert.Equal(t, 0.0, out[5].CrossScore)
	for _, c := range out {
		assert.False(t, math.IsNaN(c.CrossScore))
	}
	// Bi-encoder similarity is carried through untouched.
	assert.Equal(t, 1-4.0/100, out[0].Similarity)
}

func TestRerankUnavailable(t *testing.T) {
	in := candidates("0.1", "0.2")
	tests := []struct {
		name   string
		scorer ai.PairScorer
	}{
		{"no model", nil},
		{"model error", stubScorer{err: errors.New("503")}},
		{"short answer", stubScorer{short: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.scorer, Options{}, zap.NewNop())
			out, err := r.Rerank(context.Background(), "profile", in)
			assert.Nil(t, out)
			assert.True(t, errors.Is(err, ai.ErrUnavailable), "got %v", err)
		})
	}
}

func TestRerankDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	r := New(stubScorer{delay: time.Second}, Options{}, zap.NewNop())
	_, err := r.Rerank(ctx, "profile", candidates("0.5"))
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestRerankEmpty(t *testing.T) {
	r := New(nil, Options{}, zap.NewNop())
	out, err := r.Rerank(context.Background(), "profile", nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
