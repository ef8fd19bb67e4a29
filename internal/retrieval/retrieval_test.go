package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/ai"
	"github.com/spigell/job-recommender/internal/corpus"
	"github.com/spigell/job-recommender/internal/dense"
	"github.com/spigell/job-recommender/internal/filtering"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s stubEmbedder) Name() string   { return "stub" }
func (s stubEmbedder) Dimension() int { return len(s.vec) }
func (s stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, nil
}

// fixture builds n postings whose embeddings drift away from the x axis as
// the index grows; every third posting duplicates its predecessor.
func fixture(t *testing.T, n int) (*dense.Index, []filtering.Candidate) {
	t.Helper()
	ids := make([]string, n)
	vecs := make([][]float32, n)
	pool := make([]filtering.Candidate, n)
	for i := range n {
		ids[i] = fmt.Sprintf("job-%03d", i)
		k := i
		if i%3 == 2 {
			k = i - 1
		}
		vecs[i] = []float32{1, float32(k) * 0.01}
		pool[i] = filtering.Candidate{Position: i, Job: &corpus.JobPosting{ID: ids[i]}}
	}
	ix, err := dense.Build(ids, vecs, "stub", nil)
	require.NoError(t, err)
	return ix, pool
}

func TestRetrieveIsBoundedSubset(t *testing.T) {
	ix, pool := fixture(t, 120)
	r := New(stubEmbedder{vec: []float32{1, 0}}, 0, zap.NewNop())

	sieved := pool[10:100]
	out, err := r.Retrieve(context.Background(), ix, "profile", sieved)
	require.NoError(t, err)
	require.Len(t, out, DefaultTopN)

	allowed := map[string]bool{}
	for _, c := range sieved {
		allowed[c.Job.ID] = true
	}
	for i, c := range out {
		assert.True(t, allowed[c.Job.ID], "%s is outside the sieved pool", c.Job.ID)
		if i > 0 {
			prev := out[i-1]
			assert.True(t, prev.Similarity > c.Similarity ||
				(prev.Similarity == c.Similarity && prev.Job.ID < c.Job.ID))
		}
	}
	assert.Equal(t, "job-010", out[0].Job.ID)
}

func TestRetrieveReturnsWholeSmallPool(t *testing.T) {
	ix, pool := fixture(t, 10)
	r := New(stubEmbedder{vec: []float32{1, 0}}, 50, zap.NewNop())

	out, err := r.Retrieve(context.Background(), ix, "profile", pool[:7])
	require.NoError(t, err)
	assert.Len(t, out, 7)
}

func TestRetrieveTiesByID(t *testing.T) {
	ix, pool := fixture(t, 6)
	r := New(stubEmbedder{vec: []float32{1, 0}}, 50, zap.NewNop())

	out, err := r.Retrieve(context.Background(), ix, "profile", pool)
	require.NoError(t, err)
	// job-001 and job-002 share an embedding.
	assert.Equal(t, "job-001", out[1].Job.ID)
	assert.Equal(t, "job-002", out[2].Job.ID)
}

func TestRetrieveEmbedderFailure(t *testing.T) {
	ix, pool := fixture(t, 3)
	r := New(stubEmbedder{err: fmt.Errorf("%w: down", ai.ErrUnavailable)}, 50, zap.NewNop())

	_, err := r.Retrieve(context.Background(), ix, "profile", pool)
	assert.True(t, errors.Is(err, ai.ErrUnavailable))

	r = New(nil, 50, zap.NewNop())
	_, err = r.Retrieve(context.Background(), ix, "profile", pool)
	assert.True(t, errors.Is(err, ai.ErrUnavailable))
}

func TestRetrieveEmptyPool(t *testing.T) {
	r := New(stubEmbedder{vec: []float32{1, 0}}, 50, zap.NewNop())
	out, err := r.Retrieve(context.Background(), nil, "profile", nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
