package local

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedderIsDeterministicAndNormalized(t *testing.T) {
	e := NewHashEmbedder(64)
	vecs, err := e.Embed(context.Background(), []string{"Go developer", "Go developer", ""})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	assert.Equal(t, vecs[0], vecs[1])
	assert.Len(t, vecs[0], 64)

	var sum float64
	for _, v := range vecs[0] {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)

	for _, v := range vecs[2] {
		assert.Zero(t, v)
	}
}

func TestHashEmbedderHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHashEmbedder(0).Embed(ctx, []string{"x"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestOverlapScorer(t *testing.T) {
	scores, err := NewOverlapScorer().ScorePairs(context.Background(), "go postgresql docker", []string{
		"Go and PostgreSQL backend",
		"Marketing manager",
		"docker go postgresql",
	})
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, scores[0], 1e-9)
	assert.Equal(t, 0.0, scores[1])
	assert.Equal(t, 1.0, scores[2])
}
