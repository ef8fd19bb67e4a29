package dense

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryOrdersBySimilarityThenID(t *testing.T) {
	ix, err := Build(
		[]string{"c", "a", "b", "d"},
		[][]float32{{1, 0}, {2, 0}, {0, 1}, {3, 0}},
		"stub", nil,
	)
	require.NoError(t, err)

	hits, err := ix.Query([]float32{5, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	// a, c and d all point the same way; ties go to the smaller ID.
	assert.Equal(t, []string{"a", "c", "d"}, []string{hits[0].JobID, hits[1].JobID, hits[2].JobID})
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
}

func TestQueryRespectsAllowAndK(t *testing.T) {
	ix, err := Build([]string{"a", "b", "c"}, [][]float32{{1, 0}, {0.9, 0.1}, {0, 1}}, "stub", nil)
	require.NoError(t, err)

	allowed := map[int]bool{1: true, 2: true}
	hits, err := ix.Query([]float32{1, 0}, 50, func(pos int) bool { return allowed[pos] })
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "b", hits[0].JobID)
	assert.Equal(t, 1, hits[0].Position)

	hits, err = ix.Query([]float32{1, 0}, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBuildRejectsMixedDimensions(t *testing.T) {
	_, err := Build([]string{"a", "b"}, [][]float32{{1, 0}, {1, 0, 0}}, "stub", nil)
	assert.True(t, errors.Is(err, ErrDimension))

	ix, err := Build([]string{"a"}, [][]float32{{1, 0}}, "stub", nil)
	require.NoError(t, err)
	_, err = ix.Query([]float32{1, 0, 0}, 1, nil)
	assert.True(t, errors.Is(err, ErrDimension))
}

func TestEmptyIndex(t *testing.T) {
	ix, err := Build(nil, nil, "stub", nil)
	require.NoError(t, err)
	hits, err := ix.Query([]float32{1}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestEncodeDecode(t *testing.T) {
	ix, err := Build([]string{"a", "b"}, [][]float32{{3, 4}, {0, 2}}, "stub", nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ix.Encode(&buf))

	got, err := Decode(&buf, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Dim())
	assert.Equal(t, "stub", got.Model())
	v, ok := got.Vector("a")
	require.True(t, ok)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 1}, []float32{2, 2}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, Cosine([]float32{1}, []float32{1, 1}))

	n := Normalize([]float32{3, 4})
	assert.InDelta(t, 1.0, math.Sqrt(Dot(n, n)), 1e-6)
}

type countingEmbedder struct {
	calls atomic.Int32
	fail  bool
}

func (e *countingEmbedder) Name() string   { return "counting" }
func (e *countingEmbedder) Dimension() int { return 1 }

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	if e.fail {
		return nil, errors.New("down")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func TestEmbedAllKeepsOrder(t *testing.T) {
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	e := &countingEmbedder{}

	vecs, err := EmbedAll(context.Background(), e, texts, 2, 3)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	for i, v := range vecs {
		assert.Equal(t, float32(i+1), v[0])
	}
	assert.Equal(t, int32(3), e.calls.Load())
}

func TestEmbedAllFails(t *testing.T) {
	_, err := EmbedAll(context.Background(), &countingEmbedder{fail: true}, []string{"a"}, 0, 0)
	assert.Error(t, err)
}
