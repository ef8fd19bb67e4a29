package cache

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/spigell/job-recommender/internal/ai"
	"github.com/spigell/job-recommender/internal/textnorm"
)

// Embedder serves repeated texts from the cache and sends only misses to the
// wrapped model, in one batch.
type Embedder struct {
	inner ai.Embedder
	cache *Tiered
}

func NewEmbedder(inner ai.Embedder, cache *Tiered) *Embedder {
	return &Embedder{inner: inner, cache: cache}
}

func (e *Embedder) Name() string   { return e.inner.Name() }
func (e *Embedder) Dimension() int { return e.inner.Dimension() }

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	dim := e.inner.Dimension()
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		keys[i] = Key("embedding", e.inner.Name(), strconv.Itoa(dim), textnorm.Normalize(text))
		if data, ok := e.cache.Get(ctx, keys[i]); ok {
			var v []float32
			if json.Unmarshal(data, &v) == nil && len(v) > 0 && (dim <= 0 || len(v) == dim) {
				out[i] = v
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := e.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		if data, err := json.Marshal(vecs[j]); err == nil {
			e.cache.Set(ctx, keys[i], data)
		}
	}
	return out, nil
}
