package dense

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/spigell/job-recommender/internal/ai"
)

const (
	DefaultBatchSize = 32
	DefaultWorkers   = 4
)

// EmbedAll embeds texts in batches with bounded parallelism, keeping input
// order. Any batch failure fails the whole call.
func EmbedAll(ctx context.Context, embedder ai.Embedder, texts []string, batchSize, workers int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}

	out := make([][]float32, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			vecs, err := embedder.Embed(ctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embed batch %d-%d: got %d vectors", start, end, len(vecs))
			}
			copy(out[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
