package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/ai"
	"github.com/spigell/job-recommender/internal/logger"
	"github.com/spigell/job-recommender/internal/utils"
)

type contentEmbedder interface {
	EmbedContent(ctx context.Context, texts []string, taskType string, dim int) ([][]float32, error)
	EmbedModel() string
}

const (
	defaultRetries = 2
	retryBase      = 500 * time.Millisecond
	retryMax       = 5 * time.Second
)

// Embedder adapts Gemini embeddings to ai.Embedder. Dimension must be fixed
// per build, so it is configured rather than discovered.
type Embedder struct {
	generator contentEmbedder
	taskType  string
	dim       int
	retries   int
	backoff   time.Duration
	logger    *zap.Logger
}

func NewEmbedder(generator contentEmbedder, taskType string, dim, retries int, log *zap.Logger) *Embedder {
	if taskType == "" {
		taskType = TaskDocument
	}
	if retries < 0 {
		retries = defaultRetries
	}
	return &Embedder{
		generator: generator,
		taskType:  taskType,
		dim:       dim,
		retries:   retries,
		backoff:   retryBase,
		logger:    logger.WithCommonFields(log, "gemini", generator.EmbedModel()),
	}
}

// ForQueries returns a copy that embeds with the query task type.
func (e *Embedder) ForQueries() *Embedder {
	c := *e
	c.taskType = TaskQuery
	return &c
}

func (e *Embedder) Name() string { return "gemini:" + e.generator.EmbedModel() }

func (e *Embedder) Dimension() int { return e.dim }

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= e.retries; attempt++ {
		if attempt > 0 {
			delay := utils.Backoff(attempt, e.backoff, retryMax)
			e.logger.Debug("retrying embedding request", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(lastErr))
			if err := utils.WaitFor(ctx, delay); err != nil {
				return nil, err
			}
		}

		vecs, err := e.generator.EmbedContent(ctx, texts, e.taskType, e.dim)
		if err == nil {
			for i, v := range vecs {
				if e.dim > 0 && len(v) != e.dim {
					return nil, fmt.Errorf("embedding %d has %d values, want %d", i, len(v), e.dim)
				}
			}
			return vecs, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %w", ai.ErrUnavailable, lastErr)
}
