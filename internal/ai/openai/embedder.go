// Package openai embeds text through any OpenAI-compatible /embeddings
// endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/ai"
	"github.com/spigell/job-recommender/internal/logger"
)

const defaultModel = "text-embedding-3-small"

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Dimension is requested from the model and enforced on every response.
	Dimension int
	Retries   int
}

type Embedder struct {
	client *openai.Client
	model  string
	dim    int
	logger *zap.Logger
}

func NewEmbedder(cfg Config, log *zap.Logger) (*Embedder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Dimension <= 0 {
		return nil, errors.New("openai embedding dimension is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(max(cfg.Retries, 0)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &Embedder{
		client: &client,
		model:  model,
		dim:    cfg.Dimension,
		logger: logger.WithCommonFields(log, "openai", model),
	}, nil
}

func (e *Embedder) Name() string { return "openai:" + e.model }

func (e *Embedder) Dimension() int { return e.dim }

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: openai.Int(int64(e.dim)),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: create embeddings: %w", ai.ErrUnavailable, err)
	}

	data := slices.Clone(resp.Data)
	slices.SortFunc(data, func(a, b openai.Embedding) int { return int(a.Index - b.Index) })
	if len(data) != len(texts) {
		return nil, fmt.Errorf("%w: %d embeddings for %d texts", ai.ErrUnavailable, len(data), len(texts))
	}

	e.logger.Debug("embeddings created", zap.Int("count", len(data)), zap.Int64("prompt_tokens", resp.Usage.PromptTokens))

	out := make([][]float32, len(data))
	for i, d := range data {
		if len(d.Embedding) != e.dim {
			return nil, fmt.Errorf("embedding %d has %d values, want %d", i, len(d.Embedding), e.dim)
		}
		v := make([]float32, len(d.Embedding))
		for j, x := range d.Embedding {
			v[j] = float32(x)
		}
		out[i] = v
	}
	return out, nil
}
