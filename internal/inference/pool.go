// Package inference bounds how many model calls run at once. Request
// goroutines wait for a slot instead of piling calls onto the model.
package inference

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/spigell/job-recommender/internal/ai"
)

const DefaultWorkers = 4

type Pool struct {
	sem  *semaphore.Weighted
	size int
}

func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pool{sem: semaphore.NewWeighted(int64(workers)), size: workers}
}

func (p *Pool) Size() int { return p.size }

// Do runs fn once a slot is free. It returns ctx.Err() if the context ends
// while waiting.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for inference slot: %w", err)
	}
	defer p.sem.Release(1)
	return fn(ctx)
}

// Embedder wraps e so every call goes through the pool.
func (p *Pool) Embedder(e ai.Embedder) ai.Embedder {
	if e == nil {
		return nil
	}
	return &pooledEmbedder{pool: p, inner: e}
}

// Scorer wraps s so every call goes through the pool.
func (p *Pool) Scorer(s ai.PairScorer) ai.PairScorer {
	if s == nil {
		return nil
	}
	return &pooledScorer{pool: p, inner: s}
}

type pooledEmbedder struct {
	pool  *Pool
	inner ai.Embedder
}

func (e *pooledEmbedder) Name() string   { return e.inner.Name() }
func (e *pooledEmbedder) Dimension() int { return e.inner.Dimension() }

func (e *pooledEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := e.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = e.inner.Embed(ctx, texts)
		return err
	})
	return out, err
}

type pooledScorer struct {
	pool  *Pool
	inner ai.PairScorer
}

func (s *pooledScorer) Name() string { return s.inner.Name() }

func (s *pooledScorer) ScorePairs(ctx context.Context, query string, docs []string) ([]float64, error) {
	var out []float64
	err := s.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.inner.ScorePairs(ctx, query, docs)
		return err
	})
	return out, err
}
