package artifact

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/ai"
	"github.com/spigell/job-recommender/internal/corpus"
	"github.com/spigell/job-recommender/internal/dense"
	"github.com/spigell/job-recommender/internal/features"
	"github.com/spigell/job-recommender/internal/lexical"
	"github.com/spigell/job-recommender/internal/logger"
	"github.com/spigell/job-recommender/internal/metrics"
)

type BuildOptions struct {
	Lexical   lexical.Options
	BatchSize int
	Workers   int
	// Keep is how many stored versions survive a prune; 0 keeps all.
	Keep int
}

// Builder runs offline rebuilds: load, extract, fit, embed, persist, publish.
// Only one rebuild runs at a time.
type Builder struct {
	source    corpus.Source
	extractor *features.Extractor
	embedder  ai.Embedder
	searcher  dense.Searcher
	store     *Store
	registry  *Registry
	opts      BuildOptions
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time

	mu sync.Mutex
}

type BuilderDeps struct {
	Source    corpus.Source
	Extractor *features.Extractor
	Embedder  ai.Embedder
	Searcher  dense.Searcher
	// Store is optional; without it snapshots live in memory only.
	Store    *Store
	Registry *Registry
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

func NewBuilder(deps BuilderDeps, opts BuildOptions) *Builder {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Extractor == nil {
		deps.Extractor = features.NewExtractor(nil)
	}
	if deps.Searcher == nil {
		deps.Searcher = dense.FlatSearcher{}
	}
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}
	return &Builder{
		source:    deps.Source,
		extractor: deps.Extractor,
		embedder:  deps.Embedder,
		searcher:  deps.Searcher,
		store:     deps.Store,
		registry:  deps.Registry,
		opts:      opts,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       time.Now,
	}
}

func (b *Builder) Registry() *Registry { return b.registry }

// Rebuild builds a new snapshot and publishes it. On any failure the error
// wraps ErrBuild and the published snapshot is left untouched.
func (b *Builder) Rebuild(ctx context.Context) (*Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := b.now()
	snap, err := b.build(ctx)
	if err != nil {
		return nil, b.fail(err)
	}

	if b.store != nil {
		if err := b.store.Save(snap); err != nil {
			return nil, b.fail(fmt.Errorf("save artifact: %w", err))
		}
		if err := b.store.SetCurrent(snap.Version()); err != nil {
			return nil, b.fail(fmt.Errorf("publish artifact: %w", err))
		}
		if removed, err := b.store.Prune(b.opts.Keep); err != nil {
			b.logger.Warn("pruning old artifacts failed", zap.Error(err))
		} else if len(removed) > 0 {
			b.logger.Info("pruned old artifacts", zap.Strings("versions", removed))
		}
	}

	previous := b.registry.Publish(snap)
	b.metrics.CountRebuild(true)
	b.metrics.SetArtifact(snap.Len(), snap.Manifest.BuiltAt)

	fields := []zap.Field{
		zap.String(logger.FieldVersion, snap.Version()),
		zap.Int("postings", snap.Len()),
		zap.Int("vocabulary", snap.Lexical.VocabularySize()),
		zap.Duration("took", b.now().Sub(start)),
	}
	if previous != nil {
		fields = append(fields, zap.String("replaced", previous.Version()))
	}
	b.logger.Info("artifact published", fields...)
	return snap, nil
}

func (b *Builder) build(ctx context.Context) (*Snapshot, error) {
	if b.source == nil {
		return nil, fmt.Errorf("no corpus source configured")
	}
	if b.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", ai.ErrUnavailable)
	}

	c, issues, err := b.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus from %s: %w", b.source.Name(), err)
	}
	for _, issue := range issues {
		b.logger.Debug("input data defaulted", zap.String("issue", issue.String()))
	}
	if len(issues) > 0 {
		b.logger.Warn("corpus records needed defaults", zap.Int("issues", len(issues)))
	}

	if c == nil {
		c = corpus.New(nil)
	}
	c = c.Active()
	c.Sort()

	feats := b.extractor.Jobs(c)
	ids := c.IDs()
	lexTexts := make([]string, len(feats))
	embedTexts := make([]string, len(feats))
	for i, f := range feats {
		lexTexts[i] = f.LexicalText
		embedTexts[i] = f.EmbedText
	}

	lex, err := lexical.Fit(ids, lexTexts, b.opts.Lexical)
	if err != nil {
		return nil, err
	}

	vecs, err := dense.EmbedAll(ctx, b.embedder, embedTexts, b.opts.BatchSize, b.opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("embed corpus: %w", err)
	}
	dix, err := dense.Build(ids, vecs, b.embedder.Name(), b.searcher)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 && b.embedder.Dimension() > 0 && dix.Dim() != b.embedder.Dimension() {
		return nil, fmt.Errorf("%w: embedder reports %d, produced %d", dense.ErrDimension, b.embedder.Dimension(), dix.Dim())
	}

	now := b.now().UTC()
	snap := &Snapshot{
		Manifest: Manifest{
			Version:        NewVersion(now),
			BuiltAt:        now,
			Source:         b.source.Name(),
			Postings:       c.Len(),
			Embedder:       b.embedder.Name(),
			Dimension:      dix.Dim(),
			VocabularySize: lex.VocabularySize(),
		},
		Corpus:   c,
		Features: feats,
		Lexical:  lex,
		Dense:    dix,
	}
	if err := snap.Check(); err != nil {
		return nil, err
	}
	return snap, nil
}

func (b *Builder) fail(err error) error {
	b.metrics.CountRebuild(false)
	b.logger.Error("index rebuild failed, keeping published artifact", zap.Error(err), zap.String(logger.FieldVersion, b.currentVersion()))
	return fmt.Errorf("%w: %w", ErrBuild, err)
}

func (b *Builder) currentVersion() string {
	if s := b.registry.Current(); s != nil {
		return s.Version()
	}
	return ""
}

// Run rebuilds every interval until ctx ends. Failures are logged; serving
// continues on the last good snapshot.
func (b *Builder) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = b.Rebuild(ctx)
		}
	}
}
