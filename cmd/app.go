package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/ai"
	"github.com/spigell/job-recommender/internal/ai/gemini"
	"github.com/spigell/job-recommender/internal/ai/local"
	"github.com/spigell/job-recommender/internal/ai/openai"
	"github.com/spigell/job-recommender/internal/artifact"
	"github.com/spigell/job-recommender/internal/cache"
	"github.com/spigell/job-recommender/internal/corpus"
	"github.com/spigell/job-recommender/internal/dense"
	"github.com/spigell/job-recommender/internal/features"
	"github.com/spigell/job-recommender/internal/filtering"
	"github.com/spigell/job-recommender/internal/fusion"
	"github.com/spigell/job-recommender/internal/inference"
	"github.com/spigell/job-recommender/internal/interactions"
	"github.com/spigell/job-recommender/internal/metrics"
	"github.com/spigell/job-recommender/internal/pg"
	"github.com/spigell/job-recommender/internal/profile"
	"github.com/spigell/job-recommender/internal/recommend"
	"github.com/spigell/job-recommender/internal/rerank"
	"github.com/spigell/job-recommender/internal/retrieval"
	"github.com/spigell/job-recommender/internal/secrets"
)

// application holds everything a command needs, wired from Config.
type application struct {
	cfg    *Config
	logger *zap.Logger

	db           *pgxpool.Pool
	profiles     profile.Store
	interactions interactions.Log
	extractor    *features.Extractor
	searcher     dense.Searcher
	store        *artifact.Store
	builder      *artifact.Builder
	service      *recommend.Service
	cache        *cache.Tiered
	metrics      *metrics.Metrics

	generator *gemini.Generator
	closers   []func() error
}

func newApplication(ctx context.Context, cfg *Config, logger *zap.Logger) (*application, error) {
	a := &application{
		cfg:      cfg,
		logger:   logger,
		searcher: dense.FlatSearcher{},
		store:    artifact.NewStore(cfg.Artifacts.Dir),
		metrics:  metrics.New(),
	}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *application) init(ctx context.Context) error {
	cfg := a.cfg

	if cfg.Corpus.Source == sourcePostgres || cfg.Profiles.Source == sourcePostgres {
		db, err := pg.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return err
		}
		a.db = db
		a.closers = append(a.closers, func() error { db.Close(); return nil })
	}

	vocab := features.DefaultVocabulary()
	if cfg.VocabularyFile != "" {
		v, err := features.LoadVocabulary(cfg.VocabularyFile)
		if err != nil {
			return err
		}
		vocab = v
	}
	a.extractor = features.NewExtractor(vocab)

	source, err := a.newSource()
	if err != nil {
		return err
	}
	if err := a.openProfiles(); err != nil {
		return err
	}
	if err := a.openInteractions(); err != nil {
		return err
	}

	pool := inference.NewPool(cfg.Pipeline.InferenceWorkers)
	docEmbedder, queryEmbedder, err := a.newEmbedders(ctx)
	if err != nil {
		return err
	}
	scorer, err := a.newScorer(ctx)
	if err != nil {
		return err
	}

	a.cache = cache.New(ctx, cfg.Cache, a.logger.Named("cache"))
	a.closers = append(a.closers, a.cache.Close)

	a.builder = artifact.NewBuilder(artifact.BuilderDeps{
		Source:    source,
		Extractor: a.extractor,
		Embedder:  pool.Embedder(docEmbedder),
		Searcher:  a.searcher,
		Store:     a.store,
		Metrics:   a.metrics,
		Logger:    a.logger.Named("builder"),
	}, cfg.buildOptions())

	sieve, err := filtering.NewSieve(cfg.sieve())
	if err != nil {
		return fmt.Errorf("sieve: %w", err)
	}
	for _, st := range sieve.Describe() {
		a.logger.Debug("sieve filter",
			zap.String("filter", st.Name),
			zap.Bool("enabled", st.Enabled),
			zap.String("reason", st.Reason),
			zap.Any("details", st.Details),
		)
	}
	a.logger.Debug("inference pool ready", zap.Int("workers", pool.Size()))

	a.service, err = recommend.New(recommend.Deps{
		Registry:  a.builder.Registry(),
		Extractor: a.extractor,
		Sieve:     sieve,
		Retriever: retrieval.New(cache.NewEmbedder(pool.Embedder(queryEmbedder), a.cache), cfg.Retrieval.TopN, a.logger.Named("retrieval")),
		Reranker: rerank.New(pool.Scorer(scorer), rerank.Options{
			BatchSize: cfg.Pipeline.RerankBatchSize,
			Workers:   cfg.Pipeline.RerankWorkers,
		}, a.logger.Named("rerank")),
		Fuser:   fusion.New(cfg.Fusion),
		Metrics: a.metrics,
		Logger:  a.logger.Named("recommend"),
	}, cfg.Pipeline.Config)
	return err
}

func (a *application) newSource() (corpus.Source, error) {
	cfg := a.cfg.Corpus
	switch cfg.Source {
	case sourceFile:
		return corpus.NewFileSource(cfg.Path), nil
	case sourceHTTP:
		token := ""
		if cfg.TokenFile != "" {
			t, err := secrets.Load(secrets.Source{Name: "corpus api token", File: cfg.TokenFile})
			if err != nil {
				return nil, err
			}
			token = t
		}
		src := corpus.NewHTTPSource(cfg.URL, token, corpus.Query{
			Provinces:  cfg.Provinces,
			Categories: cfg.Categories,
			ActiveOnly: true,
			MaxAgeDays: int(a.cfg.Sieve.MaxAge.Hours() / 24),
		}, a.logger.Named("corpus"))
		if cfg.UserAgent != "" {
			src.UserAgent = cfg.UserAgent
		}
		return src, nil
	case sourcePostgres:
		return corpus.NewPostgresSource(a.db), nil
	default:
		return nil, fmt.Errorf("unsupported corpus source: %s", cfg.Source)
	}
}

func (a *application) openProfiles() error {
	switch a.cfg.Profiles.Source {
	case sourceFile:
		store, err := profile.LoadFile(a.cfg.Profiles.Path, a.logger.Named("profiles"))
		if err != nil {
			return fmt.Errorf("load profiles: %w", err)
		}
		a.profiles = store
	case sourcePostgres:
		a.profiles = profile.NewPostgresStore(a.db)
	default:
		return fmt.Errorf("unsupported profile source: %s", a.cfg.Profiles.Source)
	}
	return nil
}

func (a *application) openInteractions() error {
	switch a.cfg.Interactions.Source {
	case sourceNone:
	case sourceFile:
		l, err := interactions.LoadFile(a.cfg.Interactions.Path)
		if err != nil {
			return fmt.Errorf("load interactions: %w", err)
		}
		a.interactions = l
	case sourceSQLite:
		l, err := interactions.OpenSQLite(a.cfg.Interactions.Path)
		if err != nil {
			return err
		}
		a.interactions = l
		a.closers = append(a.closers, l.Close)
	default:
		return fmt.Errorf("unsupported interactions source: %s", a.cfg.Interactions.Source)
	}
	return nil
}

// newEmbedders returns the document-side and query-side embedders. They
// differ only for providers with asymmetric retrieval embeddings.
func (a *application) newEmbedders(ctx context.Context) (ai.Embedder, ai.Embedder, error) {
	cfg := a.cfg.AI
	switch cfg.Embedder {
	case providerLocal:
		e := local.NewHashEmbedder(cfg.Dimension)
		return e, e, nil
	case providerGemini:
		gen, err := a.geminiGenerator(ctx)
		if err != nil {
			return nil, nil, err
		}
		e := gemini.NewEmbedder(gen, gemini.TaskDocument, cfg.Dimension, cfg.MaxRetries, a.logger)
		return e, e.ForQueries(), nil
	case providerOpenAI:
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			Value: cfg.OpenAI.APIKey,
			File:  cfg.OpenAI.APIKeyFile,
			Env:   "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, nil, fmt.Errorf("%w (set ai.openai.api-key-file or OPENAI_API_KEY_FILE)", err)
		}
		e, err := openai.NewEmbedder(openai.Config{
			APIKey:    apiKey,
			BaseURL:   cfg.OpenAI.BaseURL,
			Model:     cfg.OpenAI.Model,
			Dimension: cfg.Dimension,
			Retries:   cfg.MaxRetries,
		}, a.logger)
		if err != nil {
			return nil, nil, err
		}
		return e, e, nil
	default:
		return nil, nil, fmt.Errorf("unsupported embedder provider: %s", cfg.Embedder)
	}
}

func (a *application) newScorer(ctx context.Context) (ai.PairScorer, error) {
	cfg := a.cfg.AI
	switch strings.ToLower(cfg.Reranker) {
	case providerLocal:
		return local.NewOverlapScorer(), nil
	case providerGemini:
		gen, err := a.geminiGenerator(ctx)
		if err != nil {
			return nil, err
		}
		return gemini.NewPairScorer(gen, a.logger, cfg.MaxLogLength), nil
	default:
		return nil, fmt.Errorf("unsupported reranker provider: %s", cfg.Reranker)
	}
}

// geminiGenerator is shared by the embedder and the pair scorer.
func (a *application) geminiGenerator(ctx context.Context) (*gemini.Generator, error) {
	if a.generator != nil {
		return a.generator, nil
	}
	cfg := a.cfg.AI.Gemini
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}
	gen, err := gemini.NewGenerator(ctx, apiKey, cfg.Model, cfg.EmbedModel)
	if err != nil {
		return nil, err
	}
	a.generator = gen
	return gen, nil
}

// restore publishes the stored CURRENT version, or builds one when nothing
// usable is stored.
func (a *application) restore(ctx context.Context) (*artifact.Snapshot, error) {
	snap, err := a.store.LoadCurrent(a.extractor, a.searcher)
	if err == nil {
		a.builder.Registry().Publish(snap)
		a.metrics.SetArtifact(snap.Len(), snap.Manifest.BuiltAt)
		a.logger.Info("loaded stored artifact",
			zap.String("version", snap.Version()),
			zap.Int("postings", snap.Len()),
		)
		return snap, nil
	}
	if errors.Is(err, artifact.ErrNoVersion) {
		a.logger.Info("no stored artifact, building one", zap.String("dir", a.store.Root()))
	} else {
		a.logger.Warn("stored artifact unusable, rebuilding", zap.Error(err))
	}
	return a.builder.Rebuild(ctx)
}

// pickProfile resolves id, or asks the user to choose when id is empty.
func (a *application) pickProfile(ctx context.Context, id string) (*profile.UserProfile, error) {
	if id != "" {
		return a.profiles.Get(ctx, id)
	}
	all, err := a.profiles.List(ctx)
	if err != nil {
		return nil, err
	}
	return selectProfile(all)
}

func (a *application) Close() {
	if a.cache != nil {
		hits, misses := a.cache.Stats()
		a.logger.Debug("profile embedding cache", zap.Int64("hits", hits), zap.Int64("misses", misses))
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("closing resource", zap.Error(err))
		}
	}
}
