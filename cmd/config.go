package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/spigell/job-recommender/internal/artifact"
	"github.com/spigell/job-recommender/internal/cache"
	"github.com/spigell/job-recommender/internal/evaluation"
	"github.com/spigell/job-recommender/internal/filtering"
	"github.com/spigell/job-recommender/internal/fusion"
	"github.com/spigell/job-recommender/internal/inference"
	"github.com/spigell/job-recommender/internal/recommend"
	"github.com/spigell/job-recommender/internal/retrieval"
)

const (
	sourceFile     = "file"
	sourceHTTP     = "http"
	sourcePostgres = "postgres"
	sourceSQLite   = "sqlite"
	sourceNone     = "none"

	providerLocal  = "local"
	providerGemini = "gemini"
	providerOpenAI = "openai"
)

type Config struct {
	Corpus       CorpusConfig       `mapstructure:"corpus"`
	Profiles     ProfilesConfig     `mapstructure:"profiles"`
	Interactions InteractionsConfig `mapstructure:"interactions"`
	Database     DatabaseConfig     `mapstructure:"database"`
	// VocabularyFile replaces the built-in skill vocabulary.
	VocabularyFile string            `mapstructure:"vocabulary-file"`
	Artifacts      ArtifactsConfig   `mapstructure:"artifacts"`
	Sieve          SieveConfig       `mapstructure:"sieve"`
	Retrieval      RetrievalConfig   `mapstructure:"retrieval"`
	Fusion         fusion.Config     `mapstructure:"fusion"`
	Pipeline       PipelineConfig    `mapstructure:"pipeline"`
	AI             AIConfig          `mapstructure:"ai"`
	Cache          cache.Config      `mapstructure:"cache"`
	Server         ServerConfig      `mapstructure:"server"`
	Evaluation     evaluation.Config `mapstructure:"evaluation"`
}

type CorpusConfig struct {
	Source     string   `mapstructure:"source" validate:"oneof=file http postgres"`
	Path       string   `mapstructure:"path" validate:"required_if=Source file"`
	URL        string   `mapstructure:"url" validate:"required_if=Source http"`
	TokenFile  string   `mapstructure:"token-file"`
	UserAgent  string   `mapstructure:"user-agent"`
	Provinces  []string `mapstructure:"provinces"`
	Categories []string `mapstructure:"categories"`
}

type ProfilesConfig struct {
	Source string `mapstructure:"source" validate:"oneof=file postgres"`
	Path   string `mapstructure:"path" validate:"required_if=Source file"`
}

type InteractionsConfig struct {
	Source string `mapstructure:"source" validate:"oneof=none file sqlite"`
	Path   string `mapstructure:"path" validate:"required_unless=Source none"`
	// IncludeViews counts views as well as clicks when deriving ground truth.
	IncludeViews bool `mapstructure:"include-views"`
}

type DatabaseConfig struct {
	URL      string `mapstructure:"url" json:"-"`
	MaxConns int32  `mapstructure:"max-conns" validate:"gte=0"`
}

type ArtifactsConfig struct {
	Dir         string `mapstructure:"dir" validate:"required"`
	Keep        int    `mapstructure:"keep" validate:"gte=0"`
	BatchSize   int    `mapstructure:"batch-size" validate:"gte=0"`
	Workers     int    `mapstructure:"workers" validate:"gte=0"`
	MaxFeatures int    `mapstructure:"max-features" validate:"gte=0"`
	MinDF       int    `mapstructure:"min-df" validate:"gte=0"`
}

type SieveConfig struct {
	MinSkillOverlap int           `mapstructure:"min-skill-overlap" validate:"gte=0"`
	MaxAge          time.Duration `mapstructure:"max-age" validate:"gte=0"`
	Relaxation      []string      `mapstructure:"relaxation" validate:"dive,oneof=skill_overlap province category experience employment freshness"`
}

type RetrievalConfig struct {
	TopN int `mapstructure:"top-n" validate:"gte=0"`
}

type PipelineConfig struct {
	recommend.Config `mapstructure:",squash"`
	InferenceWorkers int `mapstructure:"inference-workers" validate:"gte=0"`
	RerankBatchSize  int `mapstructure:"rerank-batch-size" validate:"gte=0"`
	RerankWorkers    int `mapstructure:"rerank-workers" validate:"gte=0"`
}

type AIConfig struct {
	Embedder     string       `mapstructure:"embedder" validate:"oneof=local gemini openai"`
	Reranker     string       `mapstructure:"reranker" validate:"oneof=local gemini"`
	Dimension    int          `mapstructure:"dimension" validate:"gt=0"`
	MaxRetries   int          `mapstructure:"max-retries" validate:"gte=0"`
	MaxLogLength int          `mapstructure:"max-log-length" validate:"gte=0"`
	Gemini       GeminiConfig `mapstructure:"gemini"`
	OpenAI       OpenAIConfig `mapstructure:"openai"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key" json:"-"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	EmbedModel string `mapstructure:"embed-model"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api-key" json:"-"`
	APIKeyFile string `mapstructure:"api-key-file"`
	BaseURL    string `mapstructure:"base-url" validate:"omitempty,url"`
	Model      string `mapstructure:"model"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
	// RebuildInterval schedules background rebuilds; zero disables them.
	RebuildInterval time.Duration `mapstructure:"rebuild-interval" validate:"gte=0"`
}

func (c *Config) withDefaults() {
	if c.Corpus.Source == "" {
		c.Corpus.Source = sourceFile
	}
	if c.Profiles.Source == "" {
		c.Profiles.Source = sourceFile
	}
	if c.Interactions.Source == "" {
		c.Interactions.Source = sourceNone
	}
	if c.Artifacts.Dir == "" {
		c.Artifacts.Dir = "artifacts"
	}
	if c.Artifacts.Keep == 0 {
		c.Artifacts.Keep = 3
	}

	sieve := filtering.DefaultConfig()
	if c.Sieve.MinSkillOverlap == 0 {
		c.Sieve.MinSkillOverlap = sieve.MinSkillOverlap
	}
	if c.Sieve.MaxAge == 0 {
		c.Sieve.MaxAge = sieve.MaxAge
	}
	if len(c.Sieve.Relaxation) == 0 {
		c.Sieve.Relaxation = sieve.Relaxation
	}

	if c.Retrieval.TopN == 0 {
		c.Retrieval.TopN = retrieval.DefaultTopN
	}
	if c.Fusion == (fusion.Config{}) {
		c.Fusion = fusion.DefaultConfig()
	}
	if c.Fusion.HalfLife == 0 {
		c.Fusion.HalfLife = fusion.DefaultConfig().HalfLife
	}

	pipeline := recommend.DefaultConfig()
	if c.Pipeline.TopK == 0 {
		c.Pipeline.TopK = pipeline.TopK
	}
	if c.Pipeline.Deadline == 0 {
		c.Pipeline.Deadline = pipeline.Deadline
	}
	if c.Pipeline.EmbedBudget == 0 {
		c.Pipeline.EmbedBudget = pipeline.EmbedBudget
	}
	if c.Pipeline.RerankBudget == 0 {
		c.Pipeline.RerankBudget = pipeline.RerankBudget
	}
	if c.Pipeline.InferenceWorkers == 0 {
		c.Pipeline.InferenceWorkers = inference.DefaultWorkers
	}

	if c.AI.Embedder == "" {
		c.AI.Embedder = providerLocal
	}
	if c.AI.Reranker == "" {
		c.AI.Reranker = providerLocal
	}
	if c.AI.Dimension == 0 {
		c.AI.Dimension = 256
	}
	if c.AI.MaxRetries == 0 {
		c.AI.MaxRetries = 2
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}

	eval := evaluation.DefaultConfig()
	if c.Evaluation.K == 0 {
		c.Evaluation.K = eval.K
	}
	if c.Evaluation.Seed == 0 {
		c.Evaluation.Seed = eval.Seed
	}
	if c.Evaluation.Workers == 0 {
		c.Evaluation.Workers = eval.Workers
	}
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Database.URL == "" && (c.Corpus.Source == sourcePostgres || c.Profiles.Source == sourcePostgres) {
		return errors.New("invalid config: database.url is required for postgres sources (or set JR_DATABASE_URL)")
	}
	return nil
}

func (c *Config) sieve() *filtering.Config {
	return &filtering.Config{
		MinSkillOverlap: c.Sieve.MinSkillOverlap,
		MaxAge:          c.Sieve.MaxAge,
		Relaxation:      append([]string(nil), c.Sieve.Relaxation...),
	}
}

func (c *Config) buildOptions() artifact.BuildOptions {
	opts := artifact.BuildOptions{
		BatchSize: c.Artifacts.BatchSize,
		Workers:   c.Artifacts.Workers,
		Keep:      c.Artifacts.Keep,
	}
	opts.Lexical.MaxFeatures = c.Artifacts.MaxFeatures
	opts.Lexical.MinDF = c.Artifacts.MinDF
	return opts
}
