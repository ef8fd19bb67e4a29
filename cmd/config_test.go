package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/job-recommender/internal/filtering"
	"github.com/spigell/job-recommender/internal/fusion"
	"github.com/spigell/job-recommender/internal/retrieval"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{}
	cfg.Corpus.Path = "jobs.json"
	cfg.Profiles.Path = "profiles.json"
	cfg.withDefaults()
	return cfg
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaultConfig(t)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, sourceFile, cfg.Corpus.Source)
	assert.Equal(t, sourceNone, cfg.Interactions.Source)
	assert.Equal(t, retrieval.DefaultTopN, cfg.Retrieval.TopN)
	assert.Equal(t, filtering.DefaultRelaxation, cfg.Sieve.Relaxation)
	assert.Equal(t, 45*24*time.Hour, cfg.Sieve.MaxAge)
	assert.Equal(t, fusion.DefaultConfig(), cfg.Fusion)
	assert.Equal(t, 10, cfg.Pipeline.TopK)
	assert.Equal(t, providerLocal, cfg.AI.Embedder)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10, cfg.Evaluation.K)
}

func TestExplicitValuesSurviveDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.Corpus.Path = "jobs.json"
	cfg.Profiles.Path = "profiles.json"
	cfg.Sieve.Relaxation = []string{filtering.CategoryName}
	cfg.Fusion.SkillBonus = 0.1
	cfg.Pipeline.TopK = 3
	cfg.withDefaults()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"category"}, cfg.Sieve.Relaxation)
	assert.Equal(t, 0.1, cfg.Fusion.SkillBonus)
	assert.Equal(t, fusion.DefaultConfig().HalfLife, cfg.Fusion.HalfLife)
	assert.Equal(t, 3, cfg.Pipeline.TopK)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown corpus source", func(c *Config) { c.Corpus.Source = "ftp" }},
		{"file source without path", func(c *Config) { c.Corpus.Path = "" }},
		{"http source without url", func(c *Config) { c.Corpus.Source = sourceHTTP }},
		{"postgres without database url", func(c *Config) { c.Profiles.Source = sourcePostgres }},
		{"sqlite interactions without path", func(c *Config) { c.Interactions.Source = sourceSQLite }},
		{"unknown relaxation filter", func(c *Config) { c.Sieve.Relaxation = []string{"salary"} }},
		{"unknown embedder", func(c *Config) { c.AI.Embedder = "word2vec" }},
		{"openai reranker", func(c *Config) { c.AI.Reranker = providerOpenAI }},
		{"recent threshold above one", func(c *Config) { c.Fusion.RecentThreshold = 1.5 }},
		{"negative top k", func(c *Config) { c.Pipeline.TopK = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSieveConfigIsCopied(t *testing.T) {
	cfg := defaultConfig(t)
	sc := cfg.sieve()
	sc.Relaxation[0] = "changed"
	assert.Equal(t, filtering.SkillOverlapName, cfg.Sieve.Relaxation[0])

	_, err := filtering.NewSieve(cfg.sieve())
	assert.NoError(t, err)
}
