package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/ai/local"
	"github.com/spigell/job-recommender/internal/artifact"
	"github.com/spigell/job-recommender/internal/corpus"
	"github.com/spigell/job-recommender/internal/dense"
	"github.com/spigell/job-recommender/internal/features"
	"github.com/spigell/job-recommender/internal/interactions"
	"github.com/spigell/job-recommender/internal/profile"
	"github.com/spigell/job-recommender/internal/recommend"
	"github.com/spigell/job-recommender/internal/rerank"
	"github.com/spigell/job-recommender/internal/retrieval"
)

func TestPrecisionRecall(t *testing.T) {
	relevant := toSet([]string{"a", "c", "x"})
	rec := []string{"a", "b", "c", "d"}

	assert.InDelta(t, 0.5, PrecisionAtK(rec, relevant, 4), 1e-9)
	assert.InDelta(t, 2.0/3.0, RecallAtK(rec, relevant, 4), 1e-9)
	assert.InDelta(t, 0.5, PrecisionAtK(rec, relevant, 2), 1e-9)
	assert.InDelta(t, 0.2, PrecisionAtK(rec[:1], relevant, 5), 1e-9)
	assert.Zero(t, RecallAtK(rec, nil, 4))
	assert.Zero(t, PrecisionAtK(rec, relevant, 0))
}

func TestDiversity(t *testing.T) {
	assert.Equal(t, 1.0, Diversity(nil))
	assert.Equal(t, 1.0, Diversity([][]float32{{1, 0}}))
	assert.InDelta(t, 0, Diversity([][]float32{{1, 0}, {2, 0}}), 1e-9)
	assert.InDelta(t, 1, Diversity([][]float32{{1, 0}, {0, 1}}), 1e-9)
}

func TestNoveltyConstants(t *testing.T) {
	pop := map[string]float64{"popular": 1, "niche": 0.25, "never": 0}

	assert.InDelta(t, 0, Novelty([]string{"popular"}, pop), 1e-9)
	assert.InDelta(t, 2, Novelty([]string{"niche"}, pop), 1e-9)
	assert.InDelta(t, -math.Log2(UnknownPopularity), Novelty([]string{"unknown"}, pop), 1e-9)
	assert.InDelta(t, -math.Log2(MinPopularity), Novelty([]string{"never"}, pop), 1e-9)
	assert.Zero(t, Novelty(nil, pop))
}

func TestSerendipity(t *testing.T) {
	baseline := PopularityBaseline(map[string]float64{"a": 1, "b": 0.5, "c": 0.5, "d": 0.1}, 2)
	assert.Equal(t, toSet([]string{"a", "b"}), baseline)

	relevant := toSet([]string{"a", "c", "d"})
	// a is relevant but expected; c and d are relevant and unexpected.
	assert.InDelta(t, 0.5, Serendipity([]string{"a", "b", "c", "d"}, relevant, baseline), 1e-9)
	assert.Zero(t, Serendipity(nil, relevant, baseline))
}

func TestSkillPopularity(t *testing.T) {
	jobs := []features.JobFeatures{
		{ID: "j1", Attributes: features.Attributes{Skills: []string{"go"}}},
		{ID: "j2", Attributes: features.Attributes{Skills: []string{"go", "python"}}},
		{ID: "j3", Attributes: features.Attributes{Skills: []string{"cobol"}}},
	}
	profiles := []features.ProfileFeatures{
		{Skills: []string{"go"}},
		{Skills: []string{"python"}},
	}
	assert.Equal(t, map[string]float64{"j1": 0.5, "j2": 1}, SkillPopularity(jobs, profiles))
}

type scriptedRecommender struct {
	lists map[bool][]string
	err   error
}

func (s scriptedRecommender) Recommend(_ context.Context, _ *artifact.Snapshot, _ *profile.UserProfile, opts recommend.Options) (recommend.Response, error) {
	if s.err != nil {
		return recommend.Response{}, s.err
	}
	resp := recommend.Response{Mode: recommend.ModeFull}
	for _, id := range s.lists[opts.SkipRerank] {
		resp.Results = append(resp.Results, recommend.Result{JobID: id})
	}
	return resp, nil
}

func emptySnapshot() *artifact.Snapshot {
	ix, _ := dense.Build(nil, nil, "stub", nil)
	return &artifact.Snapshot{Manifest: artifact.Manifest{Version: "v1"}, Dense: ix}
}

func TestRunComputesDeltas(t *testing.T) {
	rec := scriptedRecommender{lists: map[bool][]string{
		true:  {"x", "y"},
		false: {"a", "y"},
	}}
	h := New(rec, Config{K: 2}, zap.NewNop())
	personas := []Persona{
		{Profile: &profile.UserProfile{ID: "p2"}, Relevant: []string{"a"}},
		{Profile: &profile.UserProfile{ID: "p1"}, Relevant: []string{"a", "b"}},
	}

	report, err := h.Run(context.Background(), personas, emptySnapshot(), nil)
	require.NoError(t, err)

	require.Len(t, report.Personas, 2)
	assert.Equal(t, "p1", report.Personas[0].PersonaID)
	assert.Zero(t, report.Averages[VariantA].PrecisionAtK)
	assert.InDelta(t, 0.5, report.Averages[VariantB].PrecisionAtK, 1e-9)
	assert.InDelta(t, 0.5, report.Deltas.PrecisionAtK, 1e-9)
	assert.InDelta(t, 0.75, report.Deltas.RecallAtK, 1e-9)
	assert.Equal(t, []string{"a", "y"}, report.Personas[0].Variants[VariantB].Recommended)

	var buf bytes.Buffer
	require.NoError(t, report.WriteText(&buf))
	assert.Contains(t, buf.String(), "precision@2")
	assert.Contains(t, buf.String(), "+0.5000")

	buf.Reset()
	require.NoError(t, report.WriteJSON(&buf))
	var decoded Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, report.Deltas, decoded.Deltas)
}

func TestRunPropagatesErrors(t *testing.T) {
	h := New(scriptedRecommender{err: errors.New("boom")}, Config{}, nil)
	_, err := h.Run(context.Background(), []Persona{{Profile: &profile.UserProfile{ID: "p"}}}, emptySnapshot(), nil)
	assert.ErrorContains(t, err, "persona p")

	_, err = h.Run(context.Background(), nil, nil, nil)
	assert.Error(t, err)
}

func TestSamplingIsSeeded(t *testing.T) {
	var personas []Persona
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		personas = append(personas, Persona{Profile: &profile.UserProfile{ID: id}})
	}
	h1 := New(nil, Config{SampleSize: 3, Seed: 7}, nil)
	h2 := New(nil, Config{SampleSize: 3, Seed: 7}, nil)

	first, second := h1.sample(personas), h2.sample(personas)
	require.Len(t, first, 3)
	assert.Equal(t, first, second)
	assert.True(t, first[0].ID() < first[1].ID() && first[1].ID() < first[2].ID())

	assert.Len(t, New(nil, Config{}, nil).sample(personas), len(personas))
}

func TestPersonasFromLog(t *testing.T) {
	log := []interactions.Interaction{
		{UserID: "u1", JobID: "j2", Event: interactions.EventClick},
		{UserID: "u1", JobID: "j1", Event: interactions.EventClick},
		{UserID: "u1", JobID: "j3", Event: interactions.EventView},
		{UserID: "u2", JobID: "j3", Event: interactions.EventView},
	}
	profiles := []*profile.UserProfile{{ID: "u1"}, {ID: "u2"}}

	got := PersonasFromLog(profiles, log, false)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"j1", "j2"}, got[0].Relevant)

	assert.Len(t, PersonasFromLog(profiles, log, true), 2)
}

func TestLoadPersonas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.json")
	data := `[{"profile": {"id": "p1", "professional_title": "Go developer", "skills": "go, docker"}, "relevant": ["j1", "j2"]}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	personas, err := LoadPersonas(path)
	require.NoError(t, err)
	require.Len(t, personas, 1)
	assert.Equal(t, "p1", personas[0].ID())
	assert.Equal(t, []string{"j1", "j2"}, personas[0].Relevant)
}

type memSource struct{ jobs []*corpus.JobPosting }

func (s memSource) Name() string { return "memory" }

func (s memSource) Load(context.Context) (*corpus.Corpus, []corpus.Issue, error) {
	return corpus.New(s.jobs), nil, nil
}

func TestHarnessAgainstPipeline(t *testing.T) {
	now := time.Now()
	jobs := []*corpus.JobPosting{
		{ID: "j1", Title: "Go backend developer", Skills: []string{"go"}, Description: "Go services", PostedAt: now, Active: true},
		{ID: "j2", Title: "Python data engineer", Skills: []string{"python"}, Description: "Python pipelines", PostedAt: now, Active: true},
		{ID: "j3", Title: "Go platform engineer", Skills: []string{"go", "kubernetes"}, Description: "Go and k8s", PostedAt: now, Active: true},
	}
	snap, err := artifact.NewBuilder(artifact.BuilderDeps{
		Source:   memSource{jobs: jobs},
		Embedder: local.NewHashEmbedder(64),
	}, artifact.BuildOptions{}).Rebuild(context.Background())
	require.NoError(t, err)

	svc, err := recommend.New(recommend.Deps{
		Registry:  artifact.NewRegistry(),
		Retriever: retrieval.New(local.NewHashEmbedder(64), 0, nil),
		Reranker:  rerank.New(local.NewOverlapScorer(), rerank.Options{}, nil),
	}, recommend.Config{})
	require.NoError(t, err)

	personas := []Persona{{
		Profile:  &profile.UserProfile{ID: "gopher", Title: "Go developer", Skills: []string{"golang"}},
		Relevant: []string{"j1", "j3"},
	}}
	report, err := New(svc, Config{K: 2}, nil).Run(context.Background(), personas, snap, map[string]float64{"j1": 1})
	require.NoError(t, err)

	for _, v := range Variants {
		res := report.Personas[0].Variants[v]
		assert.Equal(t, recommend.ModeFull, res.Mode)
		assert.ElementsMatch(t, []string{"j1", "j3"}, res.Recommended)
		assert.InDelta(t, 1, res.Metrics.PrecisionAtK, 1e-9)
		assert.InDelta(t, 1, res.Metrics.RecallAtK, 1e-9)
	}
	assert.Equal(t, snap.Version(), report.Version)
}

func TestReportDoesNotDependOnWallClock(t *testing.T) {
	builtAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	jobs := []*corpus.JobPosting{
		{ID: "j1", Title: "Go backend developer", Skills: []string{"go"}, Description: "Go services", PostedAt: builtAt.Add(-time.Hour), Active: true},
		{ID: "j2", Title: "Python data engineer", Skills: []string{"python"}, Description: "Python pipelines", PostedAt: builtAt.Add(-time.Hour), Active: true},
		{ID: "j3", Title: "Go platform engineer", Skills: []string{"go", "kubernetes"}, Description: "Go and k8s", PostedAt: builtAt.Add(-20 * 24 * time.Hour), Active: true},
		{ID: "j4", Title: "Go tooling engineer", Skills: []string{"go"}, Description: "Go tooling", PostedAt: builtAt.Add(-50 * 24 * time.Hour), Active: true},
	}
	snap, err := artifact.NewBuilder(artifact.BuilderDeps{
		Source:   memSource{jobs: jobs},
		Embedder: local.NewHashEmbedder(64),
	}, artifact.BuildOptions{}).Rebuild(context.Background())
	require.NoError(t, err)
	snap.Manifest.BuiltAt = builtAt

	svc, err := recommend.New(recommend.Deps{
		Registry:  artifact.NewRegistry(),
		Retriever: retrieval.New(local.NewHashEmbedder(64), 0, nil),
		Reranker:  rerank.New(local.NewOverlapScorer(), rerank.Options{}, nil),
	}, recommend.Config{})
	require.NoError(t, err)

	personas := []Persona{{
		Profile:  &profile.UserProfile{ID: "gopher", Title: "Go developer", Skills: []string{"golang"}},
		Relevant: []string{"j1", "j3"},
	}}
	h := New(svc, Config{K: 3}, nil)

	svc.SetClock(func() time.Time { return builtAt })
	first, err := h.Run(context.Background(), personas, snap, nil)
	require.NoError(t, err)

	svc.SetClock(func() time.Time { return builtAt.Add(90 * 24 * time.Hour) })
	second, err := h.Run(context.Background(), personas, snap, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	for _, v := range Variants {
		assert.NotContains(t, second.Personas[0].Variants[v].Recommended, "j4")
	}
}
