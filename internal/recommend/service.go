// Package recommend runs the two serving paths over the published artifact:
// the real-time lexical ranking and the offline pipeline
// sieve -> retrieve -> rerank -> fuse, with its fallbacks.
package recommend

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/artifact"
	"github.com/spigell/job-recommender/internal/features"
	"github.com/spigell/job-recommender/internal/filtering"
	"github.com/spigell/job-recommender/internal/fusion"
	"github.com/spigell/job-recommender/internal/logger"
	"github.com/spigell/job-recommender/internal/metrics"
	"github.com/spigell/job-recommender/internal/profile"
	"github.com/spigell/job-recommender/internal/relevance"
	"github.com/spigell/job-recommender/internal/rerank"
	"github.com/spigell/job-recommender/internal/retrieval"
)

type Mode string

const (
	ModeFull     Mode = "full-accuracy"
	ModeDegraded Mode = "degraded"
	ModeLexical  Mode = "lexical-only"
)

const (
	StageSieve    = "sieve"
	StageRetrieve = "retrieve"
	StageRerank   = "rerank"
	StageFuse     = "fuse"
	StageLexical  = "lexical"
	StageTotal    = "total"
)

type Config struct {
	TopK int `mapstructure:"top-k" validate:"gte=0"`
	// Deadline bounds a whole recommendation call.
	Deadline time.Duration `mapstructure:"deadline" validate:"gte=0"`
	// EmbedBudget bounds the profile embedding.
	EmbedBudget time.Duration `mapstructure:"embed-budget" validate:"gte=0"`
	// RerankBudget bounds the cross-encoder.
	RerankBudget time.Duration `mapstructure:"rerank-budget" validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{
		TopK:         10,
		Deadline:     60 * time.Second,
		EmbedBudget:  10 * time.Second,
		RerankBudget: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TopK <= 0 {
		c.TopK = d.TopK
	}
	if c.Deadline <= 0 {
		c.Deadline = d.Deadline
	}
	if c.EmbedBudget <= 0 {
		c.EmbedBudget = d.EmbedBudget
	}
	if c.RerankBudget <= 0 {
		c.RerankBudget = d.RerankBudget
	}
	return c
}

type Result struct {
	JobID  string        `json:"job_id"`
	Score  float64       `json:"score"`
	Reason fusion.Reason `json:"reason"`
}

type Response struct {
	ProfileID string   `json:"profile_id,omitempty"`
	Mode      Mode     `json:"mode"`
	Version   string   `json:"version,omitempty"`
	Results   []Result `json:"results"`
	// Relaxed lists the sieve filters dropped to find candidates.
	Relaxed []string `json:"relaxed,omitempty"`
	Notes   []string `json:"notes,omitempty"`
}

// Options tune one call. SkipRerank ranks by bi-encoder similarity alone; it
// is how the evaluation harness runs its baseline variant. Now pins the
// reference time for freshness and recency; zero uses the service clock.
type Options struct {
	TopK       int
	SkipRerank bool
	Now        time.Time
}

type Deps struct {
	Registry  *artifact.Registry
	Extractor *features.Extractor
	Sieve     *filtering.Sieve
	Retriever *retrieval.Retriever
	Reranker  *rerank.Reranker
	Fuser     *fusion.Fuser
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

type Service struct {
	registry  *artifact.Registry
	extractor *features.Extractor
	sieve     *filtering.Sieve
	retriever *retrieval.Retriever
	reranker  *rerank.Reranker
	fuser     *fusion.Fuser
	metrics   *metrics.Metrics
	logger    *zap.Logger
	cfg       Config
	now       func() time.Time
}

func New(deps Deps, cfg Config) (*Service, error) {
	if deps.Registry == nil {
		return nil, errors.New("recommend: registry is required")
	}
	if deps.Retriever == nil || deps.Reranker == nil {
		return nil, errors.New("recommend: retriever and reranker are required")
	}
	if deps.Extractor == nil {
		deps.Extractor = features.NewExtractor(nil)
	}
	if deps.Sieve == nil {
		sieve, err := filtering.NewSieve(nil)
		if err != nil {
			return nil, err
		}
		deps.Sieve = sieve
	}
	if deps.Fuser == nil {
		deps.Fuser = fusion.New(fusion.DefaultConfig())
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Service{
		registry:  deps.Registry,
		extractor: deps.Extractor,
		sieve:     deps.Sieve,
		retriever: deps.Retriever,
		reranker:  deps.Reranker,
		fuser:     deps.Fuser,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}, nil
}

// SetClock replaces the time source used for freshness and recency.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) Registry() *artifact.Registry { return s.registry }

// GetRelevanceRanking returns every posting of the current artifact ordered
// by lexical similarity to the profile.
func (s *Service) GetRelevanceRanking(ctx context.Context, p *profile.UserProfile) ([]string, error) {
	ranked, err := s.rankLexical(ctx, p)
	if err != nil {
		return nil, err
	}
	return relevance.IDs(ranked), nil
}

// RelevancePage is the browse listing: filtered, ranked and paginated.
func (s *Service) RelevancePage(ctx context.Context, p *profile.UserProfile, q relevance.PageQuery) (relevance.Page, error) {
	if err := ctx.Err(); err != nil {
		return relevance.Page{}, err
	}
	if p == nil {
		return relevance.Page{}, fmt.Errorf("%w: no profile", ErrInputData)
	}
	snap := s.registry.Current()
	if snap == nil {
		return relevance.Page{Items: []relevance.Ranked{}, Page: 1}, nil
	}
	pf := s.extractor.Profile(p)
	return relevance.RankPage(snap.Lexical, snap.Corpus.Items, snap.Lexical.Vectorize(pf.Text), q), nil
}

func (s *Service) rankLexical(ctx context.Context, p *profile.UserProfile) ([]relevance.Ranked, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: no profile", ErrInputData)
	}
	snap := s.registry.Current()
	if snap == nil || snap.Len() == 0 {
		return []relevance.Ranked{}, nil
	}

	start := time.Now()
	pf := s.extractor.Profile(p)
	if len(pf.Defaulted) > 0 {
		s.logger.Debug("profile fields defaulted", zap.String(logger.FieldProfile, p.ID), zap.Strings("fields", pf.Defaulted))
	}
	ranked := relevance.Rank(snap.Lexical, snap.Lexical.Vectorize(pf.Text))
	s.metrics.ObserveStage(StageLexical, time.Since(start))
	return ranked, nil
}

// GetRecommendations runs the offline pipeline against the current artifact.
func (s *Service) GetRecommendations(ctx context.Context, p *profile.UserProfile, topK int) (Response, error) {
	return s.Recommend(ctx, s.registry.Current(), p, Options{TopK: topK})
}

// Recommend runs the offline pipeline against snap. Model failures never
// fail the call: a failing cross-encoder degrades to the bi-encoder order
// and a failing embedder falls back to lexical ranking of the sieved set.
// Errors are returned only for a nil profile or a cancelled context.
func (s *Service) Recommend(ctx context.Context, snap *artifact.Snapshot, p *profile.UserProfile, opts Options) (Response, error) {
	if p == nil {
		return Response{}, fmt.Errorf("%w: no profile", ErrInputData)
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Deadline)
	defer cancel()

	start := time.Now()
	resp := Response{ProfileID: p.ID, Mode: ModeFull, Results: []Result{}}
	if snap == nil {
		resp.Notes = append(resp.Notes, "no artifact published")
		s.finish(&resp, start)
		return resp, nil
	}
	resp.Version = snap.Version()
	log := logger.WithRequest(s.logger, p.ID, snap.Version())

	if snap.Len() == 0 {
		log.Info("corpus is empty, nothing to recommend")
		s.finish(&resp, start)
		return resp, nil
	}

	pf := s.extractor.Profile(p)
	if len(pf.Defaulted) > 0 {
		err := &StageError{Stage: "extract", Kind: ErrInputData, Err: fmt.Errorf("defaulted %s", strings.Join(pf.Defaulted, ", "))}
		log.Warn("profile fields defaulted", zap.Strings("fields", pf.Defaulted))
		resp.Notes = append(resp.Notes, err.Error())
	}
	now := opts.Now
	if now.IsZero() {
		now = s.now()
	}

	stageStart := time.Now()
	sieved, err := s.sieve.Run(ctx, &filtering.Request{
		Profile:     pf,
		Preferences: p.Preferences,
		Now:         now,
		Logger:      log,
	}, snap.Candidates())
	if err != nil {
		return Response{}, fmt.Errorf("sieve: %w", err)
	}
	s.metrics.ObserveStage(StageSieve, time.Since(stageStart))
	if len(sieved.Relaxed) > 0 {
		s.metrics.CountRelaxation(sieved.Relaxed...)
		resp.Relaxed = sieved.Relaxed
		resp.Notes = append(resp.Notes, "sieve relaxed: "+strings.Join(sieved.Relaxed, ", "))
	}
	if len(sieved.Candidates) == 0 {
		resp.Notes = append(resp.Notes, ErrEmptyCandidateSet.Error())
		s.finish(&resp, start)
		return resp, nil
	}

	stageStart = time.Now()
	retrieved, err := s.retrieve(ctx, snap, pf.Text, sieved.Candidates)
	s.metrics.ObserveStage(StageRetrieve, time.Since(stageStart))
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, context.DeadlineExceeded) {
			return Response{}, ctx.Err()
		}
		serr := stageError(StageRetrieve, err)
		log.Warn("dense retrieval failed, falling back to lexical ranking", zap.Error(serr))
		resp.Mode = ModeLexical
		resp.Notes = append(resp.Notes, serr.Error())
		resp.Results = s.lexicalOnly(snap, pf, sieved.Candidates, now, topK)
		s.finish(&resp, start)
		return resp, nil
	}

	if opts.SkipRerank {
		resp.Results = s.fuseRetrieved(pf, retrieved, now, topK)
		s.finish(&resp, start)
		return resp, nil
	}

	stageStart = time.Now()
	rctx, rcancel := context.WithTimeout(ctx, s.cfg.RerankBudget)
	reranked, err := s.reranker.Rerank(rctx, pf.Text, retrieved)
	rcancel()
	s.metrics.ObserveStage(StageRerank, time.Since(stageStart))
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		serr := stageError(StageRerank, err)
		log.Warn("cross-encoder failed, serving bi-encoder order", zap.Error(serr))
		resp.Mode = ModeDegraded
		resp.Notes = append(resp.Notes, serr.Error())
		resp.Results = s.degraded(pf, retrieved, now, topK)
		s.finish(&resp, start)
		return resp, nil
	}

	stageStart = time.Now()
	resp.Results = s.fuseReranked(pf, reranked, now, topK)
	s.metrics.ObserveStage(StageFuse, time.Since(stageStart))
	s.finish(&resp, start)
	return resp, nil
}

func (s *Service) retrieve(ctx context.Context, snap *artifact.Snapshot, text string, pool []filtering.Candidate) ([]retrieval.Candidate, error) {
	ectx, cancel := context.WithTimeout(ctx, s.cfg.EmbedBudget)
	defer cancel()

	vec, err := s.retriever.EmbedProfile(ectx, text)
	if err != nil {
		return nil, err
	}
	return s.retriever.Rank(snap.Dense, vec, pool)
}

func (s *Service) fuseReranked(pf features.ProfileFeatures, in []rerank.Candidate, now time.Time, topK int) []Result {
	out := make([]Result, 0, len(in))
	for _, c := range in {
		cross := c.CrossScore
		score, reason := s.fuser.Fuse(fusion.Input{
			Base:          cross,
			Similarity:    c.Similarity,
			CrossScore:    &cross,
			ProfileSkills: pf.Skills,
			JobSkills:     c.Features.Attributes.Skills,
			PostedAt:      c.Job.PostedAt,
		}, now)
		out = append(out, Result{JobID: c.Job.ID, Score: score, Reason: reason})
	}
	return top(sortResults(out), topK)
}

func (s *Service) fuseRetrieved(pf features.ProfileFeatures, in []retrieval.Candidate, now time.Time, topK int) []Result {
	out := make([]Result, 0, len(in))
	for _, c := range in {
		score, reason := s.fuser.Fuse(fusion.Input{
			Base:          c.Similarity,
			Similarity:    c.Similarity,
			ProfileSkills: pf.Skills,
			JobSkills:     c.Features.Attributes.Skills,
			PostedAt:      c.Job.PostedAt,
		}, now)
		out = append(out, Result{JobID: c.Job.ID, Score: score, Reason: reason})
	}
	return top(sortResults(out), topK)
}

// degraded keeps the bi-encoder order and scores by similarity. Boosts are
// explained but not applied.
func (s *Service) degraded(pf features.ProfileFeatures, in []retrieval.Candidate, now time.Time, topK int) []Result {
	out := make([]Result, 0, len(in))
	for _, c := range in {
		_, reason := s.fuser.Fuse(fusion.Input{
			Base:          c.Similarity,
			Similarity:    c.Similarity,
			ProfileSkills: pf.Skills,
			JobSkills:     c.Features.Attributes.Skills,
			PostedAt:      c.Job.PostedAt,
		}, now)
		reason.SkillBoost, reason.RecencyBoost = 0, 0
		reason.Degraded = true
		out = append(out, Result{JobID: c.Job.ID, Score: c.Similarity, Reason: reason})
	}
	return top(out, topK)
}

func (s *Service) lexicalOnly(snap *artifact.Snapshot, pf features.ProfileFeatures, pool []filtering.Candidate, now time.Time, topK int) []Result {
	positions := make([]int, len(pool))
	byPos := make(map[int]filtering.Candidate, len(pool))
	for i, c := range pool {
		positions[i] = c.Position
		byPos[c.Position] = c
	}

	ranked := relevance.RankPositions(snap.Lexical, snap.Lexical.Vectorize(pf.Text), positions)
	ranked = ranked[:min(len(ranked), s.retriever.TopN())]

	out := make([]Result, 0, len(ranked))
	for _, r := range ranked {
		c := byPos[r.Position]
		lex := r.Score
		score, reason := s.fuser.Fuse(fusion.Input{
			Base:          lex,
			LexicalScore:  &lex,
			ProfileSkills: pf.Skills,
			JobSkills:     c.Features.Attributes.Skills,
			PostedAt:      c.Job.PostedAt,
		}, now)
		reason.Degraded = true
		out = append(out, Result{JobID: r.JobID, Score: score, Reason: reason})
	}
	return top(sortResults(out), topK)
}

func (s *Service) finish(resp *Response, start time.Time) {
	s.metrics.ObserveStage(StageTotal, time.Since(start))
	s.metrics.CountResponse(string(resp.Mode))
	s.logger.Info("recommendations served",
		zap.String(logger.FieldProfile, resp.ProfileID),
		zap.String(logger.FieldVersion, resp.Version),
		zap.String(logger.FieldMode, string(resp.Mode)),
		zap.Int("results", len(resp.Results)),
		zap.Duration("took", time.Since(start)),
	)
}

func sortResults(rs []Result) []Result {
	slices.SortStableFunc(rs, func(a, b Result) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.JobID, b.JobID)
	})
	return rs
}

func top(rs []Result, k int) []Result {
	if k > 0 && len(rs) > k {
		return rs[:k]
	}
	return rs
}
