// Package evaluation compares the bi-encoder baseline with the full
// cross-encoder pipeline on a fixed set of personas.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/job-recommender/internal/artifact"
	"github.com/spigell/job-recommender/internal/profile"
	"github.com/spigell/job-recommender/internal/recommend"
)

type Variant string

const (
	// VariantA ranks by bi-encoder similarity alone.
	VariantA Variant = "A"
	// VariantB adds the cross-encoder.
	VariantB Variant = "B"
)

var Variants = []Variant{VariantA, VariantB}

func (v Variant) Description() string {
	switch v {
	case VariantA:
		return "bi-encoder"
	case VariantB:
		return "bi-encoder + cross-encoder"
	default:
		return string(v)
	}
}

// Recommender is the part of recommend.Service the harness drives.
type Recommender interface {
	Recommend(ctx context.Context, snap *artifact.Snapshot, p *profile.UserProfile, opts recommend.Options) (recommend.Response, error)
}

type Config struct {
	K int `mapstructure:"k" validate:"gte=0"`
	// SampleSize evaluates a seeded random subset of personas; 0 uses all.
	SampleSize int    `mapstructure:"sample-size" validate:"gte=0"`
	Seed       uint64 `mapstructure:"seed"`
	Workers    int    `mapstructure:"workers" validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{K: 10, Seed: 42, Workers: 4}
}

type Harness struct {
	rec    Recommender
	cfg    Config
	logger *zap.Logger
}

func New(rec Recommender, cfg Config, logger *zap.Logger) *Harness {
	d := DefaultConfig()
	if cfg.K <= 0 {
		cfg.K = d.K
	}
	if cfg.Workers <= 0 {
		cfg.Workers = d.Workers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Harness{rec: rec, cfg: cfg, logger: logger}
}

// Run evaluates both variants for every persona against one snapshot.
// popularity feeds novelty and the serendipity baseline. Freshness and
// recency are judged at the snapshot's build time, so the report is
// deterministic for a fixed snapshot, persona set and seed.
func (h *Harness) Run(ctx context.Context, personas []Persona, snap *artifact.Snapshot, popularity map[string]float64) (*Report, error) {
	if snap == nil {
		return nil, errors.New("evaluation needs a built artifact")
	}
	selected := h.sample(personas)
	baseline := PopularityBaseline(popularity, h.cfg.K)

	reports := make([]PersonaReport, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.cfg.Workers)
	for i, persona := range selected {
		g.Go(func() error {
			pr, err := h.evaluate(gctx, snap, persona, popularity, baseline)
			if err != nil {
				return fmt.Errorf("persona %s: %w", persona.ID(), err)
			}
			reports[i] = pr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		K:        h.cfg.K,
		Version:  snap.Version(),
		Seed:     h.cfg.Seed,
		Personas: reports,
		Averages: make(map[Variant]Metrics, len(Variants)),
	}
	for _, v := range Variants {
		var sum Metrics
		for _, pr := range reports {
			sum = sum.add(pr.Variants[v].Metrics)
		}
		if len(reports) > 0 {
			sum = sum.scale(1 / float64(len(reports)))
		}
		report.Averages[v] = sum
	}
	report.Deltas = report.Averages[VariantB].Sub(report.Averages[VariantA])

	h.logger.Info("evaluation finished",
		zap.Int("personas", len(reports)),
		zap.Int("k", h.cfg.K),
		zap.Float64("delta_precision", report.Deltas.PrecisionAtK),
		zap.Float64("delta_recall", report.Deltas.RecallAtK),
	)
	return report, nil
}

func (h *Harness) evaluate(ctx context.Context, snap *artifact.Snapshot, persona Persona, popularity map[string]float64, baseline map[string]struct{}) (PersonaReport, error) {
	relevant := toSet(persona.Relevant)
	pr := PersonaReport{
		PersonaID: persona.ID(),
		Relevant:  len(relevant),
		Variants:  make(map[Variant]VariantResult, len(Variants)),
	}

	for _, v := range Variants {
		resp, err := h.rec.Recommend(ctx, snap, persona.Profile, recommend.Options{
			TopK:       h.cfg.K,
			SkipRerank: v == VariantA,
			Now:        snap.Manifest.BuiltAt,
		})
		if err != nil {
			return PersonaReport{}, err
		}

		ids := make([]string, len(resp.Results))
		vectors := make([][]float32, 0, len(resp.Results))
		for i, r := range resp.Results {
			ids[i] = r.JobID
			if vec, ok := snap.Dense.Vector(r.JobID); ok {
				vectors = append(vectors, vec)
			}
		}

		pr.Variants[v] = VariantResult{
			Mode:        resp.Mode,
			Recommended: ids,
			Metrics: Metrics{
				PrecisionAtK: PrecisionAtK(ids, relevant, h.cfg.K),
				RecallAtK:    RecallAtK(ids, relevant, h.cfg.K),
				Diversity:    Diversity(vectors),
				Novelty:      Novelty(ids, popularity),
				Serendipity:  Serendipity(ids, relevant, baseline),
			},
		}
		if v == VariantB && resp.Mode != recommend.ModeFull {
			h.logger.Warn("variant B did not run at full accuracy",
				zap.String("persona", persona.ID()), zap.String("mode", string(resp.Mode)))
		}
	}
	return pr, nil
}

// sample orders personas by ID and, when SampleSize is set, picks a seeded
// random subset of that size.
func (h *Harness) sample(personas []Persona) []Persona {
	out := slices.Clone(personas)
	out = slices.DeleteFunc(out, func(p Persona) bool { return p.Profile == nil })
	byID := func(a, b Persona) int { return strings.Compare(a.ID(), b.ID()) }
	slices.SortStableFunc(out, byID)

	if h.cfg.SampleSize <= 0 || h.cfg.SampleSize >= len(out) {
		return out
	}
	rng := rand.New(rand.NewPCG(h.cfg.Seed, h.cfg.Seed^0x9e3779b97f4a7c15))
	perm := rng.Perm(len(out))[:h.cfg.SampleSize]
	picked := make([]Persona, 0, len(perm))
	for _, i := range perm {
		picked = append(picked, out[i])
	}
	slices.SortStableFunc(picked, byID)
	return picked
}
