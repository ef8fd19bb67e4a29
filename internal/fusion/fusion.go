// Package fusion combines the primary relevance score with skill and recency
// boosts and explains the result.
package fusion

import (
	"math"
	"time"

	"github.com/spigell/job-recommender/internal/features"
)

// MinBase is the floor of the primary score. It keeps the boosts ordering
// candidates the scorer could not tell apart.
const MinBase = 1e-3

type Config struct {
	// SkillBonus is added to the multiplier per matched skill.
	SkillBonus float64 `mapstructure:"skill-bonus" validate:"gte=0"`
	// RecencyWeight scales the recency score inside the multiplier.
	RecencyWeight float64 `mapstructure:"recency-weight" validate:"gte=0"`
	// FreshWindow is the age below which recency saturates at 1.
	FreshWindow time.Duration `mapstructure:"fresh-window" validate:"gte=0"`
	// HalfLife is how long past FreshWindow recency takes to halve.
	HalfLife time.Duration `mapstructure:"half-life" validate:"gt=0"`
	// RecentThreshold marks a posting as recently posted.
	RecentThreshold float64 `mapstructure:"recent-threshold" validate:"gte=0,lte=1"`
}

func DefaultConfig() Config {
	return Config{
		SkillBonus:      0.05,
		RecencyWeight:   0.2,
		FreshWindow:     24 * time.Hour,
		HalfLife:        7 * 24 * time.Hour,
		RecentThreshold: 0.9,
	}
}

// Reason explains a fused score.
type Reason struct {
	MatchedSkills []string `json:"matched_skills"`
	RecencyScore  float64  `json:"recency_score"`
	Similarity    float64  `json:"similarity"`
	// CrossScore is absent when the cross-encoder did not run.
	CrossScore     *float64 `json:"cross_score,omitempty"`
	LexicalScore   *float64 `json:"lexical_score,omitempty"`
	SkillBoost     float64  `json:"skill_boost"`
	RecencyBoost   float64  `json:"recency_boost"`
	RecentlyPosted bool     `json:"recently_posted"`
	Degraded       bool     `json:"degraded,omitempty"`
}

// Input holds the signals of one (profile, posting) pair. Base is the primary
// score: the cross-encoder score when available, otherwise the best signal
// the pipeline still has.
type Input struct {
	Base          float64
	Similarity    float64
	CrossScore    *float64
	LexicalScore  *float64
	ProfileSkills []string
	JobSkills     []string
	PostedAt      time.Time
}

type Fuser struct {
	cfg Config
}

func New(cfg Config) *Fuser {
	d := DefaultConfig()
	if cfg.HalfLife <= 0 {
		cfg.HalfLife = d.HalfLife
	}
	if cfg.RecentThreshold <= 0 {
		cfg.RecentThreshold = d.RecentThreshold
	}
	return &Fuser{cfg: cfg}
}

func (f *Fuser) Config() Config { return f.cfg }

// Recency is 1 for postings younger than the fresh window and decays
// exponentially afterwards. Future timestamps count as brand new; a missing
// timestamp scores 0.
func (f *Fuser) Recency(postedAt, now time.Time) float64 {
	if postedAt.IsZero() {
		return 0
	}
	age := now.Sub(postedAt)
	if age <= f.cfg.FreshWindow {
		return 1
	}
	over := float64(age-f.cfg.FreshWindow) / float64(f.cfg.HalfLife)
	return math.Exp(-math.Ln2 * over)
}

// Fuse scales the base score by the boosts:
//
//	score = max(base, MinBase) * (1 + SkillBonus*|matched| + RecencyWeight*recency)
//
// The result is deterministic for fixed inputs and now.
func (f *Fuser) Fuse(in Input, now time.Time) (float64, Reason) {
	matched := features.Overlap(in.ProfileSkills, in.JobSkills)
	if matched == nil {
		matched = []string{}
	}
	recency := f.Recency(in.PostedAt, now)

	skillBoost := f.cfg.SkillBonus * float64(len(matched))
	recencyBoost := f.cfg.RecencyWeight * recency

	base := in.Base
	if math.IsNaN(base) || base < MinBase {
		base = MinBase
	}
	score := base * (1 + skillBoost + recencyBoost)

	return score, Reason{
		MatchedSkills:  matched,
		RecencyScore:   recency,
		Similarity:     in.Similarity,
		CrossScore:     in.CrossScore,
		LexicalScore:   in.LexicalScore,
		SkillBoost:     skillBoost,
		RecencyBoost:   recencyBoost,
		RecentlyPosted: recency >= f.cfg.RecentThreshold,
	}
}
