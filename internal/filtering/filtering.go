// Package filtering implements the candidate sieve: hard structural filters
// applied before any expensive scoring, with a fixed relaxation policy when
// they leave nothing.
package filtering

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/corpus"
	"github.com/spigell/job-recommender/internal/features"
	"github.com/spigell/job-recommender/internal/profile"
)

const (
	CategoryName     = "category"
	ProvinceName     = "province"
	ExperienceName   = "experience"
	SkillOverlapName = "skill_overlap"
	EmploymentName   = "employment"
	FreshnessName    = "freshness"
)

// Filter represents a single filtering step applied to candidates. Filters
// keep no per-request state; Apply must not modify its input slice.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, req *Request, in []Candidate) ([]Candidate, Step, error)
}

// Candidate is one posting of the current snapshot. Position is its row in
// the snapshot's indexes.
type Candidate struct {
	Position int
	Job      *corpus.JobPosting
	Features *features.JobFeatures
}

// Request carries everything a filter may read about the profile.
type Request struct {
	Profile     features.ProfileFeatures
	Preferences profile.Preferences
	Now         time.Time
	Logger      *zap.Logger
}

// Step describes the result of executing a filtering step.
type Step struct {
	Name    string
	Initial int
	Dropped int
	Left    int
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	// MinSkillOverlap applies only to profiles that declare skills.
	MinSkillOverlap int
	// MaxAge drops postings older than this. Zero disables the check.
	MaxAge time.Duration
	// Relaxation lists the filters dropped one by one when nothing passes.
	Relaxation []string
}

// DefaultRelaxation drops the most informative signal first: skills, then
// geography, then category.
var DefaultRelaxation = []string{SkillOverlapName, ProvinceName, CategoryName}

func DefaultConfig() *Config {
	return &Config{
		MinSkillOverlap: 1,
		MaxAge:          45 * 24 * time.Hour,
		Relaxation:      append([]string(nil), DefaultRelaxation...),
	}
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the enabled filters sequentially, skipping those named in
// skip, and returns the surviving candidates with one Step per applied filter.
func Run(ctx context.Context, req *Request, steps []Filter, in []Candidate, skip map[string]bool) ([]Candidate, []Step, error) {
	log := req.Logger
	if log == nil {
		log = zap.NewNop()
	}

	infos := make([]Step, 0, len(steps))
	for _, step := range steps {
		if !step.IsEnabled() || skip[step.Name()] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		next, info, err := step.Apply(ctx, req, in)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
		info.Name = step.Name()

		log.Debug("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		infos = append(infos, info)
		in = next
	}

	return in, infos, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// keep is the shared body of every predicate filter.
func keep(in []Candidate, pred func(Candidate) bool) ([]Candidate, Step) {
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		if pred(c) {
			out = append(out, c)
		}
	}
	return out, Step{Initial: len(in), Dropped: len(in) - len(out), Left: len(out)}
}
