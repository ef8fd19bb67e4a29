package filtering

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// Result is the sieve output. Candidates is always a subset of the input, in
// input order. Relaxed names the filters that had to be dropped.
type Result struct {
	Candidates []Candidate
	Relaxed    []string
	Steps      []Step
}

// Sieve applies every filter and relaxes them in the configured order when
// the result is empty.
type Sieve struct {
	steps []Filter
	cfg   *Config
}

// NewSieve builds the standard filter chain. A nil config uses DefaultConfig.
func NewSieve(cfg *Config) (*Sieve, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Relaxation == nil {
		cfg.Relaxation = append([]string(nil), DefaultRelaxation...)
	}
	for _, name := range cfg.Relaxation {
		if !knownName(name) {
			return nil, fmt.Errorf("unknown filter %q in relaxation order", name)
		}
	}
	if cfg.MinSkillOverlap < 0 {
		return nil, fmt.Errorf("minimum skill overlap must not be negative")
	}

	steps := []Filter{
		NewFreshness(),
		NewCategory(),
		NewProvince(),
		NewExperience(),
		NewEmployment(),
		NewSkillOverlap(),
	}
	if cfg.MaxAge <= 0 {
		DisableByName(steps, FreshnessName, "max age is not set")
	}
	for _, step := range steps {
		if err := step.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	return &Sieve{steps: steps, cfg: cfg}, nil
}

func (s *Sieve) Describe() []Status { return Describe(s.steps) }

// Run sieves in. It only returns an empty result when in is empty.
func (s *Sieve) Run(ctx context.Context, req *Request, in []Candidate) (Result, error) {
	if len(in) == 0 {
		return Result{}, nil
	}
	log := req.Logger
	if log == nil {
		log = zap.NewNop()
	}

	skip := make(map[string]bool)
	out, steps, err := Run(ctx, req, s.steps, in, skip)
	if err != nil {
		return Result{}, err
	}

	var relaxed []string
	for _, name := range s.order() {
		if len(out) > 0 {
			break
		}
		// Stale postings come back only when age was what emptied the set.
		if name == FreshnessName && !slices.Contains(s.cfg.Relaxation, name) && !droppedAny(steps, name) {
			continue
		}
		skip[name] = true
		relaxed = append(relaxed, name)
		log.Info("relaxing sieve", zap.String("dropped_filter", name))

		out, steps, err = Run(ctx, req, s.steps, in, skip)
		if err != nil {
			return Result{}, err
		}
	}

	if len(out) == 0 {
		for _, step := range s.steps {
			if step.IsEnabled() && !skip[step.Name()] {
				relaxed = append(relaxed, step.Name())
			}
		}
		log.Info("relaxing sieve", zap.Strings("dropped_filters", relaxed), zap.String("reason", "relaxation order exhausted"))
		out, steps = in, nil
	}

	return Result{Candidates: out, Relaxed: relaxed, Steps: steps}, nil
}

// order is the relaxation order. Freshness goes first unless the configured
// order places it explicitly.
func (s *Sieve) order() []string {
	if slices.Contains(s.cfg.Relaxation, FreshnessName) {
		return s.cfg.Relaxation
	}
	return append([]string{FreshnessName}, s.cfg.Relaxation...)
}

func droppedAny(steps []Step, name string) bool {
	for _, st := range steps {
		if st.Name == name {
			return st.Dropped > 0
		}
	}
	return false
}
