package filtering

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/job-recommender/internal/features"
)

// toggle carries the enable/disable state every filter shares.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

type categoryFilter struct{ toggle }

// NewCategory keeps postings in one of the profile's preferred categories.
// A profile without category preferences passes everything.
func NewCategory() Filter { return &categoryFilter{} }

func (f *categoryFilter) Name() string { return CategoryName }

func (f *categoryFilter) Validate(*Config) error { return nil }

func (f *categoryFilter) Apply(_ context.Context, req *Request, in []Candidate) ([]Candidate, Step, error) {
	wanted := req.Profile.Categories
	if len(wanted) == 0 {
		return in, Step{Initial: len(in), Left: len(in)}, nil
	}
	out, step := keep(in, func(c Candidate) bool {
		return slices.Contains(wanted, c.Features.Attributes.CategoryID)
	})
	return out, step, nil
}

func (f *categoryFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

type provinceFilter struct{ toggle }

// NewProvince keeps postings located in a preferred province. An empty
// preference set passes everything.
func NewProvince() Filter { return &provinceFilter{} }

func (f *provinceFilter) Name() string { return ProvinceName }

func (f *provinceFilter) Validate(*Config) error { return nil }

func (f *provinceFilter) Apply(_ context.Context, req *Request, in []Candidate) ([]Candidate, Step, error) {
	wanted := req.Profile.Provinces
	if len(wanted) == 0 {
		return in, Step{Initial: len(in), Left: len(in)}, nil
	}
	out, step := keep(in, func(c Candidate) bool {
		return slices.Contains(wanted, c.Features.Attributes.Province)
	})
	return out, step, nil
}

func (f *provinceFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

type experienceFilter struct{ toggle }

// NewExperience keeps postings whose minimum experience does not exceed the
// profile's band. A missing requirement is band zero.
func NewExperience() Filter { return &experienceFilter{} }

func (f *experienceFilter) Name() string { return ExperienceName }

func (f *experienceFilter) Validate(*Config) error { return nil }

func (f *experienceFilter) Apply(_ context.Context, req *Request, in []Candidate) ([]Candidate, Step, error) {
	band := req.Profile.Experience
	out, step := keep(in, func(c Candidate) bool {
		return c.Features.Attributes.Experience <= band
	})
	return out, step, nil
}

func (f *experienceFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

type skillOverlapFilter struct {
	toggle
	min int
}

// NewSkillOverlap keeps postings sharing at least the configured number of
// normalized skills with the profile. Profiles without skills pass everything.
func NewSkillOverlap() Filter { return &skillOverlapFilter{min: 1} }

func (f *skillOverlapFilter) Name() string { return SkillOverlapName }

func (f *skillOverlapFilter) Validate(cfg *Config) error {
	if cfg != nil {
		f.min = max(cfg.MinSkillOverlap, 0)
	}
	return nil
}

func (f *skillOverlapFilter) Apply(_ context.Context, req *Request, in []Candidate) ([]Candidate, Step, error) {
	if len(req.Profile.Skills) == 0 || f.min == 0 {
		return in, Step{Initial: len(in), Left: len(in)}, nil
	}
	out, step := keep(in, func(c Candidate) bool {
		return len(features.Overlap(req.Profile.Skills, c.Features.Attributes.Skills)) >= f.min
	})
	return out, step, nil
}

func (f *skillOverlapFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"minimum": strconv.Itoa(f.min)},
	}
}

type employmentFilter struct{ toggle }

// NewEmployment applies the time-commitment and location-type preferences.
// Each pair only filters when exactly one side is chosen; wanting both (or
// neither) shows every option.
func NewEmployment() Filter { return &employmentFilter{} }

func (f *employmentFilter) Name() string { return EmploymentName }

func (f *employmentFilter) Validate(*Config) error { return nil }

func (f *employmentFilter) Apply(_ context.Context, req *Request, in []Candidate) ([]Candidate, Step, error) {
	p := req.Preferences
	out, step := keep(in, func(c Candidate) bool {
		switch {
		case p.FullTime && !p.PartTime && !c.Job.FullTime:
			return false
		case p.PartTime && !p.FullTime && !c.Job.PartTime:
			return false
		case p.Remote && !p.Onsite && !c.Job.Remote:
			return false
		case p.Onsite && !p.Remote && c.Job.Remote:
			return false
		}
		return true
	})
	return out, step, nil
}

func (f *employmentFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

type freshnessFilter struct {
	toggle
	maxAge time.Duration
}

// NewFreshness drops inactive postings and postings older than the configured
// age. Postings without a timestamp are kept.
func NewFreshness() Filter { return &freshnessFilter{} }

func (f *freshnessFilter) Name() string { return FreshnessName }

func (f *freshnessFilter) Validate(cfg *Config) error {
	if cfg != nil {
		f.maxAge = cfg.MaxAge
	}
	return nil
}

func (f *freshnessFilter) Apply(_ context.Context, req *Request, in []Candidate) ([]Candidate, Step, error) {
	out, step := keep(in, func(c Candidate) bool {
		if !c.Job.Active {
			return false
		}
		if f.maxAge <= 0 || c.Job.PostedAt.IsZero() {
			return true
		}
		return c.Job.Age(req.Now) <= f.maxAge
	})
	return out, step, nil
}

func (f *freshnessFilter) Status() Status {
	details := map[string]string{}
	if f.maxAge > 0 {
		details["max_age"] = f.maxAge.String()
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

// Names lists the known filter names in application order.
func Names() []string {
	return []string{FreshnessName, CategoryName, ProvinceName, ExperienceName, EmploymentName, SkillOverlapName}
}

func knownName(name string) bool {
	return slices.Contains(Names(), strings.TrimSpace(name))
}
