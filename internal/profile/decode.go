package profile

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/job-recommender/internal/corpus"
)

// Issue reports a profile field that was defaulted while decoding.
type Issue struct {
	ProfileID string
	Field     string
	Value     string
}

type rawWork struct {
	Title       string `mapstructure:"job_title"`
	Company     string `mapstructure:"company_name"`
	Description string `mapstructure:"description"`
}

type rawProfile struct {
	ID             string    `mapstructure:"id"`
	UserID         string    `mapstructure:"user_id"`
	Title          string    `mapstructure:"professional_title"`
	Skills         any       `mapstructure:"skills"`
	Experience     any       `mapstructure:"experience_level"`
	FullTime       bool      `mapstructure:"wants_full_time"`
	PartTime       bool      `mapstructure:"wants_part_time"`
	Remote         bool      `mapstructure:"wants_remote"`
	Onsite         bool      `mapstructure:"wants_onsite"`
	Internship     bool      `mapstructure:"wants_internship"`
	Provinces      any       `mapstructure:"preferred_provinces"`
	Categories     any       `mapstructure:"preferred_categories"`
	Category       string    `mapstructure:"preferred_category_id"`
	ExpectedSalary any       `mapstructure:"expected_salary"`
	WorkHistory    []rawWork `mapstructure:"work_experiences"`
	UpdatedAt      any       `mapstructure:"updated_at"`
}

// Decode converts one loosely typed record (API body, JSON file entry) into a
// profile. Unparseable optional fields fall back to their defaults.
func Decode(record map[string]any) (*UserProfile, []Issue, error) {
	var raw rawProfile
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &raw,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create decoder: %w", err)
	}
	if err := decoder.Decode(record); err != nil {
		return nil, nil, fmt.Errorf("decode profile: %w", err)
	}

	id := strings.TrimSpace(raw.ID)
	if id == "" {
		id = strings.TrimSpace(raw.UserID)
	}
	if id == "" {
		return nil, nil, fmt.Errorf("profile id is required")
	}

	var issues []Issue
	flag := func(field string, v any) {
		issues = append(issues, Issue{ProfileID: id, Field: field, Value: fmt.Sprint(v)})
	}

	p := &UserProfile{
		ID:     id,
		Title:  strings.TrimSpace(raw.Title),
		Skills: corpus.SplitList(raw.Skills),
		Preferences: Preferences{
			FullTime:   raw.FullTime,
			PartTime:   raw.PartTime,
			Remote:     raw.Remote,
			Onsite:     raw.Onsite,
			Internship: raw.Internship,
		},
		Provinces:  corpus.SplitList(raw.Provinces),
		Categories: corpus.SplitList(raw.Categories),
	}
	if c := strings.TrimSpace(raw.Category); c != "" && len(p.Categories) == 0 {
		p.Categories = []string{c}
	}

	band, ok := corpus.ExperienceFrom(raw.Experience)
	if !ok {
		flag("experience_level", raw.Experience)
	}
	p.Experience = band

	if raw.ExpectedSalary != nil {
		salary, ok := corpus.SalaryFrom(raw.ExpectedSalary)
		switch {
		case ok && salary.Kind == corpus.SalaryNumeric:
			amount := salary.Amount
			p.ExpectedSalary = &amount
		case !ok:
			flag("expected_salary", raw.ExpectedSalary)
		}
	}

	updated, ok := corpus.TimeFrom(raw.UpdatedAt)
	if !ok {
		flag("updated_at", raw.UpdatedAt)
	}
	p.UpdatedAt = updated

	for _, w := range raw.WorkHistory {
		p.WorkHistory = append(p.WorkHistory, WorkExperience{
			Title:       strings.TrimSpace(w.Title),
			Company:     strings.TrimSpace(w.Company),
			Description: strings.TrimSpace(w.Description),
		})
	}

	return p, issues, nil
}
