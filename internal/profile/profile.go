package profile

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spigell/job-recommender/internal/corpus"
)

var ErrNotFound = errors.New("profile not found")

// UserProfile is the structured self-description of a job seeker.
type UserProfile struct {
	ID             string                `json:"id"`
	Title          string                `json:"professional_title"`
	Skills         []string              `json:"skills"`
	Experience     corpus.ExperienceBand `json:"experience_level"`
	Preferences    Preferences           `json:"preferences"`
	Provinces      []string              `json:"preferred_provinces,omitempty"`
	Categories     []string              `json:"preferred_categories,omitempty"`
	ExpectedSalary *int64                `json:"expected_salary,omitempty"`
	WorkHistory    []WorkExperience      `json:"work_experiences,omitempty"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// Preferences are the employment flags a seeker ticked. Pairs where both or
// neither flag is set express no preference.
type Preferences struct {
	FullTime   bool `json:"wants_full_time"`
	PartTime   bool `json:"wants_part_time"`
	Remote     bool `json:"wants_remote"`
	Onsite     bool `json:"wants_onsite"`
	Internship bool `json:"wants_internship"`
}

type WorkExperience struct {
	Title       string `json:"job_title"`
	Company     string `json:"company_name"`
	Description string `json:"description,omitempty"`
}

// Text builds the free text that represents the profile to the lexical and
// dense models: title, skills, then past work descriptions.
func (p *UserProfile) Text() string {
	var parts []string
	if title := strings.TrimSpace(p.Title); title != "" {
		parts = append(parts, title)
	}
	if len(p.Skills) > 0 {
		parts = append(parts, "Skills include: "+strings.Join(p.Skills, ", "))
	}

	var history []string
	for _, w := range p.WorkHistory {
		if d := strings.TrimSpace(w.Description); d != "" {
			history = append(history, d)
		}
	}
	if len(history) > 0 {
		parts = append(parts, "Past work experience: "+strings.Join(history, " "))
	}

	return strings.Join(parts, ". ")
}

// Store resolves profiles by ID. Profiles are owned elsewhere; the
// recommender only reads them.
type Store interface {
	Get(ctx context.Context, id string) (*UserProfile, error)
	List(ctx context.Context) ([]*UserProfile, error)
}
