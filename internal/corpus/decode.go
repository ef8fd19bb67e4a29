package corpus

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Issue records a field that could not be read and was replaced by its
// default. Issues never abort a load.
type Issue struct {
	JobID string
	Field string
	Value string
}

func (i Issue) String() string {
	return fmt.Sprintf("job %s: field %s defaulted (value %q)", i.JobID, i.Field, i.Value)
}

// rawJob mirrors the shapes scrapers and exports produce. Fields with
// several possible encodings stay untyped and are resolved in toPosting.
type rawJob struct {
	ID             string `mapstructure:"id"`
	Title          string `mapstructure:"title"`
	Company        string `mapstructure:"company"`
	CompanyName    string `mapstructure:"company_name"`
	Province       string `mapstructure:"province"`
	City           string `mapstructure:"city"`
	CategoryID     string `mapstructure:"category_id"`
	Category       string `mapstructure:"category"`
	Skills         any    `mapstructure:"skills"`
	ContractType   string `mapstructure:"contract_type"`
	Salary         any    `mapstructure:"salary"`
	MinExperience  any    `mapstructure:"minimum_experience"`
	FullTime       bool   `mapstructure:"is_full_time"`
	PartTime       bool   `mapstructure:"is_part_time"`
	Remote         bool   `mapstructure:"is_remote"`
	Internship     bool   `mapstructure:"is_internship"`
	Description    string `mapstructure:"description"`
	JobDescription string `mapstructure:"job_description"`
	SourceLink     string `mapstructure:"source_link"`
	PostedAt       any    `mapstructure:"posted_at"`
	ScrapedAt      any    `mapstructure:"scraped_at"`
	Active         *bool  `mapstructure:"is_active"`
}

// DecodeRecords converts loosely typed records (JSON objects, API items) into
// postings. Records without an ID are skipped and reported.
func DecodeRecords(records []map[string]any) (*Corpus, []Issue, error) {
	jobs := make([]*JobPosting, 0, len(records))
	var issues []Issue

	for idx, record := range records {
		var raw rawJob
		cfg := &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &raw,
			TagName:          "mapstructure",
		}
		decoder, err := mapstructure.NewDecoder(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("create decoder: %w", err)
		}
		if err := decoder.Decode(record); err != nil {
			issues = append(issues, Issue{JobID: fmt.Sprintf("#%d", idx), Field: "record", Value: err.Error()})
			continue
		}
		if strings.TrimSpace(raw.ID) == "" {
			issues = append(issues, Issue{JobID: fmt.Sprintf("#%d", idx), Field: "id"})
			continue
		}

		job, jobIssues := raw.toPosting()
		jobs = append(jobs, job)
		issues = append(issues, jobIssues...)
	}

	return New(jobs), issues, nil
}

func (r rawJob) toPosting() (*JobPosting, []Issue) {
	var issues []Issue
	flag := func(field string, v any) {
		issues = append(issues, Issue{JobID: r.ID, Field: field, Value: fmt.Sprint(v)})
	}

	job := &JobPosting{
		ID:           strings.TrimSpace(r.ID),
		Title:        strings.TrimSpace(r.Title),
		Company:      firstNonEmpty(r.Company, r.CompanyName),
		Province:     strings.TrimSpace(r.Province),
		City:         strings.TrimSpace(r.City),
		CategoryID:   strings.TrimSpace(r.CategoryID),
		Category:     strings.TrimSpace(r.Category),
		Skills:       SplitList(r.Skills),
		ContractType: strings.TrimSpace(r.ContractType),
		FullTime:     r.FullTime,
		PartTime:     r.PartTime,
		Remote:       r.Remote,
		Internship:   r.Internship,
		Description:  firstNonEmpty(r.Description, r.JobDescription),
		SourceLink:   strings.TrimSpace(r.SourceLink),
		Active:       r.Active == nil || *r.Active,
	}

	salary, ok := SalaryFrom(r.Salary)
	if !ok {
		flag("salary", r.Salary)
	}
	job.Salary = salary

	band, ok := ExperienceFrom(r.MinExperience)
	if !ok {
		flag("minimum_experience", r.MinExperience)
	}
	job.MinExperience = band

	posted := r.PostedAt
	if posted == nil {
		posted = r.ScrapedAt
	}
	at, ok := TimeFrom(posted)
	if !ok {
		flag("posted_at", posted)
	}
	job.PostedAt = at

	return job, issues
}

// SplitList accepts a list or a "|" / "," separated string.
func SplitList(v any) []string {
	var parts []string
	switch val := v.(type) {
	case nil:
		return nil
	case []string:
		parts = val
	case []any:
		for _, item := range val {
			if item == nil {
				continue
			}
			if m, ok := item.(map[string]any); ok {
				if name, ok := m["name"]; ok {
					parts = append(parts, fmt.Sprint(name))
				}
				continue
			}
			parts = append(parts, fmt.Sprint(item))
		}
	case string:
		sep := ","
		if strings.Contains(val, "|") {
			sep = "|"
		}
		parts = strings.Split(val, sep)
	default:
		parts = []string{fmt.Sprint(val)}
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SalaryFrom reads a salary given as a number, free text or {kind, amount}.
func SalaryFrom(v any) (Salary, bool) {
	switch val := v.(type) {
	case nil:
		return Salary{Kind: SalaryNegotiable}, true
	case float64:
		return Salary{Kind: SalaryNumeric, Amount: int64(val)}, true
	case int:
		return Salary{Kind: SalaryNumeric, Amount: int64(val)}, true
	case int64:
		return Salary{Kind: SalaryNumeric, Amount: val}, true
	case string:
		return ParseSalary(val)
	case map[string]any:
		kind := strings.TrimSpace(fmt.Sprint(val["kind"]))
		if amount, ok := val["amount"]; ok && (kind == "" || kind == string(SalaryNumeric)) {
			return SalaryFrom(amount)
		}
		return ParseSalary(kind)
	default:
		return ParseSalary(fmt.Sprint(val))
	}
}

// ExperienceFrom reads an experience value that may be a number of years or
// free text.
func ExperienceFrom(v any) (ExperienceBand, bool) {
	switch val := v.(type) {
	case nil:
		return ExperienceNone, true
	case float64:
		return BandForYears(int(val)), true
	case int:
		return BandForYears(val), true
	case int64:
		return BandForYears(int(val)), true
	case ExperienceBand:
		return val, true
	case string:
		return ParseExperience(val)
	default:
		return ParseExperience(fmt.Sprint(val))
	}
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// TimeFrom reads RFC3339 / date strings and unix seconds. A missing value is
// the zero time, which downstream treats as unknown age.
func TimeFrom(v any) (time.Time, bool) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, true
	case time.Time:
		return val.UTC(), true
	case float64:
		return time.Unix(int64(val), 0).UTC(), true
	case int64:
		return time.Unix(val, 0).UTC(), true
	case int:
		return time.Unix(int64(val), 0).UTC(), true
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, true
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(secs, 0).UTC(), true
		}
	}
	return time.Time{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
