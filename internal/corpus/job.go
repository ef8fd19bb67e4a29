package corpus

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/job-recommender/internal/textnorm"
)

const (
	JobIDField       = "ID"
	JobCategoryField = "CategoryID"
	JobProvinceField = "Province"
)

// JobPosting is a single scraped advertisement. Derived vectors are not part
// of the posting; they live in the artifact that indexed it.
type JobPosting struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Company       string         `json:"company,omitempty"`
	Province      string         `json:"province,omitempty"`
	City          string         `json:"city,omitempty"`
	CategoryID    string         `json:"category_id,omitempty"`
	Category      string         `json:"category,omitempty"`
	Skills        []string       `json:"skills,omitempty"`
	ContractType  string         `json:"contract_type,omitempty"`
	Salary        Salary         `json:"salary"`
	MinExperience ExperienceBand `json:"minimum_experience"`
	FullTime      bool           `json:"is_full_time,omitempty"`
	PartTime      bool           `json:"is_part_time,omitempty"`
	Remote        bool           `json:"is_remote,omitempty"`
	Internship    bool           `json:"is_internship,omitempty"`
	Description   string         `json:"description,omitempty"`
	SourceLink    string         `json:"source_link,omitempty"`
	PostedAt      time.Time      `json:"posted_at"`
	Active        bool           `json:"is_active"`
}

// Age returns how long ago the posting was published. Postings dated in the
// future are treated as brand new.
func (j *JobPosting) Age(now time.Time) time.Duration {
	if j.PostedAt.IsZero() || j.PostedAt.After(now) {
		return 0
	}
	return now.Sub(j.PostedAt)
}

// SalaryKind tells a numeric salary apart from the two textual sentinels job
// boards publish instead of an amount.
type SalaryKind string

const (
	SalaryNegotiable SalaryKind = "negotiable"
	SalaryByLaw      SalaryKind = "by_law"
	SalaryNumeric    SalaryKind = "numeric"
)

type Salary struct {
	Kind   SalaryKind `json:"kind"`
	Amount int64      `json:"amount,omitempty"`
}

var salaryNumber = regexp.MustCompile(`\d[\d,.]*`)

// ParseSalary reads the free-text salary field. Anything without a usable
// number falls back to negotiable; ok reports whether the text was understood.
func ParseSalary(text string) (s Salary, ok bool) {
	cleaned := textnorm.Normalize(text)
	switch {
	case cleaned == "":
		return Salary{Kind: SalaryNegotiable}, true
	case strings.Contains(cleaned, "توافقی"), strings.EqualFold(cleaned, string(SalaryNegotiable)):
		return Salary{Kind: SalaryNegotiable}, true
	case strings.Contains(cleaned, "قانون کار"), strings.Contains(cleaned, "وزارت کار"),
		strings.EqualFold(cleaned, string(SalaryByLaw)), strings.EqualFold(cleaned, "by law"):
		return Salary{Kind: SalaryByLaw}, true
	}

	if m := salaryNumber.FindString(cleaned); m != "" {
		f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		if err == nil {
			return Salary{Kind: SalaryNumeric, Amount: int64(f)}, true
		}
	}

	return Salary{Kind: SalaryNegotiable}, false
}

// ExperienceBand is the ordinal experience level shared by postings
// (minimum required) and profiles (level held).
type ExperienceBand int

const (
	ExperienceNone ExperienceBand = iota
	ExperienceJunior
	ExperienceMid
	ExperienceSenior
)

func (b ExperienceBand) String() string {
	switch b {
	case ExperienceJunior:
		return "1-3"
	case ExperienceMid:
		return "3-6"
	case ExperienceSenior:
		return "6+"
	default:
		return "0"
	}
}

func (b ExperienceBand) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *ExperienceBand) UnmarshalText(text []byte) error {
	band, ok := ParseExperience(string(text))
	if !ok {
		return fmt.Errorf("unknown experience band %q", text)
	}
	*b = band
	return nil
}

// BandForYears maps a number of years to its band.
func BandForYears(years int) ExperienceBand {
	switch {
	case years < 1:
		return ExperienceNone
	case years < 3:
		return ExperienceJunior
	case years < 6:
		return ExperienceMid
	default:
		return ExperienceSenior
	}
}

var persianNumbers = map[string]int{
	"یک": 1, "دو": 2, "سه": 3, "چهار": 4, "پنج": 5,
	"شش": 6, "هفت": 7, "هشت": 8, "نه": 9, "ده": 10,
}

var (
	expRange     = regexp.MustCompile(`^(\d+)\s*-\s*(\d+)$`)
	expSingle    = regexp.MustCompile(`^(\d+)\s*\+?$`)
	expWordRange = regexp.MustCompile(`(\S+)\s*تا\s*(\S+)\s*سال`)
	expMoreThan  = regexp.MustCompile(`بیش از\s*(\S+)\s*سال`)
	expLessThan  = regexp.MustCompile(`کمتر از\s*(\S+)\s*سال`)
	expAtLeast   = regexp.MustCompile(`حداقل\s*(\S+)\s*سال`)
)

var bandNames = map[string]ExperienceBand{
	"none":   ExperienceNone,
	"junior": ExperienceJunior,
	"mid":    ExperienceMid,
	"middle": ExperienceMid,
	"senior": ExperienceSenior,
	"1-3":    ExperienceJunior,
	"3-6":    ExperienceMid,
	"6+":     ExperienceSenior,
}

// ParseExperience reads an experience requirement such as "3-6", "6+",
// "senior" or the Persian "حداقل ۳ سال". Unknown text maps to
// ExperienceNone with ok=false.
func ParseExperience(text string) (b ExperienceBand, ok bool) {
	cleaned := textnorm.Normalize(text)
	if cleaned == "" || strings.Contains(cleaned, "مهم نیست") || strings.Contains(cleaned, "اهمیت") {
		return ExperienceNone, true
	}
	if band, found := bandNames[cleaned]; found {
		return band, true
	}

	if m := expRange.FindStringSubmatch(cleaned); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		return BandForYears(min(lo, hi)), true
	}
	if m := expSingle.FindStringSubmatch(cleaned); m != nil {
		years, _ := strconv.Atoi(m[1])
		return BandForYears(years), true
	}
	if m := expWordRange.FindStringSubmatch(cleaned); m != nil {
		lo, okLo := yearsFromWord(m[1])
		hi, okHi := yearsFromWord(m[2])
		if okLo && okHi {
			return BandForYears(min(lo, hi)), true
		}
	}
	if m := expMoreThan.FindStringSubmatch(cleaned); m != nil {
		if years, found := yearsFromWord(m[1]); found {
			return BandForYears(years), true
		}
	}
	if expLessThan.MatchString(cleaned) {
		return ExperienceNone, true
	}
	if m := expAtLeast.FindStringSubmatch(cleaned); m != nil {
		if years, found := yearsFromWord(m[1]); found {
			return BandForYears(years), true
		}
	}

	return ExperienceNone, false
}

func yearsFromWord(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, ok := persianNumbers[s]; ok {
		return n, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
