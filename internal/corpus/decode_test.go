package corpus

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecords(t *testing.T) {
	records := []map[string]any{
		{
			"id":                 float64(17),
			"title":              " Backend Developer ",
			"company_name":       "Acme",
			"province":           "Tehran",
			"category_id":        3,
			"skills":             "Go| PostgreSQL |",
			"salary":             "۲۵,۰۰۰,۰۰۰ تومان",
			"minimum_experience": "۳ تا ۶ سال",
			"is_full_time":       "true",
			"job_description":    "Build APIs",
			"scraped_at":         "2024-05-01T10:00:00Z",
		},
		{
			"id":                 "b",
			"title":              "Support",
			"skills":             []any{"Excel", map[string]any{"name": "CRM"}},
			"salary":             "توافقی",
			"minimum_experience": "something odd",
			"is_active":          false,
			"posted_at":          float64(1714557600),
		},
		{"title": "no id"},
	}

	c, issues, err := DecodeRecords(records)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	first := c.FindByID("17")
	require.NotNil(t, first)
	assert.Equal(t, "Backend Developer", first.Title)
	assert.Equal(t, "Acme", first.Company)
	assert.Equal(t, "3", first.CategoryID)
	assert.Equal(t, []string{"Go", "PostgreSQL"}, first.Skills)
	assert.Equal(t, Salary{Kind: SalaryNumeric, Amount: 25000000}, first.Salary)
	assert.Equal(t, ExperienceMid, first.MinExperience)
	assert.True(t, first.FullTime)
	assert.True(t, first.Active)
	assert.Equal(t, "Build APIs", first.Description)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), first.PostedAt)

	second := c.FindByID("b")
	require.NotNil(t, second)
	assert.Equal(t, []string{"Excel", "CRM"}, second.Skills)
	assert.Equal(t, SalaryNegotiable, second.Salary.Kind)
	assert.Equal(t, ExperienceNone, second.MinExperience)
	assert.False(t, second.Active)
	assert.Equal(t, int64(1714557600), second.PostedAt.Unix())

	var fields []string
	for _, issue := range issues {
		fields = append(fields, issue.JobID+":"+issue.Field)
	}
	assert.Contains(t, fields, "b:minimum_experience")
	assert.Contains(t, fields, "#2:id")
}

func TestParseExperience(t *testing.T) {
	tests := []struct {
		input  string
		expect ExperienceBand
		ok     bool
	}{
		{input: "", expect: ExperienceNone, ok: true},
		{input: "مهم نیست", expect: ExperienceNone, ok: true},
		{input: "1-3", expect: ExperienceJunior, ok: true},
		{input: "6+", expect: ExperienceSenior, ok: true},
		{input: "Senior", expect: ExperienceSenior, ok: true},
		{input: "4", expect: ExperienceMid, ok: true},
		{input: "سه تا شش سال", expect: ExperienceMid, ok: true},
		{input: "بیش از ۶ سال", expect: ExperienceSenior, ok: true},
		{input: "کمتر از سه سال", expect: ExperienceNone, ok: true},
		{input: "حداقل ۲ سال", expect: ExperienceJunior, ok: true},
		{input: "a lot", expect: ExperienceNone, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseExperience(tt.input)
			assert.Equal(t, tt.expect, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestParseSalary(t *testing.T) {
	s, ok := ParseSalary("حقوق بر اساس قانون کار")
	assert.True(t, ok)
	assert.Equal(t, SalaryByLaw, s.Kind)

	s, ok = ParseSalary("by law")
	assert.True(t, ok)
	assert.Equal(t, SalaryByLaw, s.Kind)

	s, ok = ParseSalary("12000000")
	assert.True(t, ok)
	assert.Equal(t, int64(12000000), s.Amount)

	s, ok = ParseSalary("competitive")
	assert.False(t, ok)
	assert.Equal(t, SalaryNegotiable, s.Kind)
}

func TestReadRecords(t *testing.T) {
	tests := []struct {
		name  string
		input string
		count int
	}{
		{name: "array", input: `[{"id":"1"},{"id":"2"}]`, count: 2},
		{name: "envelope", input: `{"items":[{"id":"1"}],"page":0,"pages":1}`, count: 1},
		{name: "json lines", input: "{\"id\":\"1\"}\n{\"id\":\"2\"}\n{\"id\":\"3\"}\n", count: 3},
		{name: "empty", input: "  \n", count: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ReadRecords(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Len(t, records, tt.count)
		})
	}
}
