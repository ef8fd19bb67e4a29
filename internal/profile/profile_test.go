package profile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/job-recommender/internal/corpus"
)

func TestText(t *testing.T) {
	p := &UserProfile{
		Title:  "Backend Engineer",
		Skills: []string{"Go", "PostgreSQL"},
		WorkHistory: []WorkExperience{
			{Title: "Developer", Description: "Built payment APIs."},
			{Title: "Intern"},
			{Description: "Maintained CI."},
		},
	}

	assert.Equal(t,
		"Backend Engineer. Skills include: Go, PostgreSQL. Past work experience: Built payment APIs. Maintained CI.",
		p.Text(),
	)
	assert.Equal(t, "", (&UserProfile{}).Text())
}

func TestDecode(t *testing.T) {
	p, issues, err := Decode(map[string]any{
		"user_id":               float64(42),
		"professional_title":    "Data Analyst",
		"skills":                []any{"SQL", "Python"},
		"experience_level":      "۳ تا ۶ سال",
		"wants_remote":          true,
		"preferred_provinces":   "Tehran, Alborz",
		"preferred_category_id": 5,
		"expected_salary":       float64(30000000),
		"work_experiences": []any{
			map[string]any{"job_title": "Analyst", "company_name": "Acme", "description": "Dashboards"},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, "42", p.ID)
	assert.Equal(t, []string{"SQL", "Python"}, p.Skills)
	assert.Equal(t, corpus.ExperienceMid, p.Experience)
	assert.True(t, p.Preferences.Remote)
	assert.Equal(t, []string{"Tehran", "Alborz"}, p.Provinces)
	assert.Equal(t, []string{"5"}, p.Categories)
	require.NotNil(t, p.ExpectedSalary)
	assert.Equal(t, int64(30000000), *p.ExpectedSalary)
	require.Len(t, p.WorkHistory, 1)
	assert.Equal(t, "Dashboards", p.WorkHistory[0].Description)
}

func TestDecodeDefaultsUnknownExperience(t *testing.T) {
	p, issues, err := Decode(map[string]any{"id": "u1", "experience_level": "forever"})
	require.NoError(t, err)
	assert.Equal(t, corpus.ExperienceNone, p.Experience)
	require.Len(t, issues, 1)
	assert.Equal(t, "experience_level", issues[0].Field)
}

func TestDecodeRequiresID(t *testing.T) {
	_, _, err := Decode(map[string]any{"professional_title": "x"})
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	data := `[{"id":"b","professional_title":"Designer"},{"id":"a","skills":"Go|Rust"},{"title":"no id"}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	store, err := LoadFile(path, zap.NewNop())
	require.NoError(t, err)

	all, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, []string{"Go", "Rust"}, all[0].Skills)

	_, err = store.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}
