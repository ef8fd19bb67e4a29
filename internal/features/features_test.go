package features

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spigell/job-recommender/internal/corpus"
	"github.com/spigell/job-recommender/internal/profile"
)

func TestVocabularyNormalize(t *testing.T) {
	v := DefaultVocabulary()

	assert.Equal(t, "go", v.Canonicalize(" Golang "))
	assert.Equal(t, "python", v.Canonicalize("پايتون"))
	assert.Equal(t, "rust", v.Canonicalize("Rust"))
	assert.True(t, v.Known("ReactJS"))
	assert.False(t, v.Known("cobol"))

	assert.Equal(t, []string{"go", "javascript", "postgresql"}, v.Normalize([]string{"JS", "golang", "Go", "postgres", " "}))
}

func TestOverlap(t *testing.T) {
	assert.Equal(t, []string{"go", "sql"}, Overlap([]string{"sql", "go", "docker"}, []string{"go", "sql", "python"}))
	assert.Nil(t, Overlap(nil, []string{"go"}))
	assert.Nil(t, Overlap([]string{"go"}, []string{"rust"}))
}

func TestExtractJob(t *testing.T) {
	e := NewExtractor(nil)
	f := e.Job(&corpus.JobPosting{
		ID:            "j1",
		Title:         "Go Developer",
		Category:      "IT",
		City:          "Tehran",
		Province:      "Tehran",
		CategoryID:    "7",
		Skills:        []string{"Golang", "PostgreSQL"},
		Description:   "Build   APIs",
		MinExperience: corpus.ExperienceMid,
	})

	assert.Equal(t, "go developer. it in tehran. skills: golang, postgresql. description: build apis", f.EmbedText)
	assert.Equal(t, "go developer build apis golang postgresql", f.LexicalText)
	assert.Equal(t, []string{"go", "postgresql"}, f.Attributes.Skills)
	assert.Equal(t, "tehran", f.Attributes.Province)
	assert.Equal(t, corpus.ExperienceMid, f.Attributes.Experience)
	assert.Empty(t, f.Defaulted)
}

func TestExtractMissingFieldsDefault(t *testing.T) {
	e := NewExtractor(nil)

	job := e.Job(&corpus.JobPosting{ID: "empty"})
	assert.ElementsMatch(t, []string{"title", "description", "skills"}, job.Defaulted)
	assert.Empty(t, job.Attributes.Skills)

	p := e.Profile(&profile.UserProfile{ID: "u"})
	assert.ElementsMatch(t, []string{"professional_title", "skills"}, p.Defaulted)
	assert.Equal(t, "", p.Text)
}

func TestExtractProfile(t *testing.T) {
	e := NewExtractor(nil)
	p := e.Profile(&profile.UserProfile{
		ID:         "u1",
		Title:      "Frontend Developer",
		Skills:     []string{"React.js", "TS"},
		Provinces:  []string{" Tehran ", ""},
		Categories: []string{"7"},
		Experience: corpus.ExperienceJunior,
	})

	assert.Equal(t, []string{"react", "typescript"}, p.Skills)
	assert.Equal(t, []string{"tehran"}, p.Provinces)
	assert.Equal(t, []string{"7"}, p.Categories)
	assert.Equal(t, "frontend developer. skills include: react.js, ts", p.Text)
}
