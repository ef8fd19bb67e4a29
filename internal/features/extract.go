// Package features turns postings and profiles into the text and attribute
// tuples the indexes and the sieve consume. Extraction is pure and never fails:
// missing fields become empty values and are reported as defaulted.
package features

import (
	"fmt"
	"strings"

	"github.com/spigell/job-recommender/internal/corpus"
	"github.com/spigell/job-recommender/internal/profile"
	"github.com/spigell/job-recommender/internal/textnorm"
)

// Attributes is the structured tuple the sieve filters on.
type Attributes struct {
	Skills     []string
	Province   string
	CategoryID string
	Experience corpus.ExperienceBand
}

type JobFeatures struct {
	ID string
	// LexicalText feeds the TF-IDF index: title, description and skills.
	LexicalText string
	// EmbedText feeds the dense encoder.
	EmbedText  string
	Attributes Attributes
	Defaulted  []string
}

type ProfileFeatures struct {
	ID         string
	Text       string
	Skills     []string
	Provinces  []string
	Categories []string
	Experience corpus.ExperienceBand
	Defaulted  []string
}

type Extractor struct {
	vocab *Vocabulary
}

func NewExtractor(vocab *Vocabulary) *Extractor {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Extractor{vocab: vocab}
}

func (e *Extractor) Vocabulary() *Vocabulary { return e.vocab }

func (e *Extractor) Job(j *corpus.JobPosting) JobFeatures {
	skills := e.vocab.Normalize(j.Skills)

	var defaulted []string
	if strings.TrimSpace(j.Title) == "" {
		defaulted = append(defaulted, "title")
	}
	if strings.TrimSpace(j.Description) == "" {
		defaulted = append(defaulted, "description")
	}
	if len(skills) == 0 {
		defaulted = append(defaulted, "skills")
	}

	lexical := textnorm.Normalize(strings.Join([]string{j.Title, j.Description, strings.Join(j.Skills, " ")}, " "))
	embed := textnorm.Normalize(fmt.Sprintf("%s. %s in %s. Skills: %s. Description: %s",
		j.Title, j.Category, j.City, strings.Join(j.Skills, ", "), j.Description))

	return JobFeatures{
		ID:          j.ID,
		LexicalText: lexical,
		EmbedText:   embed,
		Attributes: Attributes{
			Skills:     skills,
			Province:   textnorm.Normalize(j.Province),
			CategoryID: strings.TrimSpace(j.CategoryID),
			Experience: j.MinExperience,
		},
		Defaulted: defaulted,
	}
}

// Jobs extracts every posting in corpus order.
func (e *Extractor) Jobs(c *corpus.Corpus) []JobFeatures {
	out := make([]JobFeatures, 0, c.Len())
	for _, j := range c.Items {
		out = append(out, e.Job(j))
	}
	return out
}

func (e *Extractor) Profile(p *profile.UserProfile) ProfileFeatures {
	skills := e.vocab.Normalize(p.Skills)

	var defaulted []string
	if strings.TrimSpace(p.Title) == "" {
		defaulted = append(defaulted, "professional_title")
	}
	if len(skills) == 0 {
		defaulted = append(defaulted, "skills")
	}

	provinces := make([]string, 0, len(p.Provinces))
	for _, prov := range p.Provinces {
		if n := textnorm.Normalize(prov); n != "" {
			provinces = append(provinces, n)
		}
	}
	categories := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		if c = strings.TrimSpace(c); c != "" {
			categories = append(categories, c)
		}
	}

	return ProfileFeatures{
		ID:         p.ID,
		Text:       textnorm.Normalize(p.Text()),
		Skills:     skills,
		Provinces:  provinces,
		Categories: categories,
		Experience: p.Experience,
		Defaulted:  defaulted,
	}
}
