package features

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/spigell/job-recommender/internal/textnorm"
)

// defaultAliases folds common spellings onto one canonical skill name.
var defaultAliases = map[string]string{
	"golang":          "go",
	"js":              "javascript",
	"ts":              "typescript",
	"reactjs":         "react",
	"react.js":        "react",
	"node.js":         "nodejs",
	"node":            "nodejs",
	"vue.js":          "vue",
	"vuejs":           "vue",
	"postgres":        "postgresql",
	"k8s":             "kubernetes",
	"ms excel":        "excel",
	"microsoft excel": "excel",
	"c sharp":         "c#",
	"csharp":          "c#",
	"py":              "python",

	"پایتون":       "python",
	"جاوا اسکریپت": "javascript",
	"اکسل":         "excel",
	"فتوشاپ":       "photoshop",
	"حسابداری":     "accounting",
}

// Vocabulary canonicalizes skill names. Unknown skills keep their normalized
// spelling so overlap still works between identical free-text entries.
type Vocabulary struct {
	aliases map[string]string
	known   map[string]struct{}
}

// VocabularyFile is the on-disk form accepted by LoadVocabulary.
type VocabularyFile struct {
	Canonical []string          `json:"canonical"`
	Aliases   map[string]string `json:"aliases"`
}

func NewVocabulary(canonical []string, aliases map[string]string) *Vocabulary {
	v := &Vocabulary{
		aliases: make(map[string]string, len(aliases)),
		known:   make(map[string]struct{}, len(canonical)),
	}
	for _, c := range canonical {
		if n := textnorm.Normalize(c); n != "" {
			v.known[n] = struct{}{}
		}
	}
	for alias, c := range aliases {
		a, n := textnorm.Normalize(alias), textnorm.Normalize(c)
		if a == "" || n == "" {
			continue
		}
		v.aliases[a] = n
		v.known[n] = struct{}{}
	}
	return v
}

func DefaultVocabulary() *Vocabulary {
	return NewVocabulary(nil, defaultAliases)
}

// LoadVocabulary reads a JSON vocabulary and merges it over the defaults.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skill vocabulary: %w", err)
	}
	var file VocabularyFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse skill vocabulary %s: %w", path, err)
	}

	aliases := make(map[string]string, len(defaultAliases)+len(file.Aliases))
	for k, v := range defaultAliases {
		aliases[k] = v
	}
	for k, v := range file.Aliases {
		aliases[k] = v
	}
	return NewVocabulary(file.Canonical, aliases), nil
}

func (v *Vocabulary) Canonicalize(skill string) string {
	n := textnorm.Normalize(skill)
	if c, ok := v.aliases[n]; ok {
		return c
	}
	return n
}

// Known reports whether the skill maps onto a vocabulary entry.
func (v *Vocabulary) Known(skill string) bool {
	_, ok := v.known[v.Canonicalize(skill)]
	return ok
}

// Normalize canonicalizes, deduplicates and sorts skills.
func (v *Vocabulary) Normalize(skills []string) []string {
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		if c := v.Canonicalize(s); c != "" {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Overlap returns the sorted intersection of two normalized skill sets.
func Overlap(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := set[s]; ok {
			out = append(out, s)
			delete(set, s)
		}
	}
	slices.Sort(out)
	return out
}
