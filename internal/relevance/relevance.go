// Package relevance is the real-time path: lexical cosine ranking over the
// precomputed TF-IDF vectors. It never touches the sieve, the dense index
// or a model, and it never refits the vocabulary.
package relevance

import (
	"cmp"
	"slices"
	"strings"

	"github.com/spigell/job-recommender/internal/corpus"
	"github.com/spigell/job-recommender/internal/lexical"
	"github.com/spigell/job-recommender/internal/textnorm"
)

const DefaultPageSize = 12

type Ranked struct {
	JobID    string  `json:"job_id"`
	Position int     `json:"-"`
	Score    float64 `json:"score"`
}

// Rank scores every document against the query and returns the full
// ranking, score descending, ties by job ID.
func Rank(ix *lexical.Index, query lexical.Vector) []Ranked {
	out := make([]Ranked, ix.Len())
	for i := range ix.Len() {
		out[i] = Ranked{JobID: ix.ID(i), Position: i, Score: ix.Similarity(query, i)}
	}
	sortRanked(out)
	return out
}

// RankPositions ranks only the given document rows.
func RankPositions(ix *lexical.Index, query lexical.Vector, positions []int) []Ranked {
	out := make([]Ranked, 0, len(positions))
	for _, i := range positions {
		out = append(out, Ranked{JobID: ix.ID(i), Position: i, Score: ix.Similarity(query, i)})
	}
	sortRanked(out)
	return out
}

func sortRanked(rs []Ranked) {
	slices.SortFunc(rs, func(a, b Ranked) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.JobID, b.JobID)
	})
}

// PageQuery narrows a browse listing before ranking. Page is 1-based.
type PageQuery struct {
	Search     string
	Province   string
	CategoryID string
	Page       int
	PageSize   int
}

type Page struct {
	Items    []Ranked `json:"items"`
	Page     int      `json:"page"`
	Pages    int      `json:"pages"`
	Total    int      `json:"total"`
	PageSize int      `json:"page_size"`
}

// RankPage filters jobs (aligned with the index rows) by the query's search
// text, province and category, ranks the rest and returns one page.
func RankPage(ix *lexical.Index, jobs []*corpus.JobPosting, query lexical.Vector, q PageQuery) Page {
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	search := textnorm.Normalize(q.Search)
	province := textnorm.Normalize(q.Province)
	category := strings.TrimSpace(q.CategoryID)

	positions := make([]int, 0, len(jobs))
	for i, j := range jobs {
		switch {
		case !j.Active:
			continue
		case search != "" && !strings.Contains(textnorm.Normalize(j.Title), search):
			continue
		case province != "" && textnorm.Normalize(j.Province) != province:
			continue
		case category != "" && j.CategoryID != category:
			continue
		}
		positions = append(positions, i)
	}

	ranked := RankPositions(ix, query, positions)
	total := len(ranked)
	pages := (total + q.PageSize - 1) / q.PageSize

	start := min((q.Page-1)*q.PageSize, total)
	end := min(start+q.PageSize, total)

	return Page{
		Items:    ranked[start:end],
		Page:     q.Page,
		Pages:    pages,
		Total:    total,
		PageSize: q.PageSize,
	}
}

// IDs projects a ranking onto job IDs.
func IDs(rs []Ranked) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.JobID
	}
	return out
}
