package relevance

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/job-recommender/internal/corpus"
	"github.com/spigell/job-recommender/internal/lexical"
)

func fit(t *testing.T, texts map[string]string, order []string) *lexical.Index {
	t.Helper()
	docs := make([]string, len(order))
	for i, id := range order {
		docs[i] = texts[id]
	}
	ix, err := lexical.Fit(order, docs, lexical.Options{})
	require.NoError(t, err)
	return ix
}

func TestRankFullCorpus(t *testing.T) {
	order := []string{"a", "b", "c", "d"}
	ix := fit(t, map[string]string{
		"a": "python django backend developer",
		"b": "java spring developer",
		"c": "python data analyst",
		"d": "graphic designer",
	}, order)

	ranked := Rank(ix, ix.Vectorize("python django developer"))
	require.Len(t, ranked, 4)
	assert.Equal(t, "a", ranked[0].JobID)
	assert.Equal(t, 0.0, ranked[3].Score)
	assert.Equal(t, "d", ranked[3].JobID)
}

func TestRankTiesByID(t *testing.T) {
	order := []string{"z", "y", "x"}
	ix := fit(t, map[string]string{"z": "golang", "y": "golang", "x": "rust"}, order)

	ranked := Rank(ix, ix.Vectorize("cobol"))
	assert.Equal(t, []string{"x", "y", "z"}, IDs(ranked))
}

func TestRankPageFiltersAndPaginates(t *testing.T) {
	var order []string
	texts := map[string]string{}
	jobs := make([]*corpus.JobPosting, 0, 30)
	for i := range 30 {
		id := fmt.Sprintf("j%02d", i)
		order = append(order, id)
		texts[id] = "backend developer go"
		province := "Tehran"
		if i%2 == 1 {
			province = "Isfahan"
		}
		jobs = append(jobs, &corpus.JobPosting{ID: id, Title: "Backend Developer", Province: province, CategoryID: "5", Active: i != 0})
	}
	ix := fit(t, texts, order)
	q := ix.Vectorize("go developer")

	page := RankPage(ix, jobs, q, PageQuery{Province: "tehran", Page: 2})
	// 15 Tehran postings, one inactive.
	assert.Equal(t, 14, page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, DefaultPageSize, page.PageSize)

	page = RankPage(ix, jobs, q, PageQuery{Search: "frontend"})
	assert.Equal(t, 0, page.Total)
	assert.Empty(t, page.Items)

	page = RankPage(ix, jobs, q, PageQuery{Page: 9})
	assert.Empty(t, page.Items)
	assert.Equal(t, 29, page.Total)
}
