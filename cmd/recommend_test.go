package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spigell/job-recommender/internal/corpus"
	"github.com/spigell/job-recommender/internal/recommend"
)

func rankedResponse(ids ...string) (recommend.Response, *corpus.Corpus) {
	resp := recommend.Response{}
	items := make([]*corpus.JobPosting, len(ids))
	for i, id := range ids {
		resp.Results = append(resp.Results, recommend.Result{JobID: id})
		items[i] = &corpus.JobPosting{ID: id}
	}
	return resp, corpus.New(items)
}

func resultIDs(resp recommend.Response) []string {
	ids := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		ids[i] = r.JobID
	}
	return ids
}

func TestHideSeenRefillsTopK(t *testing.T) {
	// Asked for top 2 plus two seen postings.
	resp, postings := rankedResponse("j1", "j2", "j3", "j4")

	excluded := hideSeen(&resp, postings, []string{"j2", "j9", "j1"}, 2)

	assert.ElementsMatch(t, []string{"j1", "j2"}, excluded)
	assert.Equal(t, []string{"j3", "j4"}, resultIDs(resp))
	assert.Equal(t, []string{"j3", "j4"}, postings.IDs())
}

func TestHideSeenCutsUnseenToTopK(t *testing.T) {
	resp, postings := rankedResponse("j1", "j2", "j3")

	excluded := hideSeen(&resp, postings, []string{"j9"}, 2)

	assert.Empty(t, excluded)
	assert.Equal(t, []string{"j1", "j2"}, resultIDs(resp))
	assert.Equal(t, []string{"j1", "j2"}, postings.IDs())
}
