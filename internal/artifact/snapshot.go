// Package artifact owns the versioned, immutable build outputs and their
// publication. A Snapshot is fully built before it is published; requests
// load the current one once and use it to the end.
package artifact

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/job-recommender/internal/corpus"
	"github.com/spigell/job-recommender/internal/dense"
	"github.com/spigell/job-recommender/internal/features"
	"github.com/spigell/job-recommender/internal/filtering"
	"github.com/spigell/job-recommender/internal/lexical"
)

// ErrBuild marks a failed rebuild. The previous snapshot stays published.
var ErrBuild = errors.New("index build failed")

// Snapshot is one corpus build. Row i of every index is Corpus.Items[i].
type Snapshot struct {
	Manifest Manifest
	Corpus   *corpus.Corpus
	Features []features.JobFeatures
	Lexical  *lexical.Index
	Dense    *dense.Index
}

type Manifest struct {
	Version        string            `json:"version"`
	BuiltAt        time.Time         `json:"built_at"`
	Source         string            `json:"source"`
	Postings       int               `json:"postings"`
	Embedder       string            `json:"embedder"`
	Dimension      int               `json:"dimension"`
	VocabularySize int               `json:"vocabulary_size"`
	Files          map[string]string `json:"files"`
}

func (s *Snapshot) Version() string { return s.Manifest.Version }

func (s *Snapshot) Len() int { return s.Corpus.Len() }

// Candidates exposes every posting to the sieve.
func (s *Snapshot) Candidates() []filtering.Candidate {
	out := make([]filtering.Candidate, s.Len())
	for i, j := range s.Corpus.Items {
		out[i] = filtering.Candidate{Position: i, Job: j, Features: &s.Features[i]}
	}
	return out
}

// Check verifies that every index agrees on the row order.
func (s *Snapshot) Check() error {
	n := s.Corpus.Len()
	if len(s.Features) != n {
		return fmt.Errorf("%d feature rows for %d postings", len(s.Features), n)
	}
	if s.Lexical == nil || s.Lexical.Len() != n {
		return fmt.Errorf("lexical index does not cover %d postings", n)
	}
	if s.Dense == nil || s.Dense.Len() != n {
		return fmt.Errorf("dense index does not cover %d postings", n)
	}
	for i, j := range s.Corpus.Items {
		if s.Lexical.ID(i) != j.ID {
			return fmt.Errorf("lexical row %d is %s, want %s", i, s.Lexical.ID(i), j.ID)
		}
		if pos, ok := s.Dense.Position(j.ID); !ok || pos != i {
			return fmt.Errorf("dense row for %s is %d, want %d", j.ID, pos, i)
		}
	}
	return nil
}

// NewVersion returns a sortable, unique version id such as
// 20250301T120000Z-1a2b3c4d.
func NewVersion(now time.Time) string {
	return now.UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8]
}

// Registry publishes the current snapshot. Readers never block writers.
type Registry struct {
	current atomic.Pointer[Snapshot]
}

func NewRegistry() *Registry { return &Registry{} }

// Current returns the published snapshot or nil before the first build.
func (r *Registry) Current() *Snapshot { return r.current.Load() }

// Publish swaps in s and returns the snapshot it replaced.
func (r *Registry) Publish(s *Snapshot) *Snapshot { return r.current.Swap(s) }
