// Package dense stores normalized job embeddings and answers top-k inner
// product queries. Search strategy sits behind Searcher so an approximate
// index can replace the exact scan.
package dense

import (
	"cmp"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

var ErrDimension = errors.New("embedding dimension mismatch")

type Hit struct {
	JobID      string
	Position   int
	Similarity float64
}

// Matrix is the row-major store of unit vectors; row i belongs to IDs[i].
type Matrix struct {
	Dim  int
	IDs  []string
	Data []float32
}

func (m *Matrix) Row(i int) []float32 {
	return m.Data[i*m.Dim : (i+1)*m.Dim]
}

func (m *Matrix) Len() int { return len(m.IDs) }

// Searcher finds the k rows with the highest inner product with query among
// rows accepted by allow (nil accepts all). Results are ordered by
// similarity descending, ties by job ID ascending.
type Searcher interface {
	Search(m *Matrix, query []float32, k int, allow func(pos int) bool) []Hit
}

// FlatSearcher scans every row.
type FlatSearcher struct{}

func (FlatSearcher) Search(m *Matrix, query []float32, k int, allow func(pos int) bool) []Hit {
	if k <= 0 {
		return nil
	}
	hits := make([]Hit, 0, min(k, m.Len()))
	for i := range m.Len() {
		if allow != nil && !allow(i) {
			continue
		}
		hits = append(hits, Hit{JobID: m.IDs[i], Position: i, Similarity: Dot(query, m.Row(i))})
	}
	SortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// SortHits orders by similarity descending, then job ID ascending.
func SortHits(hits []Hit) {
	slices.SortFunc(hits, func(a, b Hit) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return strings.Compare(a.JobID, b.JobID)
	})
}

// Index is immutable after Build.
type Index struct {
	m        Matrix
	pos      map[string]int
	searcher Searcher
	model    string
}

// Build normalizes vectors and stores them. Every vector must share one
// dimension; an empty index is valid.
func Build(ids []string, vectors [][]float32, model string, searcher Searcher) (*Index, error) {
	if len(ids) != len(vectors) {
		return nil, fmt.Errorf("build dense index: %d ids for %d vectors", len(ids), len(vectors))
	}
	if searcher == nil {
		searcher = FlatSearcher{}
	}

	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
		if dim == 0 {
			return nil, fmt.Errorf("build dense index: %w: empty vector for %s", ErrDimension, ids[0])
		}
	}

	m := Matrix{Dim: dim, IDs: slices.Clone(ids), Data: make([]float32, 0, dim*len(vectors))}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("build dense index: %w: %s has %d, want %d", ErrDimension, ids[i], len(v), dim)
		}
		m.Data = append(m.Data, Normalize(v)...)
	}

	return newIndex(m, model, searcher), nil
}

func newIndex(m Matrix, model string, searcher Searcher) *Index {
	pos := make(map[string]int, len(m.IDs))
	for i, id := range m.IDs {
		pos[id] = i
	}
	return &Index{m: m, pos: pos, searcher: searcher, model: model}
}

// Query returns up to k hits for the query vector. The query is normalized
// first, so similarities are cosines.
func (ix *Index) Query(query []float32, k int, allow func(pos int) bool) ([]Hit, error) {
	if ix.m.Len() == 0 {
		return nil, nil
	}
	if len(query) != ix.m.Dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimension, len(query), ix.m.Dim)
	}
	return ix.searcher.Search(&ix.m, Normalize(query), k, allow), nil
}

func (ix *Index) Len() int { return ix.m.Len() }

func (ix *Index) Dim() int { return ix.m.Dim }

// Model names the embedder that produced the vectors.
func (ix *Index) Model() string { return ix.model }

func (ix *Index) Position(id string) (int, bool) {
	i, ok := ix.pos[id]
	return i, ok
}

// Vector returns the stored unit vector of a job.
func (ix *Index) Vector(id string) ([]float32, bool) {
	i, ok := ix.pos[id]
	if !ok {
		return nil, false
	}
	return ix.m.Row(i), true
}

type encodedIndex struct {
	Model string
	Dim   int
	IDs   []string
	Data  []float32
}

func (ix *Index) Encode(w io.Writer) error {
	return gob.NewEncoder(w).Encode(encodedIndex{Model: ix.model, Dim: ix.m.Dim, IDs: ix.m.IDs, Data: ix.m.Data})
}

func Decode(r io.Reader, searcher Searcher) (*Index, error) {
	var enc encodedIndex
	if err := gob.NewDecoder(r).Decode(&enc); err != nil {
		return nil, fmt.Errorf("decode dense index: %w", err)
	}
	if len(enc.Data) != enc.Dim*len(enc.IDs) {
		return nil, fmt.Errorf("decode dense index: %w: %d values for %d rows of %d", ErrDimension, len(enc.Data), len(enc.IDs), enc.Dim)
	}
	if searcher == nil {
		searcher = FlatSearcher{}
	}
	return newIndex(Matrix{Dim: enc.Dim, IDs: enc.IDs, Data: enc.Data}, enc.Model, searcher), nil
}
