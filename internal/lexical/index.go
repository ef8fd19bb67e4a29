// Package lexical implements the TF-IDF index used for the real-time
// relevance ranking and as the fallback when the dense path is down.
package lexical

import (
	"cmp"
	"encoding/gob"
	"fmt"
	"io"
	"math"
	"slices"
)

const DefaultMaxFeatures = 5000

type Options struct {
	// MaxFeatures caps the vocabulary to the most frequent terms.
	MaxFeatures int
	// MinDF drops terms that appear in fewer documents.
	MinDF int
}

// Index holds a fitted vocabulary, its IDF weights and the normalized vector
// of every document it was fitted on. It is immutable after Fit.
type Index struct {
	vocab map[string]int32
	terms []string
	idf   []float64
	ids   []string
	pos   map[string]int
	docs  []Vector
}

// Fit learns the vocabulary and IDF from texts and vectorizes every document.
// ids[i] names texts[i].
func Fit(ids, texts []string, opts Options) (*Index, error) {
	if len(ids) != len(texts) {
		return nil, fmt.Errorf("fit tf-idf: %d ids for %d texts", len(ids), len(texts))
	}
	if opts.MaxFeatures <= 0 {
		opts.MaxFeatures = DefaultMaxFeatures
	}
	if opts.MinDF <= 0 {
		opts.MinDF = 1
	}

	tokenized := make([][]string, len(texts))
	df := make(map[string]int)
	total := make(map[string]int)
	for i, text := range texts {
		tokens := Tokenize(text)
		tokenized[i] = tokens
		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			total[tok]++
			if _, ok := seen[tok]; !ok {
				seen[tok] = struct{}{}
				df[tok]++
			}
		}
	}

	candidates := make([]string, 0, len(df))
	for term, n := range df {
		if n >= opts.MinDF {
			candidates = append(candidates, term)
		}
	}
	// Keep the most frequent terms, ties broken alphabetically.
	slices.SortFunc(candidates, func(a, b string) int {
		if c := cmp.Compare(total[b], total[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	if len(candidates) > opts.MaxFeatures {
		candidates = candidates[:opts.MaxFeatures]
	}
	slices.Sort(candidates)

	n := float64(len(texts))
	ix := &Index{
		vocab: make(map[string]int32, len(candidates)),
		terms: candidates,
		idf:   make([]float64, len(candidates)),
		ids:   slices.Clone(ids),
		docs:  make([]Vector, len(texts)),
	}
	for col, term := range candidates {
		ix.vocab[term] = int32(col)
		ix.idf[col] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	ix.indexPositions()

	for i, tokens := range tokenized {
		ix.docs[i] = ix.vectorizeTokens(tokens)
	}
	return ix, nil
}

func (ix *Index) indexPositions() {
	ix.pos = make(map[string]int, len(ix.ids))
	for i, id := range ix.ids {
		ix.pos[id] = i
	}
}

// Vectorize maps text into the fitted term space. Unknown terms are ignored;
// the vocabulary never changes.
func (ix *Index) Vectorize(text string) Vector {
	return ix.vectorizeTokens(Tokenize(text))
}

func (ix *Index) vectorizeTokens(tokens []string) Vector {
	counts := make(map[int32]int)
	for _, tok := range tokens {
		if col, ok := ix.vocab[tok]; ok {
			counts[col]++
		}
	}
	if len(counts) == 0 {
		return Vector{}
	}

	v := Vector{Terms: make([]int32, 0, len(counts))}
	for col := range counts {
		v.Terms = append(v.Terms, col)
	}
	slices.Sort(v.Terms)
	v.Weights = make([]float32, len(v.Terms))
	for i, col := range v.Terms {
		v.Weights[i] = float32(float64(counts[col]) * ix.idf[col])
	}
	v.normalize()
	return v
}

func (ix *Index) Len() int { return len(ix.ids) }

func (ix *Index) VocabularySize() int { return len(ix.terms) }

func (ix *Index) IDs() []string { return ix.ids }

func (ix *Index) ID(i int) string { return ix.ids[i] }

// Position returns the row of a document.
func (ix *Index) Position(id string) (int, bool) {
	i, ok := ix.pos[id]
	return i, ok
}

func (ix *Index) DocVector(i int) Vector { return ix.docs[i] }

// Similarity scores a query vector against document row i.
func (ix *Index) Similarity(q Vector, i int) float64 {
	return Score(q, ix.docs[i])
}

type encodedIndex struct {
	Terms []string
	IDF   []float64
	IDs   []string
	Docs  []Vector
}

// Encode writes the index in gob form.
func (ix *Index) Encode(w io.Writer) error {
	return gob.NewEncoder(w).Encode(encodedIndex{
		Terms: ix.terms,
		IDF:   ix.idf,
		IDs:   ix.ids,
		Docs:  ix.docs,
	})
}

func Decode(r io.Reader) (*Index, error) {
	var enc encodedIndex
	if err := gob.NewDecoder(r).Decode(&enc); err != nil {
		return nil, fmt.Errorf("decode tf-idf index: %w", err)
	}
	if len(enc.Terms) != len(enc.IDF) || len(enc.IDs) != len(enc.Docs) {
		return nil, fmt.Errorf("decode tf-idf index: inconsistent lengths")
	}

	ix := &Index{
		vocab: make(map[string]int32, len(enc.Terms)),
		terms: enc.Terms,
		idf:   enc.IDF,
		ids:   enc.IDs,
		docs:  enc.Docs,
	}
	for col, term := range enc.Terms {
		ix.vocab[term] = int32(col)
	}
	ix.indexPositions()
	return ix, nil
}
