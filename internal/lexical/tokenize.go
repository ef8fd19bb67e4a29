package lexical

import (
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"

	"github.com/spigell/job-recommender/internal/textnorm"
)

// analyzer splits on Unicode word boundaries, which handles Persian and
// Latin text alike.
var analyzer = &analysis.DefaultAnalyzer{
	Tokenizer: unicode.NewUnicodeTokenizer(),
	TokenFilters: []analysis.TokenFilter{
		lowercase.NewLowerCaseFilter(),
	},
}

// Tokenize normalizes text and returns its terms in order. Single-rune terms
// are dropped.
func Tokenize(text string) []string {
	text = textnorm.Normalize(text)
	if text == "" {
		return nil
	}

	stream := analyzer.Analyze([]byte(text))
	terms := make([]string, 0, len(stream))
	for _, tok := range stream {
		if utf8.RuneCount(tok.Term) < 2 {
			continue
		}
		terms = append(terms, string(tok.Term))
	}
	return terms
}
