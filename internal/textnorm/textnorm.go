// Package textnorm canonicalizes Persian and Latin text before it reaches the
// lexical and dense indexes.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// diacritics covers the Arabic harakat and the superscript alef.
var diacritics = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x064B, Hi: 0x065F, Stride: 1},
		{Lo: 0x0670, Hi: 0x0670, Stride: 1},
	},
}

var letters = map[rune]rune{
	'ي': 'ی',
	'ى': 'ی',
	'ك': 'ک',
	'ة': 'ه',
	'‌': ' ', // zero-width non-joiner
}

func mapRune(r rune) rune {
	if m, ok := letters[r]; ok {
		return m
	}
	return digit(r)
}

func digit(r rune) rune {
	switch {
	case r >= '۰' && r <= '۹':
		return '0' + (r - '۰')
	case r >= '٠' && r <= '٩':
		return '0' + (r - '٠')
	}
	return r
}

func chain() transform.Transformer {
	return transform.Chain(norm.NFKC, runes.Remove(runes.In(diacritics)), runes.Map(mapRune))
}

// Normalize returns the canonical form of s: unified Persian letters, no
// diacritics, ASCII digits, lower case and single spaces. It is pure and
// idempotent.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	out, _, err := transform.String(chain(), s)
	if err != nil {
		out = s
	}
	return Collapse(strings.ToLower(out))
}

// Digits converts Persian and Arabic-Indic digits to ASCII and leaves
// everything else untouched.
func Digits(s string) string {
	return strings.Map(digit, s)
}

// Collapse trims s and replaces every whitespace run with a single space.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
