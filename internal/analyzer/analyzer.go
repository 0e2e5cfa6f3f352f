// Package analyzer provides text analysis for the search engine: Unicode
// normalisation with diacritic folding, tokenisation with stop-word removal,
// a suffix-table stemmer, character trigrams with Jaccard similarity, and
// keyword extraction.
//
// The corpus is Croatian legal text with English translations, so the
// stop-word list and the diacritic fold table cover both languages.
package analyzer

import (
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	// Croatian
	"i": {}, "u": {}, "na": {}, "za": {}, "se": {}, "je": {}, "su": {},
	"od": {}, "do": {}, "sa": {}, "da": {}, "o": {}, "a": {}, "ili": {},
	"ako": {}, "te": {}, "koji": {}, "koja": {}, "koje": {}, "ne": {},
	"sto": {}, "po": {}, "iz": {}, "kao": {}, "ali": {}, "bi": {},
	"biti": {}, "ima": {}, "nije": {}, "ovaj": {}, "taj": {}, "pri": {},
	// English
	"the": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "it": {}, "its": {},
	"that": {}, "this": {}, "with": {}, "as": {}, "at": {}, "an": {},
	"not": {}, "no": {}, "can": {}, "will": {}, "which": {}, "their": {},
}

// foldTable maps accented letters to their unaccented base form.
var foldTable = map[rune]rune{
	'č': 'c', 'ć': 'c', 'đ': 'd', 'š': 's', 'ž': 'z',
	'á': 'a', 'à': 'a', 'â': 'a', 'ä': 'a', 'ã': 'a', 'å': 'a',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i',
	'ó': 'o', 'ò': 'o', 'ô': 'o', 'ö': 'o', 'õ': 'o',
	'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u',
	'ý': 'y', 'ñ': 'n', 'ç': 'c',
}

// Normalize lowercases text and folds accented letters to their base form.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if folded, ok := foldTable[r]; ok {
			r = folded
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Terms splits text into the ordered, possibly repeating sequence of
// normalised terms: word characters only, lowercased, diacritics folded,
// stop words and single-character tokens dropped.
func Terms(text string) []string {
	normalized := Normalize(text)
	words := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if len(word) <= 1 {
			continue
		}
		if _, isStop := stopWords[word]; isStop {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

// Tokenize returns the unique normalised tokens of text, preserving first
// occurrence order.
func Tokenize(text string) []string {
	terms := Terms(text)
	seen := make(map[string]struct{}, len(terms))
	tokens := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tokens = append(tokens, t)
	}
	return tokens
}

// Complexity estimates how hard a text reads, as the product of average
// sentence length and the share of words longer than 8 characters. Used for
// diagnostic logging during indexing.
func Complexity(text string) float64 {
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	words := strings.Fields(text)
	if len(sentences) == 0 || len(words) == 0 {
		return 0
	}
	long := 0
	for _, w := range words {
		if len([]rune(w)) > 8 {
			long++
		}
	}
	avgSentence := float64(len(words)) / float64(len(sentences))
	return avgSentence * (1 + float64(long)/float64(len(words)))
}
