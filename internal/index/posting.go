// Package index builds and holds the inverted indexes for the article
// corpus: a field-weighted term index, dedicated title and keyword indexes,
// a character-trigram index, a 2-3 word phrase index, and a category index,
// together with the corpus statistics the scorer needs.
//
// A rebuild constructs a fresh Snapshot and swaps it in atomically, so
// readers always observe either the previous complete index or the new one.
package index

import "time"

// Postings maps a document id to the accumulated field-weighted frequency of
// one term in that document. A document appears at most once per term.
type Postings map[string]float64

// DocSet is a set of document ids.
type DocSet map[string]struct{}

// DocInfo carries the per-document data needed at scoring time.
type DocInfo struct {
	ID            string
	Title         string
	Category      string
	Keywords      []string
	BodyLength    int
	TotalWeighted float64
	DistinctTerms int
	UpdatedAt     time.Time
}

// AvgTermFrequency is the mean weighted frequency across the document's
// distinct terms, or 0 for an empty document.
func (d DocInfo) AvgTermFrequency() float64 {
	if d.DistinctTerms == 0 {
		return 0
	}
	return d.TotalWeighted / float64(d.DistinctTerms)
}

// CorpusStats summarises the indexed corpus. Recomputed on every full
// rebuild, never partially mutated.
type CorpusStats struct {
	TotalDocs     int
	TermCount     int
	TrigramCount  int
	PhraseCount   int
	AvgBodyLength float64
}

// FieldWeight is the relative weight of one document field during indexing
// and scoring.
type FieldWeight float64

const (
	WeightTitle           FieldWeight = 3.0
	WeightTranslatedTitle FieldWeight = 2.5
	WeightKeyword         FieldWeight = 2.0
	WeightFAQQuestion     FieldWeight = 1.5
	WeightExample         FieldWeight = 1.3
	WeightFAQAnswer       FieldWeight = 1.2
	WeightBody            FieldWeight = 1.0
	WeightTranslatedBody  FieldWeight = 0.8
)
