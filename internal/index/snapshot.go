package index

import (
	"sort"
	"strings"
)

// Snapshot is one complete, immutable build of all indexes. It is safe for
// concurrent readers; mutation after Build is not allowed.
type Snapshot struct {
	terms      map[string]Postings
	titleTerms map[string]DocSet
	kwTerms    map[string]DocSet
	trigrams   map[string]DocSet
	phrases    map[string]DocSet
	categories map[string]DocSet
	docs       map[string]DocInfo
	stats      CorpusStats
	// vocabulary is the sorted term list, for wildcard and fuzzy scans and
	// prefix suggestions.
	vocabulary []string
	// keywords is the sorted distinct raw (unstemmed) keyword list.
	keywords []string
}

// EmptySnapshot returns a snapshot over zero documents.
func EmptySnapshot() *Snapshot {
	return &Snapshot{
		terms:      map[string]Postings{},
		titleTerms: map[string]DocSet{},
		kwTerms:    map[string]DocSet{},
		trigrams:   map[string]DocSet{},
		phrases:    map[string]DocSet{},
		categories: map[string]DocSet{},
		docs:       map[string]DocInfo{},
	}
}

// Stats returns the corpus statistics of this build.
func (s *Snapshot) Stats() CorpusStats {
	return s.stats
}

// Postings returns the weighted postings for a stemmed term, or nil.
func (s *Snapshot) Postings(term string) Postings {
	return s.terms[term]
}

// DocFrequency returns the number of documents containing term.
func (s *Snapshot) DocFrequency(term string) int {
	return len(s.terms[term])
}

// InTitle reports whether term occurs in docID's title (or translated title).
func (s *Snapshot) InTitle(term, docID string) bool {
	_, ok := s.titleTerms[term][docID]
	return ok
}

// InKeywords reports whether term occurs among docID's keywords.
func (s *Snapshot) InKeywords(term, docID string) bool {
	_, ok := s.kwTerms[term][docID]
	return ok
}

// PhraseDocs returns the documents containing the exact 2-3 word phrase.
func (s *Snapshot) PhraseDocs(phrase string) DocSet {
	return s.phrases[strings.ToLower(strings.TrimSpace(phrase))]
}

// TrigramDocs returns the documents containing the given trigram.
func (s *Snapshot) TrigramDocs(gram string) DocSet {
	return s.trigrams[gram]
}

// CategoryDocs returns the documents in a category.
func (s *Snapshot) CategoryDocs(category string) DocSet {
	return s.categories[category]
}

// Doc returns the per-document scoring info.
func (s *Snapshot) Doc(docID string) (DocInfo, bool) {
	info, ok := s.docs[docID]
	return info, ok
}

// Vocabulary returns the sorted stemmed term list. Callers must not modify
// the returned slice.
func (s *Snapshot) Vocabulary() []string {
	return s.vocabulary
}

// SuggestTerms returns up to max vocabulary terms and raw keywords starting
// with prefix, case-insensitive, deduplicated, sorted.
func (s *Snapshot) SuggestTerms(prefix string, max int) []string {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" || max <= 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	collect := func(sorted []string) {
		start := sort.SearchStrings(sorted, prefix)
		for i := start; i < len(sorted); i++ {
			if !strings.HasPrefix(sorted[i], prefix) {
				break
			}
			if _, dup := seen[sorted[i]]; dup {
				continue
			}
			seen[sorted[i]] = struct{}{}
			out = append(out, sorted[i])
		}
	}
	collect(s.keywords)
	collect(s.vocabulary)
	sort.Strings(out)
	if len(out) > max {
		out = out[:max]
	}
	return out
}
