// Package scorer computes normalised relevance scores for candidate
// documents from resolved query terms and the index snapshot. Scores combine
// field-weighted TF-IDF with title/keyword position bonuses, a frequency
// bonus, document-level bonuses, and a recency multiplier, normalised into
// [0, 1].
package scorer

import (
	"math"
	"sort"
	"time"

	"github.com/pravnik/pravnik/internal/index"
)

// TermKind classifies how a query term was written, which sets its weight.
type TermKind int

const (
	KindPlain TermKind = iota
	KindRequired
	KindPhrase
	KindWildcard
)

// Weight returns the scoring weight of the term kind.
func (k TermKind) Weight() float64 {
	switch k {
	case KindRequired:
		return 2.0
	case KindPhrase:
		return 1.5
	case KindWildcard:
		return 1.3
	default:
		return 1.0
	}
}

// ResolvedTerm is one query term with its resolved document matches.
type ResolvedTerm struct {
	// Text is the term as the user wrote it (normalised).
	Text string
	Kind TermKind
	// Matches maps document ids to the weighted term frequency used for
	// TF-IDF. For fuzzy-resolved terms these come from the closest
	// vocabulary term.
	Matches index.Postings
	// DocFreq is the corpus document frequency backing the IDF component.
	DocFreq int
	// Stems are the stemmed tokens checked against the title and keyword
	// indexes for the position bonus.
	Stems []string
}

// Params carries the scoring context for one search call.
type Params struct {
	Now          time.Time
	MinRelevance float64
	Categories   []string
	SortBy       string
	SortOrder    string
	MaxResults   int
}

// Result is one scored document.
type Result struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Category     string    `json:"category"`
	Score        float64   `json:"score"`
	MatchedTerms []string  `json:"matchedTerms,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Score computes, filters, sorts, and truncates results for the candidate
// set. Candidates scoring below MinRelevance are dropped.
func Score(snap *index.Snapshot, terms []ResolvedTerm, candidates index.DocSet, params Params) []Result {
	stats := snap.Stats()
	categoryFilter := make(map[string]struct{}, len(params.Categories))
	for _, c := range params.Categories {
		categoryFilter[c] = struct{}{}
	}

	results := make([]Result, 0, len(candidates))
	for docID := range candidates {
		info, ok := snap.Doc(docID)
		if !ok {
			// The posting points at a document the snapshot no longer
			// carries; skip just this result.
			continue
		}

		var total, maxPossible float64
		var matched []string
		for _, rt := range terms {
			maxPossible += rt.Kind.Weight()
			tf, hit := rt.Matches[docID]
			if !hit {
				continue
			}
			total += termScore(snap, rt, docID, tf, info, stats) * rt.Kind.Weight()
			matched = append(matched, rt.Text)
		}
		if maxPossible == 0 {
			continue
		}
		score := total / maxPossible
		score *= documentBonus(info, stats, categoryFilter)
		score *= recencyBonus(info.UpdatedAt, params.Now)
		score = clamp01(score)
		if score < params.MinRelevance {
			continue
		}
		sort.Strings(matched)
		results = append(results, Result{
			ID:           docID,
			Title:        info.Title,
			Category:     info.Category,
			Score:        score,
			MatchedTerms: matched,
			UpdatedAt:    info.UpdatedAt,
		})
	}

	sortResults(results, params.SortBy, params.SortOrder)
	if params.MaxResults > 0 && len(results) > params.MaxResults {
		results = results[:params.MaxResults]
	}
	return results
}

// termScore is tfidf + position bonus + frequency bonus for one term in one
// document, before the term-kind weight.
func termScore(snap *index.Snapshot, rt ResolvedTerm, docID string, tf float64, info index.DocInfo, stats index.CorpusStats) float64 {
	var tfidf float64
	if info.BodyLength > 0 && rt.DocFreq > 0 && stats.TotalDocs > 0 {
		tfidf = (tf / float64(info.BodyLength)) * math.Log(float64(stats.TotalDocs)/float64(rt.DocFreq))
	}

	var position float64
	for _, stem := range rt.Stems {
		if snap.InTitle(stem, docID) {
			position += 0.3
			break
		}
	}
	for _, stem := range rt.Stems {
		if snap.InKeywords(stem, docID) {
			position += 0.2
			break
		}
	}

	var frequency float64
	if avg := info.AvgTermFrequency(); avg > 0 {
		frequency = math.Min(0.2, tf/avg*0.1)
	}
	return tfidf + position + frequency
}

// documentBonus rewards documents of typical length and documents inside the
// requested category filter.
func documentBonus(info index.DocInfo, stats index.CorpusStats, categoryFilter map[string]struct{}) float64 {
	bonus := 1.0
	if stats.AvgBodyLength > 0 {
		ratio := float64(info.BodyLength) / stats.AvgBodyLength
		if ratio >= 0.5 && ratio <= 2.0 {
			bonus += 0.1
		}
	}
	if len(categoryFilter) > 0 {
		if _, ok := categoryFilter[info.Category]; ok {
			bonus += 0.2
		}
	}
	return bonus
}

// recencyBonus boosts recently modified articles.
func recencyBonus(updatedAt, now time.Time) float64 {
	if updatedAt.IsZero() {
		return 1.0
	}
	age := now.Sub(updatedAt)
	switch {
	case age < 30*24*time.Hour:
		return 1.1
	case age < 90*24*time.Hour:
		return 1.05
	default:
		return 1.0
	}
}

func sortResults(results []Result, sortBy, sortOrder string) {
	asc := sortOrder == "asc"
	less := func(i, j int) bool {
		var cmp int
		switch sortBy {
		case "date":
			switch {
			case results[i].UpdatedAt.Before(results[j].UpdatedAt):
				cmp = -1
			case results[i].UpdatedAt.After(results[j].UpdatedAt):
				cmp = 1
			}
		case "title":
			switch {
			case results[i].Title < results[j].Title:
				cmp = -1
			case results[i].Title > results[j].Title:
				cmp = 1
			}
		default: // relevance, descending unless asked otherwise
			switch {
			case results[i].Score < results[j].Score:
				cmp = -1
			case results[i].Score > results[j].Score:
				cmp = 1
			}
			if !asc {
				cmp = -cmp
			}
			if cmp == 0 {
				return results[i].ID < results[j].ID
			}
			return cmp < 0
		}
		if asc {
			if cmp == 0 {
				return results[i].ID < results[j].ID
			}
			return cmp < 0
		}
		if cmp == 0 {
			return results[i].ID < results[j].ID
		}
		return cmp > 0
	}
	sort.SliceStable(results, less)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
