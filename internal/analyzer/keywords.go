package analyzer

import (
	"math"
	"sort"
)

const maxKeywords = 10

// ExtractKeywords ranks the distinct tokens of an ordered term sequence by
// frequency x position weight x ln(length+1) and returns the top 10. Tokens
// of length 2 or less are skipped. Earlier tokens weigh more.
func ExtractKeywords(terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	type stat struct {
		freq  int
		first int
	}
	stats := make(map[string]*stat, len(terms))
	for i, t := range terms {
		if len(t) <= 2 {
			continue
		}
		s, ok := stats[t]
		if !ok {
			stats[t] = &stat{freq: 1, first: i}
			continue
		}
		s.freq++
	}

	type scored struct {
		term  string
		score float64
	}
	ranked := make([]scored, 0, len(stats))
	for term, s := range stats {
		positionWeight := 1 - float64(s.first)/float64(len(terms))
		score := float64(s.freq) * positionWeight * math.Log(float64(len(term))+1)
		ranked = append(ranked, scored{term: term, score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].term < ranked[j].term
	})
	if len(ranked) > maxKeywords {
		ranked = ranked[:maxKeywords]
	}
	keywords := make([]string, len(ranked))
	for i, r := range ranked {
		keywords[i] = r.term
	}
	return keywords
}
