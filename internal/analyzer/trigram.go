package analyzer

// trigramPad is the boundary marker padded twice around the normalised text
// so that word starts and ends produce their own grams.
const trigramPad = ' '

// Trigrams returns the set of character trigrams of text after
// normalisation. The text is padded with two boundary markers on each side.
func Trigrams(text string) map[string]struct{} {
	normalized := Normalize(text)
	if normalized == "" {
		return map[string]struct{}{}
	}
	padded := make([]rune, 0, len(normalized)+4)
	padded = append(padded, trigramPad, trigramPad)
	padded = append(padded, []rune(normalized)...)
	padded = append(padded, trigramPad, trigramPad)

	grams := make(map[string]struct{}, len(padded))
	for i := 0; i+3 <= len(padded); i++ {
		grams[string(padded[i:i+3])] = struct{}{}
	}
	return grams
}

// Similarity computes the Jaccard similarity of the trigram sets of a and b.
// Returns 0 when both are empty.
func Similarity(a, b string) float64 {
	ga := Trigrams(a)
	gb := Trigrams(b)
	if len(ga) == 0 && len(gb) == 0 {
		return 0
	}
	intersection := 0
	for g := range ga {
		if _, ok := gb[g]; ok {
			intersection++
		}
	}
	union := len(ga) + len(gb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
