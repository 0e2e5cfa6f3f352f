package analyzer

import "strings"

// suffixes is ordered longest-first so the longest matching suffix wins.
// Covers the common Croatian nominal and verbal endings plus a few English
// ones for translated fields.
var suffixes = []string{
	"ovima", "evima",
	"ijega", "ijemu",
	"ima", "ama", "oga", "ega", "omu", "emu", "ing", "ion",
	"og", "eg", "om", "em", "im", "ih", "oj", "ju", "ed", "es",
	"a", "e", "i", "o", "u", "s",
}

// Stem strips the longest matching suffix from word, provided the remaining
// stem keeps at least 3 characters. Words matching no suffix are returned
// unchanged. Deterministic and side-effect-free.
func Stem(word string) string {
	for _, suffix := range suffixes {
		if !strings.HasSuffix(word, suffix) {
			continue
		}
		stem := word[:len(word)-len(suffix)]
		if len(stem) >= 3 {
			return stem
		}
	}
	return word
}

// StemAll stems every token in place order, deduplicating the result while
// preserving first occurrence.
func StemAll(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		s := Stem(t)
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
