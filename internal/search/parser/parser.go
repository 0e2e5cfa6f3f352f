// Package parser turns a raw query string into a structured query: quoted
// phrases, +required and -excluded terms, * wildcard patterns, and plain
// terms. Extraction happens in that fixed order so no token is classified
// twice. AND/OR/NOT keywords are recognised, but evaluation stays the
// default union-of-candidates with exclusion subtraction; there is no
// operator tree.
package parser

import (
	"regexp"
	"strings"

	"github.com/pravnik/pravnik/internal/analyzer"
)

// ParsedQuery is the structured form of a raw query string.
type ParsedQuery struct {
	Raw       string
	Terms     []string
	Phrases   []string
	Required  []string
	Excluded  []string
	Wildcards []string
}

// IsEmpty reports whether the query carries nothing searchable.
func (q *ParsedQuery) IsEmpty() bool {
	return len(q.Terms) == 0 && len(q.Phrases) == 0 &&
		len(q.Required) == 0 && len(q.Wildcards) == 0
}

var (
	phrasePattern   = regexp.MustCompile(`"([^"]+)"`)
	requiredPattern = regexp.MustCompile(`(^|\s)\+(\S+)`)
	excludedPattern = regexp.MustCompile(`(^|\s)-(\S+)`)
	wildcardPattern = regexp.MustCompile(`(^|\s)(\S*\*\S*)`)
)

// Parse extracts phrases, required, excluded, and wildcard tokens in order,
// then tokenises the remainder into plain terms. Plain, required, and
// excluded terms are normalised and stemmed the same way indexing is.
func Parse(query string) *ParsedQuery {
	parsed := &ParsedQuery{Raw: query}
	rest := query

	rest = phrasePattern.ReplaceAllStringFunc(rest, func(m string) string {
		phrase := strings.TrimSpace(strings.Trim(m, `"`))
		if phrase != "" {
			parsed.Phrases = append(parsed.Phrases, strings.ToLower(phrase))
		}
		return " "
	})

	rest = requiredPattern.ReplaceAllStringFunc(rest, func(m string) string {
		tok := strings.TrimPrefix(strings.TrimSpace(m), "+")
		if stemmed := normalizeTerm(tok); stemmed != "" {
			parsed.Required = append(parsed.Required, stemmed)
		}
		return " "
	})

	rest = excludedPattern.ReplaceAllStringFunc(rest, func(m string) string {
		tok := strings.TrimPrefix(strings.TrimSpace(m), "-")
		if stemmed := normalizeTerm(tok); stemmed != "" {
			parsed.Excluded = append(parsed.Excluded, stemmed)
		}
		return " "
	})

	rest = wildcardPattern.ReplaceAllStringFunc(rest, func(m string) string {
		tok := analyzer.Normalize(strings.TrimSpace(m))
		if tok != "" && tok != "*" {
			parsed.Wildcards = append(parsed.Wildcards, tok)
		}
		return " "
	})

	excludeNext := false
	for _, word := range strings.Fields(rest) {
		switch strings.ToUpper(word) {
		case "AND", "OR":
			// Recognised but not evaluated as an operator tree.
			continue
		case "NOT":
			excludeNext = true
			continue
		}
		stemmed := normalizeTerm(word)
		if stemmed == "" {
			continue
		}
		if excludeNext {
			parsed.Excluded = append(parsed.Excluded, stemmed)
			excludeNext = false
			continue
		}
		parsed.Terms = append(parsed.Terms, stemmed)
	}
	return parsed
}

// CompileWildcard translates a * pattern into an anchored regexp matching
// whole vocabulary terms.
func CompileWildcard(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile("^" + strings.Join(parts, ".*") + "$")
}

// normalizeTerm runs one token through the same pipeline indexing uses.
func normalizeTerm(tok string) string {
	tokens := analyzer.Tokenize(tok)
	if len(tokens) == 0 {
		return ""
	}
	return analyzer.Stem(tokens[0])
}
