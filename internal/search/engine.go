// Package search orchestrates query execution: parsing, candidate
// resolution against the index snapshot, the fuzzy fallback, exclusion and
// category filtering, scoring, and result caching.
package search

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pravnik/pravnik/internal/analyzer"
	"github.com/pravnik/pravnik/internal/corpus"
	"github.com/pravnik/pravnik/internal/index"
	"github.com/pravnik/pravnik/internal/search/parser"
	"github.com/pravnik/pravnik/internal/search/querycache"
	"github.com/pravnik/pravnik/internal/search/scorer"
	"github.com/pravnik/pravnik/pkg/clock"
	"github.com/pravnik/pravnik/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// Options controls one search call. The zero value gets sensible defaults
// from the engine configuration.
type Options struct {
	FuzzySearch  bool     `json:"fuzzySearch"`
	MaxResults   int      `json:"maxResults"`
	MinRelevance float64  `json:"minRelevance"`
	Categories   []string `json:"categories,omitempty"`
	Languages    []string `json:"languages,omitempty"`
	SortBy       string   `json:"sortBy"`
	SortOrder    string   `json:"sortOrder"`
}

// Stats is the engine observability snapshot.
type Stats struct {
	DocumentCount       int     `json:"documentCount"`
	TermCount           int     `json:"termCount"`
	TrigramCount        int     `json:"trigramCount"`
	CacheHitRate        float64 `json:"cacheHitRate"`
	AverageSearchTimeMs float64 `json:"averageSearchTimeMs"`
}

// Config tunes the engine.
type Config struct {
	MaxResults     int
	MinRelevance   float64
	FuzzyThreshold float64
	FuzzyTimeout   time.Duration
	QueryCacheSize int
	MaxSuggestions int
}

// Engine is the search façade over the index holder.
type Engine struct {
	holder   *index.Holder
	provider corpus.Provider
	cache    *querycache.Cache
	clk      clock.Clock
	cfg      Config
	metrics  *metrics.Metrics
	group    singleflight.Group
	logger   *slog.Logger

	searches       atomic.Int64
	latencyMicros  atomic.Int64
	lastRebuildDur atomic.Int64
	rebuilds       atomic.Int64
}

// NewEngine creates an Engine over the given provider. metrics may be nil.
func NewEngine(provider corpus.Provider, clk clock.Clock, cfg Config, m *metrics.Metrics) *Engine {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 100
	}
	if cfg.FuzzyThreshold <= 0 {
		cfg.FuzzyThreshold = 0.7
	}
	if cfg.FuzzyTimeout <= 0 {
		cfg.FuzzyTimeout = 500 * time.Millisecond
	}
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = 5
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Engine{
		holder:   index.NewHolder(),
		provider: provider,
		cache:    querycache.New(cfg.QueryCacheSize),
		clk:      clk,
		cfg:      cfg,
		metrics:  m,
		logger:   slog.Default().With("component", "search-engine"),
	}
}

// BuildIndex pulls the full corpus from the provider and rebuilds every
// index atomically. The query cache is cleared afterwards since cached
// rankings may reference the old build.
func (e *Engine) BuildIndex(ctx context.Context) error {
	start := time.Now()
	docs, err := e.provider.Documents(ctx)
	if err != nil {
		return fmt.Errorf("loading corpus: %w", err)
	}
	if err := e.holder.Rebuild(ctx, docs); err != nil {
		return err
	}
	e.cache.Clear()
	e.rebuilds.Add(1)
	dur := time.Since(start)
	e.lastRebuildDur.Store(int64(dur))
	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Add(float64(len(docs)))
		e.metrics.IndexRebuildDuration.Observe(dur.Seconds())
	}
	e.logger.Info("index rebuilt", "articles", len(docs), "duration", dur)
	return nil
}

// Search executes a query. It never returns an error: failures inside the
// pipeline are logged and surface as an empty result list.
func (e *Engine) Search(ctx context.Context, query string, opts Options) []scorer.Result {
	start := time.Now()
	opts = e.withDefaults(opts)
	key := cacheKey(query, opts)

	if cached, ok := e.cache.Get(key); ok {
		e.observe(start, "hit", len(cached))
		return append([]scorer.Result(nil), cached...)
	}

	v, _, shared := e.group.Do(key, func() (any, error) {
		if cached, ok := e.cache.Get(key); ok {
			return cached, nil
		}
		results := e.execute(ctx, query, opts)
		e.cache.Set(key, results)
		return results, nil
	})
	results := v.([]scorer.Result)
	// Callers that rode on another caller's in-flight computation are
	// neither hits nor misses.
	status := "miss"
	if shared {
		status = "shared"
	}
	e.observe(start, status, len(results))
	return append([]scorer.Result(nil), results...)
}

// execute runs the uncached pipeline. Any panic is recovered into an empty
// result list so callers never see an error from a search call.
func (e *Engine) execute(ctx context.Context, query string, opts Options) (results []scorer.Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("search panicked", "query", query, "panic", r)
			if e.metrics != nil {
				e.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
			}
			results = []scorer.Result{}
		}
	}()

	snap := e.holder.Current()
	parsed := parser.Parse(query)
	if parsed.IsEmpty() {
		return []scorer.Result{}
	}

	resolved := make([]scorer.ResolvedTerm, 0,
		len(parsed.Terms)+len(parsed.Required)+len(parsed.Phrases)+len(parsed.Wildcards))

	for _, term := range parsed.Required {
		rt := resolveTerm(snap, term, scorer.KindRequired)
		if len(rt.Matches) == 0 {
			// Hard AND semantics: a required term with no matches empties
			// the whole search.
			return []scorer.Result{}
		}
		resolved = append(resolved, rt)
	}
	for _, term := range parsed.Terms {
		resolved = append(resolved, resolveTerm(snap, term, scorer.KindPlain))
	}
	for _, phrase := range parsed.Phrases {
		resolved = append(resolved, resolvePhrase(snap, phrase))
	}
	for _, pattern := range parsed.Wildcards {
		resolved = append(resolved, resolveWildcard(snap, pattern))
	}

	pool := index.DocSet{}
	for _, rt := range resolved {
		for docID := range rt.Matches {
			pool[docID] = struct{}{}
		}
	}

	fuzzyUsed := false
	if opts.FuzzySearch && len(pool) == 0 && len(parsed.Terms) > 0 {
		fuzzyUsed = true
		fuzzyCtx, cancel := context.WithTimeout(ctx, e.cfg.FuzzyTimeout)
		for i := range resolved {
			if resolved[i].Kind != scorer.KindPlain {
				continue
			}
			e.fuzzyResolve(fuzzyCtx, snap, &resolved[i])
			for docID := range resolved[i].Matches {
				pool[docID] = struct{}{}
			}
		}
		cancel()
	}

	for _, term := range parsed.Excluded {
		for docID := range snap.Postings(term) {
			delete(pool, docID)
		}
	}

	if len(opts.Categories) > 0 {
		allowed := index.DocSet{}
		for _, cat := range opts.Categories {
			for docID := range snap.CategoryDocs(cat) {
				allowed[docID] = struct{}{}
			}
		}
		for docID := range pool {
			if _, ok := allowed[docID]; !ok {
				delete(pool, docID)
			}
		}
	}

	results = scorer.Score(snap, resolved, pool, scorer.Params{
		Now:          e.clk.Now(),
		MinRelevance: opts.MinRelevance,
		Categories:   opts.Categories,
		SortBy:       opts.SortBy,
		SortOrder:    opts.SortOrder,
		MaxResults:   opts.MaxResults,
	})

	if e.metrics != nil {
		switch {
		case len(results) == 0:
			e.metrics.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
		case fuzzyUsed:
			e.metrics.SearchQueriesTotal.WithLabelValues("fuzzy_fallback").Inc()
		default:
			e.metrics.SearchQueriesTotal.WithLabelValues("hit").Inc()
		}
		e.metrics.SearchResultsCount.Observe(float64(len(results)))
	}
	return results
}

// resolveTerm pulls the postings for an already stemmed term.
func resolveTerm(snap *index.Snapshot, term string, kind scorer.TermKind) scorer.ResolvedTerm {
	postings := snap.Postings(term)
	matches := make(index.Postings, len(postings))
	for docID, tf := range postings {
		matches[docID] = tf
	}
	return scorer.ResolvedTerm{
		Text:    term,
		Kind:    kind,
		Matches: matches,
		DocFreq: len(postings),
		Stems:   []string{term},
	}
}

// resolvePhrase resolves a quoted phrase via the phrase index, falling back
// to the AND-intersection of its constituent terms when the exact window was
// never indexed.
func resolvePhrase(snap *index.Snapshot, phrase string) scorer.ResolvedTerm {
	stems := analyzer.StemAll(analyzer.Tokenize(phrase))
	rt := scorer.ResolvedTerm{
		Text:    phrase,
		Kind:    scorer.KindPhrase,
		Matches: index.Postings{},
		Stems:   stems,
	}

	if docs := snap.PhraseDocs(phrase); len(docs) > 0 {
		for docID := range docs {
			rt.Matches[docID] = phraseFrequency(snap, stems, docID)
		}
		rt.DocFreq = len(rt.Matches)
		return rt
	}

	if len(stems) == 0 {
		return rt
	}
	candidate := snap.Postings(stems[0])
	for docID, tf := range candidate {
		minTF := tf
		inAll := true
		for _, stem := range stems[1:] {
			other, ok := snap.Postings(stem)[docID]
			if !ok {
				inAll = false
				break
			}
			if other < minTF {
				minTF = other
			}
		}
		if inAll {
			rt.Matches[docID] = minTF
		}
	}
	rt.DocFreq = len(rt.Matches)
	return rt
}

func phraseFrequency(snap *index.Snapshot, stems []string, docID string) float64 {
	minTF := 0.0
	for i, stem := range stems {
		tf, ok := snap.Postings(stem)[docID]
		if !ok {
			tf = 1.0
		}
		if i == 0 || tf < minTF {
			minTF = tf
		}
	}
	if minTF == 0 {
		minTF = 1.0
	}
	return minTF
}

// resolveWildcard compiles the pattern and scans the vocabulary for matching
// terms, merging their postings.
func resolveWildcard(snap *index.Snapshot, pattern string) scorer.ResolvedTerm {
	rt := scorer.ResolvedTerm{
		Text:    pattern,
		Kind:    scorer.KindWildcard,
		Matches: index.Postings{},
	}
	re, err := parser.CompileWildcard(pattern)
	if err != nil {
		return rt
	}
	for _, term := range snap.Vocabulary() {
		if !re.MatchString(term) {
			continue
		}
		rt.Stems = append(rt.Stems, term)
		for docID, tf := range snap.Postings(term) {
			if tf > rt.Matches[docID] {
				rt.Matches[docID] = tf
			}
		}
	}
	rt.DocFreq = len(rt.Matches)
	return rt
}

// fuzzyResolve widens a plain term that matched nothing: documents sharing
// at least two trigrams with the term, plus the postings of any vocabulary
// term whose trigram similarity clears the threshold. The vocabulary scan
// checks the context every 256 terms since its cost is linear in vocabulary
// size.
func (e *Engine) fuzzyResolve(ctx context.Context, snap *index.Snapshot, rt *scorer.ResolvedTerm) {
	grams := analyzer.Trigrams(rt.Text)

	for i, vocabTerm := range snap.Vocabulary() {
		if i%256 == 0 && ctx.Err() != nil {
			e.logger.Warn("fuzzy scan cut short", "term", rt.Text, "scanned", i)
			break
		}
		if analyzer.Similarity(rt.Text, vocabTerm) < e.cfg.FuzzyThreshold {
			continue
		}
		rt.Stems = append(rt.Stems, vocabTerm)
		for docID, tf := range snap.Postings(vocabTerm) {
			if tf > rt.Matches[docID] {
				rt.Matches[docID] = tf
			}
		}
	}

	overlap := map[string]int{}
	for gram := range grams {
		for docID := range snap.TrigramDocs(gram) {
			overlap[docID]++
		}
	}
	for docID, shared := range overlap {
		if shared < 2 {
			continue
		}
		if _, ok := rt.Matches[docID]; !ok {
			rt.Matches[docID] = 1.0
		}
	}
	rt.DocFreq = len(rt.Matches)
}

// Suggestions returns up to max indexed terms and article keywords starting
// with prefix.
func (e *Engine) Suggestions(prefix string, max int) []string {
	if max <= 0 {
		max = e.cfg.MaxSuggestions
	}
	return e.holder.Current().SuggestTerms(prefix, max)
}

// Stats reports corpus and runtime counters.
func (e *Engine) Stats() Stats {
	stats := e.holder.Current().Stats()
	s := Stats{
		DocumentCount: stats.TotalDocs,
		TermCount:     stats.TermCount,
		TrigramCount:  stats.TrigramCount,
		CacheHitRate:  e.cache.HitRate(),
	}
	if n := e.searches.Load(); n > 0 {
		s.AverageSearchTimeMs = float64(e.latencyMicros.Load()) / float64(n) / 1000
	}
	return s
}

// CacheStats exposes the query cache counters.
func (e *Engine) CacheStats() (hits, misses int64) {
	return e.cache.Stats()
}

// Generation counts completed index rebuilds. Callers caching derived
// payloads embed it in their keys so entries from an old build are never
// served after a reindex.
func (e *Engine) Generation() int64 {
	return e.rebuilds.Load()
}

// Document returns the indexed view of one article.
func (e *Engine) Document(id string) (index.DocInfo, bool) {
	return e.holder.Current().Doc(id)
}

func (e *Engine) withDefaults(opts Options) Options {
	if opts.MaxResults <= 0 || opts.MaxResults > e.cfg.MaxResults {
		opts.MaxResults = e.cfg.MaxResults
	}
	if opts.MinRelevance <= 0 {
		opts.MinRelevance = e.cfg.MinRelevance
	}
	if opts.SortBy == "" {
		opts.SortBy = "relevance"
	}
	if opts.SortOrder == "" {
		if opts.SortBy == "relevance" {
			opts.SortOrder = "desc"
		} else {
			opts.SortOrder = "asc"
		}
	}
	return opts
}

func (e *Engine) observe(start time.Time, cacheStatus string, resultCount int) {
	elapsed := time.Since(start)
	e.searches.Add(1)
	e.latencyMicros.Add(elapsed.Microseconds())
	if e.metrics != nil {
		e.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
		switch cacheStatus {
		case "hit":
			e.metrics.QueryCacheHits.Inc()
		case "miss":
			e.metrics.QueryCacheMisses.Inc()
		}
	}
}

// cacheKey serialises the query and the option subset that affects results
// into a deterministic key.
func cacheKey(query string, opts Options) string {
	categories := append([]string(nil), opts.Categories...)
	sort.Strings(categories)
	languages := append([]string(nil), opts.Languages...)
	sort.Strings(languages)

	raw := fmt.Sprintf("q=%s|fuzzy=%t|max=%d|min=%.4f|cat=%s|lang=%s|sort=%s:%s",
		strings.TrimSpace(strings.ToLower(query)),
		opts.FuzzySearch,
		opts.MaxResults,
		opts.MinRelevance,
		strings.Join(categories, ","),
		strings.Join(languages, ","),
		opts.SortBy, opts.SortOrder,
	)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum[:16])
}
