package search

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/pravnik/pravnik/internal/corpus"
	"github.com/pravnik/pravnik/pkg/clock"
	"github.com/pravnik/pravnik/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var engineNow = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

func laborCorpus() []corpus.Document {
	return []corpus.Document{
		{
			ID:       "a1",
			Title:    "Godišnji odmor",
			Content:  "Radnik ima pravo na plaćeni godišnji odmor od najmanje četiri tjedna za svaku kalendarsku godinu.",
			Category: "odmori",
			Keywords: []string{"odmor", "godišnji"},
			Translations: map[string]corpus.Translation{
				"en": {Title: "Annual leave", Content: "A worker is entitled to paid annual leave of at least four weeks."},
			},
			UpdatedAt: engineNow.AddDate(0, 0, -5),
		},
		{
			ID:        "a2",
			Title:     "Dnevni odmor",
			Content:   "Radnik ima pravo na dnevni odmor od najmanje dvanaest sati neprekidno.",
			Category:  "odmori",
			Keywords:  []string{"odmor", "dnevni"},
			UpdatedAt: engineNow.AddDate(0, -6, 0),
		},
		{
			ID:        "a3",
			Title:     "Otkaz ugovora o radu",
			Content:   "Poslodavac može redovito otkazati ugovor o radu uz propisani otkazni rok.",
			Category:  "prestanak",
			Keywords:  []string{"otkaz", "ugovor"},
			UpdatedAt: engineNow.AddDate(-1, 0, 0),
		},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine(
		&corpus.SliceProvider{Docs: laborCorpus()},
		clock.NewFake(engineNow),
		Config{QueryCacheSize: 10},
		nil,
	)
	if err := e.BuildIndex(context.Background()); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	return e
}

func TestSearchBasic(t *testing.T) {
	e := newTestEngine(t)
	results := e.Search(context.Background(), "odmor", Options{})
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2: %+v", len(results), results)
	}
	for _, r := range results {
		if r.Score <= 0 || r.Score > 1 {
			t.Errorf("score for %s = %v, want in (0, 1]", r.ID, r.Score)
		}
	}
	if results[0].ID != "a1" {
		t.Errorf("most relevant article should be a1, got %s", results[0].ID)
	}
}

func TestSearchStemsQueryTerms(t *testing.T) {
	e := newTestEngine(t)
	// "odmora" stems to "odmor", matching the same articles.
	inflected := e.Search(context.Background(), "odmora", Options{})
	base := e.Search(context.Background(), "odmor", Options{})
	if len(inflected) != len(base) {
		t.Errorf("inflected query found %d results, base query %d", len(inflected), len(base))
	}
}

func TestSearchRequiredExcludedEmpty(t *testing.T) {
	e := newTestEngine(t)
	// Every article matching +odmor also matches godišnji-free exclusion?
	// No: a1 carries "godišnji", a2 does not. Excluding godišnji keeps a2.
	results := e.Search(context.Background(), "+odmor -godišnji", Options{})
	for _, r := range results {
		if r.ID == "a1" {
			t.Error("a1 contains the excluded term and must be filtered")
		}
	}

	// Excluding the remaining match as well empties the result.
	results = e.Search(context.Background(), "+odmor -godišnji -dnevni", Options{})
	if len(results) != 0 {
		t.Errorf("got %v, want no results", results)
	}
}

func TestSearchRequiredAbsentShortCircuits(t *testing.T) {
	e := newTestEngine(t)
	results := e.Search(context.Background(), "+nepostojećipojam odmor", Options{})
	if len(results) != 0 {
		t.Errorf("required term with no matches must empty the search, got %v", results)
	}
}

func TestSearchPhrase(t *testing.T) {
	e := newTestEngine(t)
	results := e.Search(context.Background(), `"godišnji odmor"`, Options{})
	if len(results) == 0 {
		t.Fatal("expected phrase match for a1")
	}
	if results[0].ID != "a1" {
		t.Errorf("phrase should match a1 first, got %s", results[0].ID)
	}
}

func TestSearchWildcard(t *testing.T) {
	e := newTestEngine(t)
	results := e.Search(context.Background(), "otka*", Options{})
	found := false
	for _, r := range results {
		if r.ID == "a3" {
			found = true
		}
	}
	if !found {
		t.Errorf("wildcard otka* should reach a3, got %+v", results)
	}
}

func TestSearchFuzzyTypo(t *testing.T) {
	e := newTestEngine(t)

	// Without fuzzy search a typo finds nothing.
	if results := e.Search(context.Background(), "odmorr", Options{}); len(results) != 0 {
		t.Fatalf("exact search for typo should be empty, got %+v", results)
	}

	results := e.Search(context.Background(), "odmorr", Options{FuzzySearch: true})
	if len(results) == 0 {
		t.Fatal("fuzzy search should recover from the typo")
	}
	found := false
	for _, r := range results {
		if r.ID == "a1" || r.ID == "a2" {
			found = true
		}
	}
	if !found {
		t.Errorf("fuzzy results should include an odmor article, got %+v", results)
	}
}

func TestSearchCategoryFilter(t *testing.T) {
	e := newTestEngine(t)
	results := e.Search(context.Background(), "radnik", Options{Categories: []string{"odmori"}})
	for _, r := range results {
		if r.Category != "odmori" {
			t.Errorf("category filter leaked %s (%s)", r.ID, r.Category)
		}
	}
}

func TestSearchDeterministic(t *testing.T) {
	e := newTestEngine(t)
	first := e.Search(context.Background(), "odmor radnik", Options{})
	for i := 0; i < 5; i++ {
		again := e.Search(context.Background(), "odmor radnik", Options{})
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs:\n%+v\nvs\n%+v", i, first, again)
		}
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	e := newTestEngine(t)
	if results := e.Search(context.Background(), "", Options{}); len(results) != 0 {
		t.Errorf("empty query returned %+v", results)
	}
	if results := e.Search(context.Background(), "i na za", Options{}); len(results) != 0 {
		t.Errorf("stop-word query returned %+v", results)
	}
}

func TestSearchCaches(t *testing.T) {
	e := newTestEngine(t)
	e.Search(context.Background(), "odmor", Options{})
	hitsBefore, _ := e.CacheStats()
	e.Search(context.Background(), "odmor", Options{})
	hitsAfter, _ := e.CacheStats()
	if hitsAfter <= hitsBefore {
		t.Errorf("second identical search should hit the cache (hits %d -> %d)", hitsBefore, hitsAfter)
	}
}

func TestSearchCachedResultsAreCopies(t *testing.T) {
	e := newTestEngine(t)
	first := e.Search(context.Background(), "odmor", Options{})
	if len(first) == 0 {
		t.Fatal("expected results")
	}
	first[0].Title = "mutated"
	second := e.Search(context.Background(), "odmor", Options{})
	if second[0].Title == "mutated" {
		t.Error("cached results must not be aliased to caller slices")
	}
}

func TestBuildIndexClearsCache(t *testing.T) {
	e := newTestEngine(t)
	e.Search(context.Background(), "odmor", Options{})
	if err := e.BuildIndex(context.Background()); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	e.Search(context.Background(), "odmor", Options{})
	hits, _ := e.CacheStats()
	if hits != 0 {
		t.Errorf("rebuild should clear cached rankings, got %d hits", hits)
	}
}

func TestSuggestions(t *testing.T) {
	e := newTestEngine(t)
	got := e.Suggestions("odm", 5)
	if len(got) == 0 {
		t.Fatal("expected suggestions for prefix 'odm'")
	}
	for _, s := range got {
		if len(s) < 3 || s[:3] != "odm" {
			t.Errorf("suggestion %q does not start with the prefix", s)
		}
	}
	if got := e.Suggestions("žžž", 5); len(got) != 0 {
		t.Errorf("unknown prefix returned %v", got)
	}
}

func TestStatsAfterBuild(t *testing.T) {
	e := newTestEngine(t)
	stats := e.Stats()
	if stats.DocumentCount != 3 {
		t.Errorf("DocumentCount = %d, want 3", stats.DocumentCount)
	}
	if stats.TermCount == 0 || stats.TrigramCount == 0 {
		t.Errorf("index sections empty: %+v", stats)
	}
}

// engineCollectors builds unregistered collectors so counter values can be
// asserted without touching the default registry.
func engineCollectors() *metrics.Metrics {
	return &metrics.Metrics{
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "search_queries_total"}, []string{"result_type"}),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "search_latency_seconds"}, []string{"cache_status"}),
		SearchResultsCount:   prometheus.NewHistogram(prometheus.HistogramOpts{Name: "search_results_count"}),
		QueryCacheHits:       prometheus.NewCounter(prometheus.CounterOpts{Name: "query_cache_hits_total"}),
		QueryCacheMisses:     prometheus.NewCounter(prometheus.CounterOpts{Name: "query_cache_misses_total"}),
		DocsIndexedTotal:     prometheus.NewCounter(prometheus.CounterOpts{Name: "articles_indexed_total"}),
		IndexRebuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Name: "index_rebuild_duration_seconds"}),
	}
}

func TestCacheCountersDistinguishSharedCalls(t *testing.T) {
	m := engineCollectors()
	e := NewEngine(
		&corpus.SliceProvider{Docs: laborCorpus()},
		clock.NewFake(engineNow),
		Config{QueryCacheSize: 10},
		m,
	)
	if err := e.BuildIndex(context.Background()); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	e.Search(context.Background(), "odmor", Options{})
	if got := testutil.ToFloat64(m.QueryCacheMisses); got != 1 {
		t.Errorf("misses after first search = %v, want 1", got)
	}

	e.Search(context.Background(), "odmor", Options{})
	if got := testutil.ToFloat64(m.QueryCacheHits); got != 1 {
		t.Errorf("hits after repeat search = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.QueryCacheMisses); got != 1 {
		t.Errorf("misses after repeat search = %v, want 1", got)
	}

	// A caller that shared another caller's in-flight computation is
	// recorded under its own latency label and bumps neither counter.
	e.observe(time.Now(), "shared", 1)
	if got := testutil.ToFloat64(m.QueryCacheHits); got != 1 {
		t.Errorf("hits after shared call = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.QueryCacheMisses); got != 1 {
		t.Errorf("misses after shared call = %v, want 1", got)
	}
}
