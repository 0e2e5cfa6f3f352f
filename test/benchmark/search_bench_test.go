package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/pravnik/pravnik/internal/corpus"
	"github.com/pravnik/pravnik/internal/search"
	"github.com/pravnik/pravnik/internal/search/parser"
	"github.com/pravnik/pravnik/pkg/clock"
)

// BenchmarkQueryParse measures query parsing latency for queries of varying
// complexity.
func BenchmarkQueryParse(b *testing.B) {
	queries := []struct {
		name  string
		query string
	}{
		{"simple", "godišnji odmor"},
		{"phrase", `"godišnji odmor" trajanje`},
		{"required", "+odmor +radnik naknada"},
		{"excluded", "odmor -otkaz -prestanak"},
		{"wildcard", "odmor rad*"},
		{"complex", `"plaćeni odmor" +radnik -otkaz god* naknada`},
		{"long", "radnik poslodavac ugovor odmor naknada plaća tjedan mjesec godina raspored"},
	}

	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				parsed := parser.Parse(q.query)
				_ = parsed
			}
		})
	}
}

func newBenchEngine(b *testing.B, numDocs int) *search.Engine {
	b.Helper()
	e := search.NewEngine(
		&corpus.SliceProvider{Docs: syntheticCorpus(numDocs)},
		clock.Real{},
		search.Config{QueryCacheSize: 100},
		nil,
	)
	if err := e.BuildIndex(context.Background()); err != nil {
		b.Fatal(err)
	}
	return e
}

// BenchmarkSearchUncached measures the full pipeline with the query cache
// defeated by unique queries.
func BenchmarkSearchUncached(b *testing.B) {
	sizes := []int{100, 1000}
	for _, n := range sizes {
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			e := newBenchEngine(b, n)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				results := e.Search(context.Background(), fmt.Sprintf("odmor radnik %d", i), search.Options{})
				_ = results
			}
		})
	}
}

// BenchmarkSearchCached measures the cache hit path.
func BenchmarkSearchCached(b *testing.B) {
	e := newBenchEngine(b, 1000)
	e.Search(context.Background(), "odmor radnik", search.Options{})
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		results := e.Search(context.Background(), "odmor radnik", search.Options{})
		_ = results
	}
}

// BenchmarkSearchFuzzy measures the trigram fallback on a query that matches
// nothing exactly.
func BenchmarkSearchFuzzy(b *testing.B) {
	e := newBenchEngine(b, 1000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		results := e.Search(context.Background(), fmt.Sprintf("odmorr %d", i), search.Options{FuzzySearch: true})
		_ = results
	}
}

func BenchmarkSearchParallel(b *testing.B) {
	e := newBenchEngine(b, 1000)
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			results := e.Search(context.Background(), "odmor radnik", search.Options{})
			_ = results
		}
	})
}
