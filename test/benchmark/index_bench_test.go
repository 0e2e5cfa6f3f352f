package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/pravnik/pravnik/internal/corpus"
	"github.com/pravnik/pravnik/internal/index"
)

func syntheticCorpus(n int) []corpus.Document {
	docs := make([]corpus.Document, n)
	for i := 0; i < n; i++ {
		docs[i] = corpus.Document{
			ID:       fmt.Sprintf("art-%d", i),
			Title:    fmt.Sprintf("Članak %d o godišnjem odmoru", i),
			Content:  "Radnik ima pravo na plaćeni godišnji odmor od najmanje četiri tjedna za svaku kalendarsku godinu. Poslodavac utvrđuje raspored korištenja odmora.",
			Category: fmt.Sprintf("kategorija-%d", i%5),
			Keywords: []string{"odmor", "radnik", "poslodavac"},
		}
	}
	return docs
}

// BenchmarkIndexBuild measures full rebuild throughput at several corpus
// sizes.
func BenchmarkIndexBuild(b *testing.B) {
	sizes := []int{10, 100, 1000}
	for _, n := range sizes {
		docs := syntheticCorpus(n)
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			builder := index.NewBuilder()
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				snap, err := builder.Build(context.Background(), docs)
				if err != nil {
					b.Fatal(err)
				}
				_ = snap
			}
		})
	}
}

// BenchmarkPostingsLookup measures single-term lookup latency over a built
// snapshot.
func BenchmarkPostingsLookup(b *testing.B) {
	snap, err := index.NewBuilder().Build(context.Background(), syntheticCorpus(1000))
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		postings := snap.Postings("odmor")
		_ = postings
	}
}

// BenchmarkPostingsLookupParallel measures concurrent read throughput; the
// snapshot is immutable so reads never contend.
func BenchmarkPostingsLookupParallel(b *testing.B) {
	snap, err := index.NewBuilder().Build(context.Background(), syntheticCorpus(1000))
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			postings := snap.Postings("odmor")
			_ = postings
		}
	})
}

// BenchmarkHolderRebuild measures the atomic swap path under repeated
// rebuilds.
func BenchmarkHolderRebuild(b *testing.B) {
	docs := syntheticCorpus(100)
	h := index.NewHolder()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := h.Rebuild(context.Background(), docs); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSuggestTerms(b *testing.B) {
	snap, err := index.NewBuilder().Build(context.Background(), syntheticCorpus(1000))
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s := snap.SuggestTerms("odm", 5)
		_ = s
	}
}
