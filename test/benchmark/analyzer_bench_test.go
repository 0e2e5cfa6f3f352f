// Package benchmark contains Go benchmarks for the text analyzer, index
// builder, and search pipeline, measuring throughput and allocation
// behaviour.
package benchmark

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pravnik/pravnik/internal/analyzer"
)

var sampleTexts = map[string]string{
	"short": "Radnik ima pravo na plaćeni godišnji odmor",
	"medium": `Radnik ima za svaku kalendarsku godinu pravo na plaćeni godišnji
        odmor u trajanju od najmanje četiri tjedna. Maloljetnik i radnik koji
        radi na poslovima na kojima ni uz primjenu mjera zaštite zdravlja i
        sigurnosti na radu nije moguće zaštititi radnika od štetnih utjecaja
        ima pravo na odmor od najmanje pet tjedana.`,
	"long": strings.Repeat(`Poslodavac je dužan radniku omogućiti korištenje
        godišnjeg odmora u neprekidnom trajanju. Raspored korištenja godišnjeg
        odmora utvrđuje poslodavac najkasnije do tridesetog lipnja tekuće
        godine. Jedan dan godišnjeg odmora radnik ima pravo koristiti kada on
        to želi uz obvezu da o tome obavijesti poslodavca najmanje tri dana
        prije korištenja. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				tokens := analyzer.Tokenize(text)
				_ = tokens
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			tokens := analyzer.Tokenize(text)
			_ = tokens
		}
	})
}

func BenchmarkStem(b *testing.B) {
	words := []string{
		"odmora", "godišnjega", "radnicima", "poslodavcima",
		"ugovorom", "otkazivanje", "naknadama", "korištenje",
		"pravima", "tjednima",
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		for _, w := range words {
			s := analyzer.Stem(w)
			_ = s
		}
	}
}

func BenchmarkTrigrams(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				grams := analyzer.Trigrams(text)
				_ = grams
			}
		})
	}
}

func BenchmarkSimilarity(b *testing.B) {
	pairs := [][2]string{
		{"odmor", "odmorr"},
		{"godisnji", "godišnjeg"},
		{"poslodavac", "poslodavca"},
		{"otkaz", "naknada"},
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		for _, p := range pairs {
			s := analyzer.Similarity(p[0], p[1])
			_ = s
		}
	}
}

func BenchmarkExtractKeywords(b *testing.B) {
	terms := analyzer.Terms(sampleTexts["long"])
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		kws := analyzer.ExtractKeywords(terms)
		_ = kws
	}
}

func BenchmarkTokenizeVaryingSize(b *testing.B) {
	sizes := []int{10, 100, 500, 1000, 5000}
	baseWord := "godišnji odmor radnika traje najmanje četiri tjedna "
	for _, size := range sizes {
		text := strings.Repeat(baseWord, size/len(baseWord)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				tokens := analyzer.Tokenize(text)
				_ = tokens
			}
		})
	}
}
