package scorer

import (
	"context"
	"testing"
	"time"

	"github.com/pravnik/pravnik/internal/corpus"
	"github.com/pravnik/pravnik/internal/index"
)

var testNow = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

func buildSnapshot(t *testing.T) *index.Snapshot {
	t.Helper()
	docs := []corpus.Document{
		{
			ID:        "a1",
			Title:     "Godišnji odmor",
			Content:   "Radnik ima pravo na plaćeni godišnji odmor od najmanje četiri tjedna. Odmor se koristi u cijelosti.",
			Category:  "odmori",
			Keywords:  []string{"odmor"},
			UpdatedAt: testNow.AddDate(0, 0, -10),
		},
		{
			ID:        "a2",
			Title:     "Stanka i dnevni odmor",
			Content:   "Radnik koji radi najmanje šest sati dnevno ima pravo na stanku.",
			Category:  "radno-vrijeme",
			Keywords:  []string{"stanka"},
			UpdatedAt: testNow.AddDate(-1, 0, 0),
		},
		{
			ID:        "a3",
			Title:     "Plaća",
			Content:   "Poslodavac je dužan isplatiti plaću najkasnije do petnaestog dana u mjesecu.",
			Category:  "place",
			Keywords:  []string{"plaća"},
			UpdatedAt: testNow.AddDate(-1, 0, 0),
		},
	}
	snap, err := index.NewBuilder().Build(context.Background(), docs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return snap
}

// resolve pulls postings for a stemmed term the way the engine does.
func resolve(snap *index.Snapshot, term string, kind TermKind) ResolvedTerm {
	postings := snap.Postings(term)
	matches := make(index.Postings, len(postings))
	for docID, tf := range postings {
		matches[docID] = tf
	}
	return ResolvedTerm{
		Text:    term,
		Kind:    kind,
		Matches: matches,
		DocFreq: len(postings),
		Stems:   []string{term},
	}
}

func candidates(terms ...ResolvedTerm) index.DocSet {
	pool := index.DocSet{}
	for _, rt := range terms {
		for docID := range rt.Matches {
			pool[docID] = struct{}{}
		}
	}
	return pool
}

func TestScoreBounds(t *testing.T) {
	snap := buildSnapshot(t)
	rt := resolve(snap, "odmor", KindPlain)
	results := Score(snap, []ResolvedTerm{rt}, candidates(rt), Params{Now: testNow})
	if len(results) == 0 {
		t.Fatal("expected results for 'odmor'")
	}
	for _, r := range results {
		if r.Score <= 0 || r.Score > 1 {
			t.Errorf("score for %s = %v, want in (0, 1]", r.ID, r.Score)
		}
	}
}

func TestScoreTitleMatchRanksFirst(t *testing.T) {
	snap := buildSnapshot(t)
	rt := resolve(snap, "odmor", KindPlain)
	results := Score(snap, []ResolvedTerm{rt}, candidates(rt), Params{Now: testNow})
	if len(results) < 2 {
		t.Fatalf("expected both odmor articles, got %v", results)
	}
	if results[0].ID != "a1" {
		t.Errorf("a1 (title + keyword + recency) should rank first, got %s", results[0].ID)
	}
}

func TestScoreMinRelevanceFilters(t *testing.T) {
	snap := buildSnapshot(t)
	rt := resolve(snap, "odmor", KindPlain)
	all := Score(snap, []ResolvedTerm{rt}, candidates(rt), Params{Now: testNow})
	filtered := Score(snap, []ResolvedTerm{rt}, candidates(rt), Params{Now: testNow, MinRelevance: 0.99})
	if len(filtered) >= len(all) {
		t.Errorf("MinRelevance 0.99 kept %d of %d results", len(filtered), len(all))
	}
}

func TestScoreMaxResultsTruncates(t *testing.T) {
	snap := buildSnapshot(t)
	rt := resolve(snap, "odmor", KindPlain)
	results := Score(snap, []ResolvedTerm{rt}, candidates(rt), Params{Now: testNow, MaxResults: 1})
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}

func TestScoreUnknownCandidateSkipped(t *testing.T) {
	snap := buildSnapshot(t)
	rt := resolve(snap, "odmor", KindPlain)
	rt.Matches["ghost"] = 1.0
	pool := candidates(rt)
	results := Score(snap, []ResolvedTerm{rt}, pool, Params{Now: testNow})
	for _, r := range results {
		if r.ID == "ghost" {
			t.Error("candidate missing from the snapshot must be skipped")
		}
	}
}

func TestScoreSortByTitle(t *testing.T) {
	snap := buildSnapshot(t)
	rt := resolve(snap, "odmor", KindPlain)
	results := Score(snap, []ResolvedTerm{rt}, candidates(rt), Params{
		Now: testNow, SortBy: "title", SortOrder: "asc",
	})
	for i := 1; i < len(results); i++ {
		if results[i-1].Title > results[i].Title {
			t.Errorf("titles out of order: %q before %q", results[i-1].Title, results[i].Title)
		}
	}
}

func TestScoreSortByDateDesc(t *testing.T) {
	snap := buildSnapshot(t)
	rt := resolve(snap, "odmor", KindPlain)
	results := Score(snap, []ResolvedTerm{rt}, candidates(rt), Params{
		Now: testNow, SortBy: "date", SortOrder: "desc",
	})
	for i := 1; i < len(results); i++ {
		if results[i-1].UpdatedAt.Before(results[i].UpdatedAt) {
			t.Error("dates out of descending order")
		}
	}
}

func TestTermKindWeights(t *testing.T) {
	cases := []struct {
		kind TermKind
		want float64
	}{
		{KindRequired, 2.0},
		{KindPhrase, 1.5},
		{KindWildcard, 1.3},
		{KindPlain, 1.0},
	}
	for _, tc := range cases {
		if got := tc.kind.Weight(); got != tc.want {
			t.Errorf("Weight(%v) = %v, want %v", tc.kind, got, tc.want)
		}
	}
}

func TestRecencyBonusTiers(t *testing.T) {
	cases := []struct {
		age  time.Duration
		want float64
	}{
		{10 * 24 * time.Hour, 1.1},
		{60 * 24 * time.Hour, 1.05},
		{200 * 24 * time.Hour, 1.0},
	}
	for _, tc := range cases {
		if got := recencyBonus(testNow.Add(-tc.age), testNow); got != tc.want {
			t.Errorf("recencyBonus(age %v) = %v, want %v", tc.age, got, tc.want)
		}
	}
	if got := recencyBonus(time.Time{}, testNow); got != 1.0 {
		t.Errorf("recencyBonus(zero time) = %v, want 1.0", got)
	}
}

func TestMatchedTermsReported(t *testing.T) {
	snap := buildSnapshot(t)
	odmor := resolve(snap, "odmor", KindPlain)
	radnik := resolve(snap, "radnik", KindPlain)
	results := Score(snap, []ResolvedTerm{odmor, radnik}, candidates(odmor, radnik), Params{Now: testNow})
	for _, r := range results {
		if r.ID == "a1" && len(r.MatchedTerms) != 2 {
			t.Errorf("a1 matched terms = %v, want both", r.MatchedTerms)
		}
	}
}
