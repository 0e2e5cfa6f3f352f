package analyzer

import "testing"

func TestTrigramsPadding(t *testing.T) {
	grams := Trigrams("ab")
	want := []string{"  a", " ab", "ab ", "b  "}
	if len(grams) != len(want) {
		t.Fatalf("got %d grams, want %d: %v", len(grams), len(want), grams)
	}
	for _, g := range want {
		if _, ok := grams[g]; !ok {
			t.Errorf("missing gram %q", g)
		}
	}
}

func TestTrigramsNormalizes(t *testing.T) {
	a := Trigrams("Šuma")
	b := Trigrams("suma")
	if len(a) != len(b) {
		t.Fatalf("diacritics should fold before gram extraction: %v vs %v", a, b)
	}
	for g := range a {
		if _, ok := b[g]; !ok {
			t.Errorf("gram %q missing after folding", g)
		}
	}
}

func TestTrigramsEmpty(t *testing.T) {
	if grams := Trigrams(""); len(grams) != 0 {
		t.Errorf("Trigrams(\"\") = %v, want empty", grams)
	}
}

func TestSimilarityIdentical(t *testing.T) {
	if got := Similarity("odmor", "odmor"); got != 1.0 {
		t.Errorf("Similarity(odmor, odmor) = %v, want 1.0", got)
	}
}

func TestSimilarityBothEmpty(t *testing.T) {
	if got := Similarity("", ""); got != 0 {
		t.Errorf("Similarity of two empty strings = %v, want 0", got)
	}
}

func TestSimilarityTypo(t *testing.T) {
	// A trailing doubled letter shares most grams but stays below the 0.7
	// fuzzy threshold, which is why trigram overlap exists as a second path.
	got := Similarity("odmorr", "odmor")
	if got <= 0.6 || got >= 0.7 {
		t.Errorf("Similarity(odmorr, odmor) = %v, want in (0.6, 0.7)", got)
	}
}

func TestSimilarityUnrelated(t *testing.T) {
	if got := Similarity("odmor", "xyzxyz"); got >= 0.2 {
		t.Errorf("Similarity of unrelated words = %v, want near 0", got)
	}
}
