package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeCorpus(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "articles.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing corpus file: %v", err)
	}
	return path
}

func TestFileProviderBareArray(t *testing.T) {
	path := writeCorpus(t, `[
		{"id": "a1", "title": "Godišnji odmor", "content": "Radnik ima pravo na odmor.", "category": "odmori"},
		{"id": "a2", "title": "Plaća", "content": "Plaća se isplaćuje mjesečno.", "category": "place"}
	]`)
	docs, err := NewFileProvider(path).Documents(context.Background())
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	if docs[0].ID != "a1" || docs[0].Title != "Godišnji odmor" {
		t.Errorf("first doc = %+v", docs[0])
	}
}

func TestFileProviderWrappedObject(t *testing.T) {
	path := writeCorpus(t, `{"articles": [{"id": "a1", "title": "Odmor", "content": "tekst"}]}`)
	docs, err := NewFileProvider(path).Documents(context.Background())
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "a1" {
		t.Errorf("docs = %+v", docs)
	}
}

func TestFileProviderMissingFile(t *testing.T) {
	if _, err := NewFileProvider("/nonexistent/articles.json").Documents(context.Background()); err == nil {
		t.Error("missing file should error")
	}
}

func TestFileProviderMalformed(t *testing.T) {
	path := writeCorpus(t, `{invalid`)
	if _, err := NewFileProvider(path).Documents(context.Background()); err == nil {
		t.Error("malformed JSON should error")
	}
}

func TestSliceProvider(t *testing.T) {
	p := &SliceProvider{Docs: []Document{{ID: "a1"}}}
	docs, err := p.Documents(context.Background())
	if err != nil || len(docs) != 1 {
		t.Errorf("Documents = %v, %v", docs, err)
	}
}
