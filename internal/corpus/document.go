// Package corpus defines the legal-article document model and the Provider
// interface through which the engine receives articles for indexing.
// Providers exist for static slices, JSON files, and Postgres.
package corpus

import (
	"context"
	"time"
)

// Document is a single legal article. The engine only reads documents during
// indexing; ownership stays with the providing store.
type Document struct {
	ID           string                 `json:"id"`
	Title        string                 `json:"title"`
	Content      string                 `json:"content"`
	Category     string                 `json:"category"`
	Keywords     []string               `json:"keywords,omitempty"`
	Translations map[string]Translation `json:"translations,omitempty"`
	FAQs         []FAQ                  `json:"faqs,omitempty"`
	Examples     []Example              `json:"examples,omitempty"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}

// Translation is a language variant of an article.
type Translation struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Keywords []string `json:"keywords,omitempty"`
}

// FAQ is a question/answer pair attached to an article.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Example is a worked scenario attached to an article.
type Example struct {
	Scenario string `json:"scenario"`
	Outcome  string `json:"outcome"`
}

// Provider supplies the full article collection for an index rebuild.
type Provider interface {
	Documents(ctx context.Context) ([]Document, error)
}

// SliceProvider serves a fixed in-memory document slice. Used in tests and
// for embedding the engine with a caller-owned corpus.
type SliceProvider struct {
	Docs []Document
}

func (p *SliceProvider) Documents(ctx context.Context) ([]Document, error) {
	return p.Docs, nil
}
