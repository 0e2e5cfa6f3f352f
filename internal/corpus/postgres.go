package corpus

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pravnik/pravnik/pkg/postgres"
	"github.com/pravnik/pravnik/pkg/resilience"
)

// PostgresProvider loads articles from the articles table. Translations,
// FAQs, and examples are stored as JSONB columns.
type PostgresProvider struct {
	client *postgres.Client
	logger *slog.Logger
}

// NewPostgresProvider creates a provider backed by the given client.
func NewPostgresProvider(client *postgres.Client) *PostgresProvider {
	return &PostgresProvider{
		client: client,
		logger: slog.Default().With("component", "corpus-postgres"),
	}
}

const selectArticles = `
SELECT id, title, content, category, keywords, translations, faqs, examples, updated_at
FROM articles
ORDER BY id`

// Documents fetches the full corpus. Transient query failures are retried
// with backoff; a rebuild against a briefly unavailable database should not
// fail outright.
func (p *PostgresProvider) Documents(ctx context.Context) ([]Document, error) {
	var docs []Document
	err := resilience.Retry(ctx, "corpus-fetch", resilience.RetryConfig{}, func() error {
		fetched, err := p.fetch(ctx)
		if err != nil {
			return err
		}
		docs = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.logger.Info("corpus loaded", "articles", len(docs))
	return docs, nil
}

func (p *PostgresProvider) fetch(ctx context.Context) ([]Document, error) {
	rows, err := p.client.DB.QueryContext(ctx, selectArticles)
	if err != nil {
		return nil, fmt.Errorf("querying articles: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanArticle(rows)
		if err != nil {
			// A single malformed row must not abort the rebuild.
			p.logger.Error("skipping malformed article row", "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return docs, fmt.Errorf("iterating articles: %w", err)
	}
	return docs, nil
}

func scanArticle(rows *sql.Rows) (Document, error) {
	var (
		doc          Document
		keywords     []byte
		translations []byte
		faqs         []byte
		examples     []byte
	)
	if err := rows.Scan(
		&doc.ID, &doc.Title, &doc.Content, &doc.Category,
		&keywords, &translations, &faqs, &examples, &doc.UpdatedAt,
	); err != nil {
		return Document{}, fmt.Errorf("scanning article: %w", err)
	}
	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &doc.Keywords); err != nil {
			return Document{}, fmt.Errorf("parsing keywords for %s: %w", doc.ID, err)
		}
	}
	if len(translations) > 0 {
		if err := json.Unmarshal(translations, &doc.Translations); err != nil {
			return Document{}, fmt.Errorf("parsing translations for %s: %w", doc.ID, err)
		}
	}
	if len(faqs) > 0 {
		if err := json.Unmarshal(faqs, &doc.FAQs); err != nil {
			return Document{}, fmt.Errorf("parsing faqs for %s: %w", doc.ID, err)
		}
	}
	if len(examples) > 0 {
		if err := json.Unmarshal(examples, &doc.Examples); err != nil {
			return Document{}, fmt.Errorf("parsing examples for %s: %w", doc.ID, err)
		}
	}
	return doc, nil
}
