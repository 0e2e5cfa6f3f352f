package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// FileProvider loads articles from a JSON file containing either a bare
// array of documents or an object with an "articles" array.
type FileProvider struct {
	Path   string
	logger *slog.Logger
}

// NewFileProvider creates a provider reading from path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{
		Path:   path,
		logger: slog.Default().With("component", "corpus-file"),
	}
}

func (p *FileProvider) Documents(ctx context.Context) ([]Document, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus file %s: %w", p.Path, err)
	}

	var docs []Document
	if err := json.Unmarshal(data, &docs); err == nil {
		p.logger.Info("corpus loaded", "path", p.Path, "articles", len(docs))
		return docs, nil
	}

	var wrapped struct {
		Articles []Document `json:"articles"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parsing corpus file %s: %w", p.Path, err)
	}
	p.logger.Info("corpus loaded", "path", p.Path, "articles", len(wrapped.Articles))
	return wrapped.Articles, nil
}
