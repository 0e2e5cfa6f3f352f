package index

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/pravnik/pravnik/internal/analyzer"
	"github.com/pravnik/pravnik/internal/corpus"
)

// field is one weighted text source of a document.
type field struct {
	text    string
	weight  FieldWeight
	isTitle bool
	isKw    bool
}

// Builder constructs Snapshots from a document collection.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder() *Builder {
	return &Builder{
		logger: slog.Default().With("component", "index-builder"),
	}
}

// Build indexes all documents into a fresh Snapshot. Documents that fail to
// index are logged and skipped; they never abort the build.
func (b *Builder) Build(ctx context.Context, docs []corpus.Document) (*Snapshot, error) {
	snap := EmptySnapshot()
	totalBodyLen := 0
	indexed := 0

	for i := range docs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("index build cancelled: %w", err)
		}
		doc := &docs[i]
		if doc.ID == "" {
			b.logger.Warn("skipping article without id", "position", i)
			continue
		}
		if err := b.indexDocument(snap, doc); err != nil {
			b.logger.Error("skipping article", "article_id", doc.ID, "error", err)
			continue
		}
		info := snap.docs[doc.ID]
		totalBodyLen += info.BodyLength
		indexed++
	}

	snap.stats = CorpusStats{
		TotalDocs:    indexed,
		TermCount:    len(snap.terms),
		TrigramCount: len(snap.trigrams),
		PhraseCount:  len(snap.phrases),
	}
	if indexed > 0 {
		snap.stats.AvgBodyLength = float64(totalBodyLen) / float64(indexed)
	}

	snap.vocabulary = make([]string, 0, len(snap.terms))
	for term := range snap.terms {
		snap.vocabulary = append(snap.vocabulary, term)
	}
	sort.Strings(snap.vocabulary)

	kwSet := make(map[string]struct{})
	for _, info := range snap.docs {
		for _, kw := range info.Keywords {
			kwSet[strings.ToLower(kw)] = struct{}{}
		}
	}
	snap.keywords = make([]string, 0, len(kwSet))
	for kw := range kwSet {
		snap.keywords = append(snap.keywords, kw)
	}
	sort.Strings(snap.keywords)

	b.logger.Info("index built",
		"articles", indexed,
		"terms", len(snap.terms),
		"trigrams", len(snap.trigrams),
		"phrases", len(snap.phrases),
	)
	return snap, nil
}

// indexDocument adds one document to every index. A panic while analysing a
// document is converted to an error so the build can skip it.
func (b *Builder) indexDocument(snap *Snapshot, doc *corpus.Document) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analysing article: %v", r)
		}
	}()

	bodyLen := len(analyzer.Terms(doc.Content))
	info := DocInfo{
		ID:         doc.ID,
		Title:      doc.Title,
		Category:   doc.Category,
		Keywords:   append([]string(nil), doc.Keywords...),
		BodyLength: bodyLen,
		UpdatedAt:  doc.UpdatedAt,
	}

	for _, f := range documentFields(doc) {
		if strings.TrimSpace(f.text) == "" {
			continue
		}
		terms := analyzer.Terms(f.text)
		for _, t := range terms {
			stem := analyzer.Stem(t)
			postings, ok := snap.terms[stem]
			if !ok {
				postings = Postings{}
				snap.terms[stem] = postings
			}
			if _, present := postings[doc.ID]; !present {
				info.DistinctTerms++
			}
			postings[doc.ID] += float64(f.weight)
			info.TotalWeighted += float64(f.weight)

			if f.isTitle {
				addToSet(snap.titleTerms, stem, doc.ID)
			}
			if f.isKw {
				addToSet(snap.kwTerms, stem, doc.ID)
			}
		}
		for gram := range analyzer.Trigrams(f.text) {
			addToSet(snap.trigrams, gram, doc.ID)
		}
		for _, phrase := range extractPhrases(f.text) {
			addToSet(snap.phrases, phrase, doc.ID)
		}
	}

	if doc.Category != "" {
		addToSet(snap.categories, doc.Category, doc.ID)
	}
	snap.docs[doc.ID] = info

	if c := analyzer.Complexity(doc.Content); c > 40 {
		b.logger.Debug("article reads as complex", "article_id", doc.ID, "complexity", c)
	}
	return nil
}

// documentFields enumerates the weighted text sources of a document.
func documentFields(doc *corpus.Document) []field {
	fields := []field{
		{text: doc.Title, weight: WeightTitle, isTitle: true},
		{text: strings.Join(doc.Keywords, " "), weight: WeightKeyword, isKw: true},
		{text: doc.Content, weight: WeightBody},
	}
	for _, tr := range doc.Translations {
		fields = append(fields,
			field{text: tr.Title, weight: WeightTranslatedTitle, isTitle: true},
			field{text: tr.Content, weight: WeightTranslatedBody},
			field{text: strings.Join(tr.Keywords, " "), weight: WeightKeyword, isKw: true},
		)
	}
	for _, faq := range doc.FAQs {
		fields = append(fields,
			field{text: faq.Question, weight: WeightFAQQuestion},
			field{text: faq.Answer, weight: WeightFAQAnswer},
		)
	}
	for _, ex := range doc.Examples {
		fields = append(fields, field{text: ex.Scenario + " " + ex.Outcome, weight: WeightExample})
	}
	return fields
}

// extractPhrases returns the lowercased adjacent 2- and 3-word windows of
// text in which every word is longer than 2 characters.
func extractPhrases(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var phrases []string
	for i := 0; i < len(words); i++ {
		if len(words[i]) <= 2 {
			continue
		}
		if i+1 < len(words) && len(words[i+1]) > 2 {
			phrases = append(phrases, words[i]+" "+words[i+1])
			if i+2 < len(words) && len(words[i+2]) > 2 {
				phrases = append(phrases, words[i]+" "+words[i+1]+" "+words[i+2])
			}
		}
	}
	return phrases
}

func addToSet(m map[string]DocSet, key, docID string) {
	set, ok := m[key]
	if !ok {
		set = DocSet{}
		m[key] = set
	}
	set[docID] = struct{}{}
}

// Holder publishes the current Snapshot. Rebuilds are serialised; readers
// are never blocked and always see a complete snapshot.
type Holder struct {
	current   atomic.Pointer[Snapshot]
	rebuildMu sync.Mutex
	builder   *Builder
	logger    *slog.Logger
}

// NewHolder creates a Holder starting with an empty snapshot.
func NewHolder() *Holder {
	h := &Holder{
		builder: NewBuilder(),
		logger:  slog.Default().With("component", "index"),
	}
	h.current.Store(EmptySnapshot())
	return h
}

// Current returns the latest complete snapshot.
func (h *Holder) Current() *Snapshot {
	return h.current.Load()
}

// Rebuild indexes the given documents and atomically swaps the new snapshot
// in. Concurrent rebuilds are serialised; concurrent readers keep the old
// snapshot until the swap.
func (h *Holder) Rebuild(ctx context.Context, docs []corpus.Document) error {
	h.rebuildMu.Lock()
	defer h.rebuildMu.Unlock()

	snap, err := h.builder.Build(ctx, docs)
	if err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}
	h.current.Store(snap)
	return nil
}
