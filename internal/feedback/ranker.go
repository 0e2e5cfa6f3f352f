// Package feedback accumulates positive user feedback per (keyword, document)
// pair and re-ranks search results with it. Scores decay lazily so stale
// signals lose influence without a background job.
package feedback

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/pravnik/pravnik/internal/analyzer"
	"github.com/pravnik/pravnik/internal/search/scorer"
	"github.com/pravnik/pravnik/pkg/clock"
)

const maxKeywordLength = 50

// Config tunes the ranker.
type Config struct {
	// DefaultBoost is applied when a feedback event carries no boost.
	DefaultBoost float64
	// MaxScore caps both per-pair and per-document aggregate scores.
	MaxScore float64
	// DecayInterval is the minimum gap between decay passes.
	DecayInterval time.Duration
	// DecayFactor is raised to elapsed-days/7 on each decay pass.
	DecayFactor float64
}

func (c *Config) applyDefaults() {
	if c.DefaultBoost <= 0 {
		c.DefaultBoost = 10
	}
	if c.MaxScore <= 0 {
		c.MaxScore = 1000
	}
	if c.DecayInterval <= 0 {
		c.DecayInterval = 7 * 24 * time.Hour
	}
	if c.DecayFactor <= 0 || c.DecayFactor >= 1 {
		c.DecayFactor = 0.95
	}
}

// PairRecord is the stored score for one (keyword, document) pair.
type PairRecord struct {
	Score       float64   `json:"score"`
	Count       int64     `json:"count"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// DocRecord aggregates every keyword's feedback for one document.
type DocRecord struct {
	TotalScore  float64          `json:"totalScore"`
	KeywordHits map[string]int64 `json:"keywordHits"`
}

// State is the persisted shape of the ranker.
type State struct {
	Keywords    map[string]map[string]*PairRecord `json:"keywords"`
	Documents   map[string]*DocRecord             `json:"documents"`
	LastCleanup time.Time                         `json:"lastCleanup"`
}

func newState(now time.Time) State {
	return State{
		Keywords:    make(map[string]map[string]*PairRecord),
		Documents:   make(map[string]*DocRecord),
		LastCleanup: now,
	}
}

// Stats is the observability snapshot.
type Stats struct {
	Keywords    int       `json:"keywords"`
	Pairs       int       `json:"pairs"`
	Documents   int       `json:"documents"`
	TotalEvents int64     `json:"totalEvents"`
	LastCleanup time.Time `json:"lastCleanup"`
}

// Ranker holds the in-memory feedback state. All methods are safe for
// concurrent use.
type Ranker struct {
	mu    sync.RWMutex
	state State
	cfg   Config
	clk   clock.Clock
}

// NewRanker creates an empty Ranker.
func NewRanker(cfg Config, clk clock.Clock) *Ranker {
	cfg.applyDefaults()
	if clk == nil {
		clk = clock.Real{}
	}
	return &Ranker{
		state: newState(clk.Now()),
		cfg:   cfg,
		clk:   clk,
	}
}

// normalizeKeyword lowercases, trims, strips non-word characters, and caps
// the keyword length.
func normalizeKeyword(keyword string) string {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	var b strings.Builder
	for _, r := range keyword {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	normalized := b.String()
	runes := []rune(normalized)
	if len(runes) > maxKeywordLength {
		normalized = string(runes[:maxKeywordLength])
	}
	return normalized
}

// RecordPositiveFeedback adds boost to the (keyword, document) pair and to
// the document's aggregate, both capped at MaxScore. A boost <= 0 uses the
// configured default. Returns false when the keyword normalizes to nothing.
func (r *Ranker) RecordPositiveFeedback(keyword, documentID string, boost float64) bool {
	kw := normalizeKeyword(keyword)
	if kw == "" || documentID == "" {
		return false
	}
	if boost <= 0 {
		boost = r.cfg.DefaultBoost
	}
	now := r.clk.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.maybeDecayLocked(now)

	docs := r.state.Keywords[kw]
	if docs == nil {
		docs = make(map[string]*PairRecord)
		r.state.Keywords[kw] = docs
	}
	pair := docs[documentID]
	if pair == nil {
		pair = &PairRecord{}
		docs[documentID] = pair
	}
	pair.Score = math.Min(pair.Score+boost, r.cfg.MaxScore)
	pair.Count++
	pair.LastUpdated = now

	doc := r.state.Documents[documentID]
	if doc == nil {
		doc = &DocRecord{KeywordHits: make(map[string]int64)}
		r.state.Documents[documentID] = doc
	}
	doc.TotalScore = math.Min(doc.TotalScore+boost, r.cfg.MaxScore)
	doc.KeywordHits[kw]++
	return true
}

// queryKeywords extracts the feedback-relevant keywords from a raw query:
// tokens with stopwords and short tokens dropped.
func queryKeywords(query string) []string {
	var keywords []string
	for _, token := range analyzer.Tokenize(query) {
		if len([]rune(token)) <= 2 {
			continue
		}
		keywords = append(keywords, token)
	}
	return keywords
}

// GetRankingScore computes the feedback score of documentID for query:
// the average of matched per-pair scores, plus 10% of the document's
// aggregate score, plus a flat 5-point bonus per matched keyword when more
// than one matched. Capped at MaxScore.
func (r *Ranker) GetRankingScore(documentID, query string) float64 {
	keywords := queryKeywords(query)
	now := r.clk.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.maybeDecayLocked(now)

	var sum float64
	matched := 0
	for _, kw := range keywords {
		if pair, ok := r.state.Keywords[kw][documentID]; ok {
			sum += pair.Score
			matched++
		}
	}
	var score float64
	if matched > 0 {
		score = sum / float64(matched)
	}
	if doc, ok := r.state.Documents[documentID]; ok {
		score += doc.TotalScore * 0.1
	}
	if matched > 1 {
		score += 5 * float64(matched)
	}
	return math.Min(score, r.cfg.MaxScore)
}

// RankResults orders results by feedback score descending. Scores within 5
// points of each other fall back to relevance descending, then to ascending
// numeric document id.
func (r *Ranker) RankResults(results []scorer.Result, query string) []scorer.Result {
	if len(results) < 2 {
		return results
	}
	type ranked struct {
		result   scorer.Result
		feedback float64
	}
	items := make([]ranked, len(results))
	for i, res := range results {
		items[i] = ranked{result: res, feedback: r.GetRankingScore(res.ID, query)}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if math.Abs(items[i].feedback-items[j].feedback) > 5 {
			return items[i].feedback > items[j].feedback
		}
		if items[i].result.Score != items[j].result.Score {
			return items[i].result.Score > items[j].result.Score
		}
		return docIDLess(items[i].result.ID, items[j].result.ID)
	})
	out := make([]scorer.Result, len(items))
	for i, item := range items {
		out[i] = item.result
	}
	return out
}

// docIDLess compares document ids by their embedded number when both carry
// one, falling back to a plain string compare.
func docIDLess(a, b string) bool {
	na, okA := docIDNumber(a)
	nb, okB := docIDNumber(b)
	if okA && okB && na != nb {
		return na < nb
	}
	return a < b
}

func docIDNumber(id string) (int64, bool) {
	start := -1
	for i, r := range id {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
		} else if start >= 0 {
			n, err := strconv.ParseInt(id[start:i], 10, 64)
			return n, err == nil
		}
	}
	if start < 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(id[start:], 10, 64)
	return n, err == nil
}

// maybeDecayLocked multiplies every stored score by DecayFactor^(days/7)
// when more than DecayInterval has passed since the last pass. Caller holds
// the write lock.
func (r *Ranker) maybeDecayLocked(now time.Time) {
	elapsed := now.Sub(r.state.LastCleanup)
	if elapsed <= r.cfg.DecayInterval {
		return
	}
	days := elapsed.Hours() / 24
	factor := math.Pow(r.cfg.DecayFactor, days/7)
	for _, docs := range r.state.Keywords {
		for _, pair := range docs {
			pair.Score *= factor
		}
	}
	for _, doc := range r.state.Documents {
		doc.TotalScore *= factor
	}
	r.state.LastCleanup = now
}

// GetStatistics reports the current state size.
func (r *Ranker) GetStatistics() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Stats{
		Keywords:    len(r.state.Keywords),
		Documents:   len(r.state.Documents),
		LastCleanup: r.state.LastCleanup,
	}
	for _, docs := range r.state.Keywords {
		s.Pairs += len(docs)
		for _, pair := range docs {
			s.TotalEvents += pair.Count
		}
	}
	return s
}

// snapshotLocked deep-copies the state for persistence. Caller holds at
// least the read lock.
func (r *Ranker) snapshotLocked() State {
	out := newState(r.state.LastCleanup)
	for kw, docs := range r.state.Keywords {
		copied := make(map[string]*PairRecord, len(docs))
		for id, pair := range docs {
			p := *pair
			copied[id] = &p
		}
		out.Keywords[kw] = copied
	}
	for id, doc := range r.state.Documents {
		hits := make(map[string]int64, len(doc.KeywordHits))
		for kw, n := range doc.KeywordHits {
			hits[kw] = n
		}
		out.Documents[id] = &DocRecord{TotalScore: doc.TotalScore, KeywordHits: hits}
	}
	return out
}

// restore replaces the in-memory state, normalizing nil maps and applying
// any overdue decay immediately.
func (r *Ranker) restore(s State) {
	if s.Keywords == nil {
		s.Keywords = make(map[string]map[string]*PairRecord)
	}
	if s.Documents == nil {
		s.Documents = make(map[string]*DocRecord)
	}
	for _, doc := range s.Documents {
		if doc.KeywordHits == nil {
			doc.KeywordHits = make(map[string]int64)
		}
	}
	now := r.clk.Now()
	if s.LastCleanup.IsZero() {
		s.LastCleanup = now
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
	r.maybeDecayLocked(now)
}
