package feedback

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/pravnik/pravnik/pkg/clock"
)

// fakeBackend is an in-memory DurableStore for persistence tests.
type fakeBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: make(map[string][]byte)}
}

func (b *fakeBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	return v, ok, nil
}

func (b *fakeBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = append([]byte(nil), value...)
	return nil
}

func (b *fakeBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}

func (b *fakeBackend) Keys(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	backend := newFakeBackend()
	clk := clock.NewFake(feedbackNow)
	ctx := context.Background()

	r := NewRanker(Config{}, clk)
	r.RecordPositiveFeedback("odmor", "a1", 10)
	r.RecordPositiveFeedback("odmor", "a1", 10)

	store := NewStore(backend, "")
	if err := store.Save(ctx, r); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored := NewRanker(Config{}, clk)
	if err := store.Load(ctx, restored); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := restored.GetRankingScore("a1", "odmor")
	if math.Abs(got-22) > 0.001 {
		t.Errorf("restored score = %v, want 22", got)
	}

	stats := restored.GetStatistics()
	if stats.TotalEvents != 2 {
		t.Errorf("restored TotalEvents = %d, want 2", stats.TotalEvents)
	}
}

func TestStoreLoadMissingStateIsNoop(t *testing.T) {
	backend := newFakeBackend()
	clk := clock.NewFake(feedbackNow)
	r := NewRanker(Config{}, clk)

	if err := NewStore(backend, "").Load(context.Background(), r); err != nil {
		t.Fatalf("Load with no persisted state: %v", err)
	}
	if s := r.GetStatistics(); s.Pairs != 0 {
		t.Errorf("empty load produced state: %+v", s)
	}
}

func TestStoreLoadAppliesOverdueDecay(t *testing.T) {
	backend := newFakeBackend()
	ctx := context.Background()

	clk := clock.NewFake(feedbackNow)
	r := NewRanker(Config{}, clk)
	r.RecordPositiveFeedback("odmor", "a1", 20)
	store := NewStore(backend, "")
	if err := store.Save(ctx, r); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Load two weeks later: the restore applies the missed decay pass.
	lateClk := clock.NewFake(feedbackNow.Add(14 * 24 * time.Hour))
	restored := NewRanker(Config{}, lateClk)
	if err := store.Load(ctx, restored); err != nil {
		t.Fatalf("Load: %v", err)
	}

	factor := math.Pow(0.95, 2)
	want := 20*factor + 0.1*20*factor
	got := restored.GetRankingScore("a1", "odmor")
	if math.Abs(got-want) > 0.01 {
		t.Errorf("decayed-on-load score = %v, want %v", got, want)
	}
}
