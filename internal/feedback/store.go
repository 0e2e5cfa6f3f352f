package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pravnik/pravnik/internal/cache"
	"github.com/pravnik/pravnik/pkg/resilience"
)

// Store persists the ranker state through a DurableStore under a fixed key,
// so feedback survives restarts regardless of which backend the deployment
// uses.
type Store struct {
	backend cache.DurableStore
	key     string
	logger  *slog.Logger
}

// NewStore wraps a durable backend. key defaults to "feedback:state".
func NewStore(backend cache.DurableStore, key string) *Store {
	if key == "" {
		key = "feedback:state"
	}
	return &Store{
		backend: backend,
		key:     key,
		logger:  slog.Default().With("component", "feedback-store"),
	}
}

// Load restores persisted state into the ranker. A missing record is not an
// error; the ranker keeps its empty state.
func (s *Store) Load(ctx context.Context, r *Ranker) error {
	raw, ok, err := s.backend.Get(ctx, s.key)
	if err != nil {
		return fmt.Errorf("loading feedback state: %w", err)
	}
	if !ok {
		s.logger.Info("no persisted feedback state found")
		return nil
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return fmt.Errorf("decoding feedback state: %w", err)
	}
	r.restore(state)
	s.logger.Info("feedback state restored",
		"keywords", len(state.Keywords),
		"documents", len(state.Documents),
	)
	return nil
}

// Save writes the ranker's current state. Feedback state never expires, so
// the TTL is zero.
func (s *Store) Save(ctx context.Context, r *Ranker) error {
	r.mu.RLock()
	state := r.snapshotLocked()
	r.mu.RUnlock()

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding feedback state: %w", err)
	}
	if err := s.backend.Set(ctx, s.key, raw, 0); err != nil {
		return fmt.Errorf("saving feedback state: %w", err)
	}
	return nil
}

// StartAutoSave persists the state on interval until ctx is cancelled, with
// a final save on shutdown.
func (s *Store) StartAutoSave(ctx context.Context, r *Ranker, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				err := resilience.WithTimeout(context.Background(), 5*time.Second, "feedback-save", func(ctx context.Context) error {
					return s.Save(ctx, r)
				})
				if err != nil {
					s.logger.Error("final feedback save failed", "error", err)
				}
				return
			case <-ticker.C:
				err := resilience.WithTimeout(ctx, 5*time.Second, "feedback-save", func(ctx context.Context) error {
					return s.Save(ctx, r)
				})
				if err != nil {
					s.logger.Error("periodic feedback save failed", "error", err)
				}
			}
		}
	}()
}
