package cache

import (
	"context"
	"time"
)

// DurableStore is the capability backing the persistent tier. Implementations
// exist for the local filesystem and Redis; each platform injects its own at
// construction.
type DurableStore interface {
	// Get returns the stored payload for key, reporting absence without error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores the payload. Implementations return an error wrapping
	// errors.ErrStoreQuota when the backend refused the write for lack of
	// space.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists every stored key.
	Keys(ctx context.Context) ([]string, error)
}
