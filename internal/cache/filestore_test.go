package cache

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pkgerrors "github.com/pravnik/pravnik/pkg/errors"
)

func newFileStore(t *testing.T, maxBytes int64) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), maxBytes)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func TestFileStoreRoundTrip(t *testing.T) {
	s := newFileStore(t, 0)
	ctx := context.Background()

	if err := s.Set(ctx, "key-1", []byte("payload"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := s.Get(ctx, "key-1")
	if err != nil || !ok {
		t.Fatalf("Get: %v, ok=%v", err, ok)
	}
	if !bytes.Equal(got, []byte("payload")) {
		t.Errorf("Get = %q", got)
	}
}

func TestFileStoreMissingKey(t *testing.T) {
	s := newFileStore(t, 0)
	_, ok, err := s.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("absent key must not error: %v", err)
	}
	if ok {
		t.Error("absent key reported present")
	}
}

func TestFileStoreOverwrite(t *testing.T) {
	s := newFileStore(t, 0)
	ctx := context.Background()
	s.Set(ctx, "k", []byte("one"), 0)
	s.Set(ctx, "k", []byte("two"), 0)
	got, _, _ := s.Get(ctx, "k")
	if string(got) != "two" {
		t.Errorf("Get = %q, want overwritten value", got)
	}
}

func TestFileStoreKeys(t *testing.T) {
	s := newFileStore(t, 0)
	ctx := context.Background()
	s.Set(ctx, "alpha", []byte("1"), 0)
	s.Set(ctx, "beta", []byte("2"), 0)

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("Keys = %v, want 2", keys)
	}
	found := map[string]bool{}
	for _, k := range keys {
		found[k] = true
	}
	if !found["alpha"] || !found["beta"] {
		t.Errorf("Keys = %v, want original key strings back", keys)
	}
}

func TestFileStoreDelete(t *testing.T) {
	s := newFileStore(t, 0)
	ctx := context.Background()
	s.Set(ctx, "k", []byte("v"), 0)
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("deleted key still present")
	}
	// Deleting again is not an error.
	if err := s.Delete(ctx, "k"); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestFileStoreQuota(t *testing.T) {
	s := newFileStore(t, 64)
	ctx := context.Background()

	if err := s.Set(ctx, "small", []byte("ok"), 0); err != nil {
		t.Fatalf("small write within quota failed: %v", err)
	}
	err := s.Set(ctx, "big", bytes.Repeat([]byte("x"), 128), 0)
	if !errors.Is(err, pkgerrors.ErrStoreQuota) {
		t.Errorf("over-quota write = %v, want ErrStoreQuota", err)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, 0)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()
	if err := s.Set(ctx, "k", []byte("payload"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	var name string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), fileExt) {
			name = e.Name()
		}
	}
	if name == "" {
		t.Fatal("no cache file written")
	}
	// Flip a payload byte; the CRC check must reject the file.
	path := filepath.Join(dir, name)
	data, _ := os.ReadFile(path)
	data[len(data)-1] ^= 0xFF
	os.WriteFile(path, data, 0o644)

	if _, _, err := s.Get(ctx, "k"); !errors.Is(err, pkgerrors.ErrChecksum) {
		t.Errorf("corrupt file read = %v, want ErrChecksum", err)
	}
}
