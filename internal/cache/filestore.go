package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	pkgerrors "github.com/pravnik/pravnik/pkg/errors"
)

// FileStore is a filesystem-backed DurableStore: one file per key with a
// fixed binary header, the original key, and a CRC-32 checksummed payload.
// Writes go to a temp file first and are renamed into place.
const (
	fileMagic   uint32 = 0x50564358 // "PVCX"
	fileVersion uint32 = 1
	fileExt            = ".pvc"
)

type FileStore struct {
	dir string
	// maxBytes caps the total payload volume; 0 means unlimited. Writes
	// beyond the cap fail with ErrStoreQuota so the cache can evict and
	// retry.
	maxBytes int64
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string, maxBytes int64) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &FileStore{dir: dir, maxBytes: maxBytes}, nil
}

func (s *FileStore) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, fmt.Sprintf("%x%s", sum[:16], fileExt))
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading cache file: %w", err)
	}
	_, payload, err := decodeFile(data)
	if err != nil {
		return nil, false, fmt.Errorf("decoding cache file for %q: %w", key, err)
	}
	return payload, true, nil
}

func (s *FileStore) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.maxBytes > 0 {
		used, err := s.usage()
		if err != nil {
			return err
		}
		if used+int64(len(value)) > s.maxBytes {
			return fmt.Errorf("cache directory over %d bytes: %w", s.maxBytes, pkgerrors.ErrStoreQuota)
		}
	}

	data := encodeFile(key, value)
	finalPath := s.path(key)
	tmpPath := finalPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		if errors.Is(err, syscall.ENOSPC) {
			return fmt.Errorf("writing cache file: %w", pkgerrors.ErrStoreQuota)
		}
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming cache file: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing cache file: %w", err)
	}
	return nil
}

func (s *FileStore) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading cache directory: %w", err)
	}
	var keys []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		key, _, err := decodeFile(data)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *FileStore) usage() (int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("reading cache directory: %w", err)
	}
	var total int64
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

// encodeFile lays out: magic, version, key length, payload length, payload
// CRC-32, key bytes, payload bytes.
func encodeFile(key string, payload []byte) []byte {
	keyBytes := []byte(key)
	buf := make([]byte, 20, 20+len(keyBytes)+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], fileMagic)
	binary.LittleEndian.PutUint32(buf[4:8], fileVersion)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(keyBytes)))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(payload)))
	binary.LittleEndian.PutUint32(buf[16:20], crc32.ChecksumIEEE(payload))
	buf = append(buf, keyBytes...)
	buf = append(buf, payload...)
	return buf
}

func decodeFile(data []byte) (string, []byte, error) {
	if len(data) < 20 {
		return "", nil, fmt.Errorf("file too short")
	}
	if binary.LittleEndian.Uint32(data[0:4]) != fileMagic {
		return "", nil, fmt.Errorf("bad magic bytes")
	}
	keyLen := int(binary.LittleEndian.Uint32(data[8:12]))
	payloadLen := int(binary.LittleEndian.Uint32(data[12:16]))
	want := binary.LittleEndian.Uint32(data[16:20])
	if len(data) != 20+keyLen+payloadLen {
		return "", nil, fmt.Errorf("truncated file")
	}
	key := string(data[20 : 20+keyLen])
	payload := data[20+keyLen:]
	if crc32.ChecksumIEEE(payload) != want {
		return "", nil, fmt.Errorf("payload checksum mismatch: %w", pkgerrors.ErrChecksum)
	}
	return key, payload, nil
}
