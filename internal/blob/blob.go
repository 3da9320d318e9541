// Package blob provides the content-addressed blob store collaborator
// for large content bodies. Blobs are keyed by SHA-256 hex digest and
// immutable: writing the same bytes twice is a no-op.
package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists content bodies under a base directory, sharded by the
// first two hash characters to keep directories shallow.
type Store struct {
	baseDir string
}

// NewStore creates a blob store rooted at baseDir.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

// Hash returns the SHA-256 hex digest that addresses the given content.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Put stores the content and returns its hash. Existing blobs are left
// untouched; the write goes through a temp file and rename so a partial
// write never becomes addressable.
func (s *Store) Put(content []byte) (string, error) {
	hash := Hash(content)
	path := s.pathFor(hash)

	if _, err := os.Stat(path); err == nil {
		return hash, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create blob shard: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".blob-*")
	if err != nil {
		return "", fmt.Errorf("create blob temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("commit blob: %w", err)
	}
	return hash, nil
}

// Get returns the content addressed by hash, or os.ErrNotExist.
func (s *Store) Get(hash string) ([]byte, error) {
	content, err := os.ReadFile(s.pathFor(hash))
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", hash, err)
	}
	return content, nil
}

// Has reports whether a blob exists for the hash.
func (s *Store) Has(hash string) bool {
	_, err := os.Stat(s.pathFor(hash))
	return err == nil
}

func (s *Store) pathFor(hash string) string {
	shard := "00"
	if len(hash) >= 2 {
		shard = hash[:2]
	}
	return filepath.Join(s.baseDir, shard, hash)
}
