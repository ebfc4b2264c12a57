package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LocalStore persists blobs on the local filesystem under a single
// directory. Keys are random and collision-resistant.
type LocalStore struct {
	dir    string
	logger zerolog.Logger
}

// NewLocalStore creates the upload directory if needed and returns a store
// rooted at it.
func NewLocalStore(dir string, logger zerolog.Logger) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory must not be empty")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStore{
		dir:    dir,
		logger: logger.With().Str("component", "local_storage").Logger(),
	}, nil
}

// Put writes the payload under a fresh key and returns it. The type hint
// picks the file extension so serving tools can infer content types.
func (s *LocalStore) Put(_ context.Context, data []byte, typeHint string) (string, error) {
	key := uuid.NewString() + extensionFor(typeHint)

	path := filepath.Join(s.dir, key)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write blob %s: %w", key, err)
	}

	s.logger.Debug().Str("key", key).Int("size", len(data)).Msg("blob stored")

	return key, nil
}

// Delete removes the blob. A missing key is not an error.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return nil
	}

	// Keys never contain path separators; reject anything that escapes the dir.
	if filepath.Base(key) != key {
		return fmt.Errorf("invalid blob key %q", key)
	}

	err := os.Remove(filepath.Join(s.dir, key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}

	return nil
}

// Resolve returns the filesystem path the blob can be read from.
func (s *LocalStore) Resolve(key string) string {
	return filepath.Join(s.dir, key)
}

func extensionFor(typeHint string) string {
	hint := strings.TrimSpace(typeHint)
	if hint == "" {
		return ".bin"
	}

	if mime := mimetype.Lookup(hint); mime != nil && mime.Extension() != "" {
		return mime.Extension()
	}

	return ".bin"
}
