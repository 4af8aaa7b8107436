// Package cache persists the current credential record in a local file slot.
//
// Writes go through a temp file in the same directory followed by a rename,
// so a concurrent reader never observes a half-written record while a
// rotation tick is replacing it.
package cache

import (
	"fmt"
	"os"
	"path/filepath"

	dserrors "github.com/notorios/meli-token-manager/internal/errors"
	"github.com/notorios/meli-token-manager/internal/token"
)

// File is a filesystem slot holding one serialized credential record.
type File struct {
	path string
}

// NewFile returns a cache backed by the given path. Parent directories are
// created on first write, not here, so a read-only caller never touches the
// filesystem.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("token file path must not be empty")
	}
	return &File{path: path}, nil
}

// Path returns the file path backing this cache.
func (f *File) Path() string {
	return f.path
}

// Read returns the cached record. A missing file maps to ErrSecretNotFound,
// which callers treat as "no prior credential".
func (f *File) Read() (token.Record, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return token.Record{}, fmt.Errorf("token file %s: %w", f.path, dserrors.ErrSecretNotFound)
		}
		return token.Record{}, fmt.Errorf("failed to read token file %s: %w", f.path, err)
	}
	return token.Unmarshal(data)
}

// Write atomically replaces the cached record, creating parent directories
// with 0700 and the file with 0600.
func (f *File) Write(rec token.Record) error {
	data, err := rec.Marshal()
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp token file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set token file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp token file: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to replace token file %s: %w", f.path, err)
	}
	return nil
}
