package secretstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	dserrors "github.com/notorios/meli-token-manager/internal/errors"
	"github.com/notorios/meli-token-manager/internal/token"
)

// Local mimics the remote store with a directory of numbered version files.
// It backs the "local" secret origin used by tests and offline development,
// keeping the same latest-version read semantics as the GCP store.
type Local struct {
	dir        string
	secretName string
}

// NewLocal returns a store rooted at dir, one subdirectory per secret name.
func NewLocal(dir, secretName string) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("local secret directory must not be empty")
	}
	return &Local{dir: dir, secretName: secretName}, nil
}

// Name identifies the store in logs.
func (l *Local) Name() string {
	return "local"
}

func (l *Local) secretDir() string {
	return filepath.Join(l.dir, l.secretName)
}

// ReadLatest returns the record from the highest-numbered version file.
func (l *Local) ReadLatest(ctx context.Context) (token.Record, error) {
	if err := ctx.Err(); err != nil {
		return token.Record{}, err
	}

	latest, err := l.latestVersionFile()
	if err != nil {
		return token.Record{}, &dserrors.StoreError{Op: "read", Secret: l.secretName, Err: err}
	}

	data, err := os.ReadFile(latest)
	if err != nil {
		return token.Record{}, &dserrors.StoreError{Op: "read", Secret: l.secretName, Err: err}
	}
	rec, err := token.Unmarshal(data)
	if err != nil {
		return token.Record{}, &dserrors.StoreError{Op: "read", Secret: l.secretName, Err: err}
	}
	return rec, nil
}

// EnsureSecret creates the secret directory. Idempotent.
func (l *Local) EnsureSecret(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.secretDir(), 0o700); err != nil {
		return &dserrors.StoreError{Op: "ensure", Secret: l.secretName, Err: err}
	}
	return nil
}

// AddVersion writes the record as the next numbered version file, atomically.
func (l *Local) AddVersion(ctx context.Context, rec token.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.EnsureSecret(ctx); err != nil {
		return err
	}

	next, err := l.nextVersion()
	if err != nil {
		return &dserrors.StoreError{Op: "add-version", Secret: l.secretName, Err: err}
	}

	data, err := rec.Marshal()
	if err != nil {
		return err
	}

	dir := l.secretDir()
	tmp, err := os.CreateTemp(dir, ".version-*.tmp")
	if err != nil {
		return &dserrors.StoreError{Op: "add-version", Secret: l.secretName, Err: err}
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return &dserrors.StoreError{Op: "add-version", Secret: l.secretName, Err: err}
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return &dserrors.StoreError{Op: "add-version", Secret: l.secretName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &dserrors.StoreError{Op: "add-version", Secret: l.secretName, Err: err}
	}

	target := filepath.Join(dir, fmt.Sprintf("%06d.json", next))
	if err := os.Rename(tmpName, target); err != nil {
		return &dserrors.StoreError{Op: "add-version", Secret: l.secretName, Err: err}
	}
	return nil
}

// versionFiles returns the sorted version file names for this secret.
func (l *Local) versionFiles() ([]string, error) {
	entries, err := os.ReadDir(l.secretDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (l *Local) latestVersionFile() (string, error) {
	names, err := l.versionFiles()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("secret '%s': %w", l.secretName, dserrors.ErrSecretNotFound)
	}
	return filepath.Join(l.secretDir(), names[len(names)-1]), nil
}

func (l *Local) nextVersion() (int, error) {
	names, err := l.versionFiles()
	if err != nil {
		return 0, err
	}
	if len(names) == 0 {
		return 1, nil
	}
	var latest int
	if _, err := fmt.Sscanf(names[len(names)-1], "%06d.json", &latest); err != nil {
		return 0, fmt.Errorf("unexpected version file name %q: %w", names[len(names)-1], err)
	}
	return latest + 1, nil
}
