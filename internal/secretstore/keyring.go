package secretstore

import (
	"context"
	"errors"
	"fmt"

	dserrors "github.com/notorios/meli-token-manager/internal/errors"
	"github.com/notorios/meli-token-manager/internal/token"
	"github.com/zalando/go-keyring"
)

// keyringService namespaces token-manager entries in the OS credential store.
const keyringService = "melitoken"

// Keyring stores the record in the OS credential store (macOS Keychain,
// Windows Credential Manager, Linux Secret Service). The keyring holds a
// single value per entry, so AddVersion overwrites: "latest" is the only
// version.
type Keyring struct {
	secretName string
}

// NewKeyring returns a keyring-backed store for the given secret name.
func NewKeyring(secretName string) (*Keyring, error) {
	if secretName == "" {
		return nil, fmt.Errorf("secret name must not be empty")
	}
	return &Keyring{secretName: secretName}, nil
}

// Name identifies the store in logs.
func (k *Keyring) Name() string {
	return "keyring"
}

// ReadLatest returns the stored record.
func (k *Keyring) ReadLatest(ctx context.Context) (token.Record, error) {
	if err := ctx.Err(); err != nil {
		return token.Record{}, err
	}

	payload, err := keyring.Get(keyringService, k.secretName)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			err = fmt.Errorf("%w: %v", dserrors.ErrSecretNotFound, err)
		}
		return token.Record{}, &dserrors.StoreError{Op: "read", Secret: k.secretName, Err: err}
	}

	rec, err := token.Unmarshal([]byte(payload))
	if err != nil {
		return token.Record{}, &dserrors.StoreError{Op: "read", Secret: k.secretName, Err: err}
	}
	return rec, nil
}

// EnsureSecret is a no-op: keyring entries are created on first Set.
func (k *Keyring) EnsureSecret(ctx context.Context) error {
	return ctx.Err()
}

// AddVersion overwrites the stored record.
func (k *Keyring) AddVersion(ctx context.Context, rec token.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := rec.Marshal()
	if err != nil {
		return err
	}
	if err := keyring.Set(keyringService, k.secretName, string(data)); err != nil {
		return &dserrors.StoreError{Op: "add-version", Secret: k.secretName, Err: err}
	}
	return nil
}
