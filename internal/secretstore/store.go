// Package secretstore abstracts the remote slot holding the current
// credential record.
//
// Three origins implement the same capability surface: gcp (Secret Manager),
// local (a directory of version files, used in tests and offline setups), and
// keyring (the OS credential store). The origin is selected once from
// configuration, not re-branched per call.
package secretstore

import (
	"context"

	"github.com/notorios/meli-token-manager/internal/config"
	dserrors "github.com/notorios/meli-token-manager/internal/errors"
	"github.com/notorios/meli-token-manager/internal/logging"
	"github.com/notorios/meli-token-manager/internal/token"
)

// Store is the capability interface over a remote secret slot.
//
// ReadLatest always targets the most recent version; there is no version
// pinning. EnsureSecret is idempotent and must be called before the first
// AddVersion on a fresh secret.
type Store interface {
	Name() string
	ReadLatest(ctx context.Context) (token.Record, error)
	EnsureSecret(ctx context.Context) error
	AddVersion(ctx context.Context, rec token.Record) error
}

// Open builds the store selected by the snapshot's SECRET_ORIGIN.
func Open(ctx context.Context, cfg *config.Snapshot, logger *logging.Logger) (Store, error) {
	secretName, err := cfg.Require(config.KeyTokensSecretName)
	if err != nil {
		return nil, err
	}

	origin := cfg.SecretOrigin()
	switch origin {
	case "gcp":
		projectID, err := cfg.Require(config.KeyProjectID)
		if err != nil {
			return nil, err
		}
		return NewGCP(ctx, projectID, secretName, logger)
	case "local":
		dir := cfg.Get(config.KeyLocalSecretDir, ".melitoken/secrets")
		return NewLocal(dir, secretName)
	case "keyring":
		return NewKeyring(secretName)
	default:
		return nil, dserrors.ConfigError{
			Key:        config.KeySecretOrigin,
			Message:    "unknown secret origin '" + origin + "'",
			Suggestion: "Use one of: gcp, local, keyring",
		}
	}
}
