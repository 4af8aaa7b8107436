// Package access is the read path used by arbitrary callers that need a
// working MercadoLibre access token.
//
// Every call rebuilds the configuration snapshot and reads the stores fresh;
// nothing is cached in-process, so an external rotation is visible on the
// next call. The helpers never refresh the token themselves — that is the
// rotation engine's job — but they refuse to hand out a credential that is
// both expired and past the rotation tolerance window.
package access

import (
	"context"
	"io"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/notorios/meli-token-manager/internal/cache"
	"github.com/notorios/meli-token-manager/internal/config"
	dserrors "github.com/notorios/meli-token-manager/internal/errors"
	"github.com/notorios/meli-token-manager/internal/logging"
	"github.com/notorios/meli-token-manager/internal/secretstore"
	"github.com/notorios/meli-token-manager/internal/token"
)

// staleToleranceFactor sets the window, in rotation intervals, during which
// an expired record is still served on the assumption that a rotation is in
// flight. Past it the credential is considered dead.
const staleToleranceFactor = 2

// Options selects the config file and overrides for one read.
type Options struct {
	ConfigPath   string
	SecretOrigin string // "gcp", "local", or "keyring"; empty uses the config
	ProjectID    string
	Clock        clockwork.Clock // tests only; nil means real clock
	Logger       *logging.Logger // nil means quiet non-debug logger
}

// GetAccessToken returns the latest access token written by the rotation
// engine.
func GetAccessToken(ctx context.Context, opts Options) (string, error) {
	rec, err := GetTokenPayload(ctx, opts)
	if err != nil {
		return "", err
	}
	return rec.AccessToken, nil
}

// GetTokenPayload returns the full credential record, preferring the remote
// store and falling back to the local cache when the remote read fails.
func GetTokenPayload(ctx context.Context, opts Options) (token.Record, error) {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.New(false, true)
	}

	// Fresh snapshot per call: secret names, project ids, and intervals may
	// have changed since the last read.
	cfg, err := config.Load(config.Options{
		Path:         opts.ConfigPath,
		SecretOrigin: opts.SecretOrigin,
		ProjectID:    opts.ProjectID,
	})
	if err != nil {
		return token.Record{}, err
	}

	interval, err := cfg.RotationInterval()
	if err != nil {
		return token.Record{}, err
	}

	rec, err := readRecord(ctx, cfg, logger)
	if err != nil {
		return token.Record{}, err
	}

	return checkFreshness(rec, clock.Now(), interval, logger)
}

// readRecord reads the remote store first and the local cache second. Only
// when both miss does the caller see an error.
func readRecord(ctx context.Context, cfg *config.Snapshot, logger *logging.Logger) (token.Record, error) {
	store, err := secretstore.Open(ctx, cfg, logger)
	if err != nil {
		return token.Record{}, err
	}
	defer closeStore(store, logger)

	rec, storeErr := store.ReadLatest(ctx)
	if storeErr == nil {
		return rec, nil
	}
	if !dserrors.IsNotFound(storeErr) {
		logger.Warn("remote secret read failed, falling back to local cache: %v", storeErr)
	}

	local, err := cache.NewFile(cfg.TokenFile())
	if err != nil {
		return token.Record{}, err
	}
	rec, cacheErr := local.Read()
	if cacheErr == nil {
		return rec, nil
	}

	// Neither source has a credential; the store error is the more useful
	// one to surface.
	return token.Record{}, storeErr
}

// closeStore releases per-call store resources. The gcp store holds a gRPC
// client connection, and this path is built fresh on every read, so leaving
// it open would leak a connection per call in long-lived consumers.
func closeStore(store secretstore.Store, logger *logging.Logger) {
	closer, ok := store.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn("failed to close secret store client: %v", err)
	}
}

// checkFreshness enforces the staleness contract: a valid record passes, an
// expired record within the tolerance window is served with a warning, and
// anything older fails with StaleCredentialError.
func checkFreshness(rec token.Record, now time.Time, interval time.Duration, logger *logging.Logger) (token.Record, error) {
	if rec.Valid(now) {
		return rec, nil
	}

	tolerance := staleToleranceFactor * interval
	if rec.Age(now) <= tolerance {
		logger.Warn("serving expired token written %s ago; rotation should catch up shortly", rec.Age(now).Round(time.Second))
		return rec, nil
	}

	return token.Record{}, dserrors.StaleCredentialError{
		ExpiredAt:    time.Unix(rec.ExpiresAt, 0),
		LastRotation: time.Unix(rec.UpdatedAt, 0),
		Tolerance:    tolerance,
	}
}
