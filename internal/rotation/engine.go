// Package rotation orchestrates the credential lifecycle: the one-time
// bootstrap and the periodic refresh-and-persist tick.
//
// The engine assumes it is the only rotator running against its secret name.
// Concurrent rotators would race on AddVersion and both could win; that is an
// accepted limitation, not guarded here.
package rotation

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/notorios/meli-token-manager/internal/config"
	dserrors "github.com/notorios/meli-token-manager/internal/errors"
	"github.com/notorios/meli-token-manager/internal/logging"
	"github.com/notorios/meli-token-manager/internal/secretstore"
	"github.com/notorios/meli-token-manager/internal/token"
)

// failureBackoff caps the wait after a failed tick so a transient outage is
// retried sooner than a full interval.
const failureBackoff = 10 * time.Minute

// OAuthClient is the slice of the oauth client the engine needs.
type OAuthClient interface {
	Exchange(ctx context.Context, code string) (token.Record, error)
	Refresh(ctx context.Context, refreshToken string) (token.Record, error)
}

// Cache is the slice of the local cache the engine needs.
type Cache interface {
	Read() (token.Record, error)
	Write(rec token.Record) error
}

// Params configures a Rotator.
type Params struct {
	OAuth            OAuthClient
	Store            secretstore.Store
	Cache            Cache
	SeedRefreshToken string // MELI_REFRESH_TOKEN, used when no record exists anywhere
	Interval         time.Duration
	Clock            clockwork.Clock
	Logger           *logging.Logger
}

// Rotator runs bootstrap and rotation ticks against one credential.
type Rotator struct {
	oauth    OAuthClient
	store    secretstore.Store
	cache    Cache
	seed     string
	interval time.Duration
	clock    clockwork.Clock
	logger   *logging.Logger

	ensured     bool   // remote secret container known to exist
	lastRefresh string // refresh token used by the most recent tick, for log redaction
}

// New builds a Rotator. Interval defaults to the configured default, clock to
// the real clock.
func New(p Params) *Rotator {
	if p.Interval <= 0 {
		p.Interval = config.DefaultRotationInterval
	}
	if p.Clock == nil {
		p.Clock = clockwork.NewRealClock()
	}
	if p.Logger == nil {
		p.Logger = logging.New(false, true)
	}
	return &Rotator{
		oauth:    p.OAuth,
		store:    p.Store,
		cache:    p.Cache,
		seed:     p.SeedRefreshToken,
		interval: p.Interval,
		clock:    p.Clock,
		logger:   p.Logger,
	}
}

// Interval returns the configured tick interval.
func (r *Rotator) Interval() time.Duration {
	return r.interval
}

// Bootstrap resolves the first credential record, trying sources in priority
// order: explicit authorization code, existing local cache record, existing
// remote record, configured seed refresh token. The winning record is written
// through both stores.
func (r *Rotator) Bootstrap(ctx context.Context, authCode string) (token.Record, error) {
	if authCode != "" {
		rec, err := r.oauth.Exchange(ctx, authCode)
		if err != nil {
			return token.Record{}, err
		}
		if err := r.persist(ctx, rec); err != nil {
			return token.Record{}, err
		}
		r.logger.Info("bootstrapped tokens from authorization code")
		return rec, nil
	}

	if rec, err := r.cache.Read(); err == nil {
		return r.adoptExisting(ctx, rec, "local cache")
	} else if !dserrors.IsNotFound(err) {
		r.logger.Warn("failed to read local token cache: %v", err)
	}

	if rec, err := r.store.ReadLatest(ctx); err == nil {
		return r.adoptExisting(ctx, rec, r.store.Name()+" secret store")
	} else if !dserrors.IsNotFound(err) {
		r.logger.Warn("failed to read remote secret: %v", err)
	}

	if r.seed != "" {
		rec, err := r.oauth.Refresh(ctx, r.seed)
		if err != nil {
			return token.Record{}, err
		}
		if err := r.persist(ctx, rec); err != nil {
			return token.Record{}, err
		}
		r.logger.Info("bootstrapped tokens from seed refresh token")
		return rec, nil
	}

	return token.Record{}, dserrors.BootstrapError{
		Message:    "no authorization code, cached record, remote record, or seed refresh token available",
		Suggestion: "Run 'melitoken init --code <code>' or set MELI_REFRESH_TOKEN",
	}
}

// adoptExisting reuses a record found in one of the stores. A still-valid
// record is taken as-is with no network exchange; an expired but rotatable
// one is refreshed first.
func (r *Rotator) adoptExisting(ctx context.Context, rec token.Record, source string) (token.Record, error) {
	now := r.clock.Now()
	if rec.Valid(now) {
		r.logger.Info("reusing valid tokens from %s", source)
		if err := r.syncStores(ctx, rec); err != nil {
			r.logger.Warn("failed to sync stores during bootstrap: %v", err)
		}
		return rec, nil
	}
	if !rec.Rotatable() {
		return token.Record{}, dserrors.BootstrapError{
			Message:    fmt.Sprintf("record from %s is expired and has no refresh token", source),
			Suggestion: "Run 'melitoken init --code <code>' to re-authorize",
		}
	}

	fresh, err := r.oauth.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		return token.Record{}, err
	}
	if err := r.persist(ctx, fresh); err != nil {
		return token.Record{}, err
	}
	r.logger.Info("refreshed expired tokens from %s", source)
	return fresh, nil
}

// syncStores backfills whichever store is missing the record, without minting
// new versions when both sides already have one.
func (r *Rotator) syncStores(ctx context.Context, rec token.Record) error {
	if _, err := r.cache.Read(); dserrors.IsNotFound(err) {
		if err := r.cache.Write(rec); err != nil {
			return err
		}
	}
	if _, err := r.store.ReadLatest(ctx); dserrors.IsNotFound(err) {
		return r.writeRemote(ctx, rec)
	}
	return nil
}

// Tick performs one rotation: read the current refresh token, exchange it for
// a new record, and write the result to the local cache and then the remote
// store. A remote-write failure is returned after the local write succeeded,
// so the access-helper fallback still sees the fresh record.
func (r *Rotator) Tick(ctx context.Context) error {
	refreshToken, err := r.currentRefreshToken(ctx)
	if err != nil {
		observeTickFailure()
		return err
	}
	r.lastRefresh = refreshToken

	started := r.clock.Now()
	rec, err := r.oauth.Refresh(ctx, refreshToken)
	if err != nil {
		observeTickFailure()
		return err
	}
	refreshTook := r.clock.Now().Sub(started)

	if err := r.persist(ctx, rec); err != nil {
		observeTickFailure()
		return err
	}

	observeTickSuccess(r.clock.Now(), refreshTook)
	r.logger.Info("tokens refreshed; new version is live in %s store", r.store.Name())
	return nil
}

// currentRefreshToken picks the refresh token for the next exchange. The
// local cache wins over the remote store on conflict: in the common case it
// reflects this engine's own previous write. An operator editing the remote
// secret out-of-band is therefore ignored until the local cache is cleared;
// this mirrors the long-standing behavior and is deliberate.
func (r *Rotator) currentRefreshToken(ctx context.Context) (string, error) {
	if rec, err := r.cache.Read(); err == nil && rec.Rotatable() {
		return rec.RefreshToken, nil
	} else if err != nil && !dserrors.IsNotFound(err) {
		r.logger.Warn("failed to read local token cache: %v", err)
	}

	if rec, err := r.store.ReadLatest(ctx); err == nil && rec.Rotatable() {
		return rec.RefreshToken, nil
	} else if err != nil && !dserrors.IsNotFound(err) {
		r.logger.Warn("failed to read remote secret: %v", err)
	}

	if r.seed != "" {
		return r.seed, nil
	}

	return "", dserrors.BootstrapError{
		Message:    "no refresh token available for rotation",
		Suggestion: "Run 'melitoken init' first",
	}
}

// persist writes the record locally first, then remotely, in that order.
func (r *Rotator) persist(ctx context.Context, rec token.Record) error {
	if err := r.cache.Write(rec); err != nil {
		return err
	}
	return r.writeRemote(ctx, rec)
}

func (r *Rotator) writeRemote(ctx context.Context, rec token.Record) error {
	if !r.ensured {
		if err := r.store.EnsureSecret(ctx); err != nil {
			return err
		}
		r.ensured = true
	}
	return r.store.AddVersion(ctx, rec)
}

// Run ticks at the configured interval until the context is cancelled. A
// failed tick is logged and retried after a capped backoff; it never stops
// the loop. The current tick always runs to completion before shutdown is
// honored.
func (r *Rotator) Run(ctx context.Context) error {
	r.logger.Info("rotation loop started (interval %s)", r.interval)
	for {
		wait := r.interval
		if err := r.Tick(ctx); err != nil {
			// Upstream error bodies can echo grant parameters; scrub any
			// token material before it reaches the log.
			r.logger.Error("rotation tick failed: %s", logging.Redact(err.Error(), []string{r.seed, r.lastRefresh}))
			if wait > failureBackoff {
				wait = failureBackoff
			}
		}

		select {
		case <-ctx.Done():
			r.logger.Info("rotation loop stopping")
			return nil
		case <-r.clock.After(wait):
		}
	}
}
