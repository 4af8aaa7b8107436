package commands

import (
	"context"
	"time"

	"github.com/notorios/meli-token-manager/internal/cache"
	"github.com/notorios/meli-token-manager/internal/config"
	"github.com/notorios/meli-token-manager/internal/logging"
	"github.com/notorios/meli-token-manager/internal/oauth"
	"github.com/notorios/meli-token-manager/internal/rotation"
	"github.com/notorios/meli-token-manager/internal/secretstore"
)

// App carries the global flag values into each command. Configuration itself
// is loaded fresh inside every RunE, never held here.
type App struct {
	ConfigPath     string
	SecretOrigin   string
	ProjectID      string
	NonInteractive bool
	Logger         *logging.Logger
}

// loadConfig builds a fresh snapshot with the global overrides applied.
func (a *App) loadConfig() (*config.Snapshot, error) {
	return config.Load(config.Options{
		Path:         a.ConfigPath,
		SecretOrigin: a.SecretOrigin,
		ProjectID:    a.ProjectID,
	})
}

// buildRotator wires the oauth client, secret store, and local cache into a
// rotation engine. intervalOverride <= 0 keeps the configured interval.
func (a *App) buildRotator(ctx context.Context, cfg *config.Snapshot, intervalOverride time.Duration) (*rotation.Rotator, error) {
	appID, err := cfg.Require(config.KeyAppID)
	if err != nil {
		return nil, err
	}
	clientSecret, err := cfg.Require(config.KeyClientSecret)
	if err != nil {
		return nil, err
	}
	redirectURI, err := cfg.Require(config.KeyRedirectURI)
	if err != nil {
		return nil, err
	}

	store, err := secretstore.Open(ctx, cfg, a.Logger)
	if err != nil {
		return nil, err
	}

	local, err := cache.NewFile(cfg.TokenFile())
	if err != nil {
		return nil, err
	}

	interval := intervalOverride
	if interval <= 0 {
		if interval, err = cfg.RotationInterval(); err != nil {
			return nil, err
		}
	}

	return rotation.New(rotation.Params{
		OAuth:            oauth.NewClient(appID, clientSecret, redirectURI),
		Store:            store,
		Cache:            local,
		SeedRefreshToken: cfg.Get(config.KeyRefreshTokenSeed, ""),
		Interval:         interval,
		Logger:           a.Logger,
	}), nil
}
