// Package oauth performs the authorization-code and refresh-token grant calls
// against the MercadoLibre identity provider.
//
// Persistence is deliberately not handled here: the client returns a token
// record and the caller (bootstrap or the rotation engine) writes it through
// the stores.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"
	dserrors "github.com/notorios/meli-token-manager/internal/errors"
	"github.com/notorios/meli-token-manager/internal/token"
	"golang.org/x/oauth2"
)

const (
	// TokenEndpoint is the MercadoLibre OAuth token endpoint.
	TokenEndpoint = "https://api.mercadolibre.com/oauth/token"
	// AuthEndpoint is where users authorize the application.
	AuthEndpoint = "https://auth.mercadolibre.cl/authorization"

	// Grant calls are bounded so a hung upstream becomes a failed tick
	// instead of a stuck process.
	exchangeTimeout = 30 * time.Second
	refreshTimeout  = 15 * time.Second
)

// BuildAuthURL returns the authorization URL the user must visit to obtain
// the one-time code used by Exchange.
func BuildAuthURL(appID, redirectURI string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", appID)
	q.Set("redirect_uri", redirectURI)
	return AuthEndpoint + "?" + q.Encode()
}

// Client exchanges authorization codes and refresh tokens for credential
// records.
type Client struct {
	cfg   *oauth2.Config
	clock clockwork.Clock
}

// Option configures a Client.
type Option func(*Client)

// WithClock injects the clock used to derive expires_at. Defaults to the real
// clock.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// WithTokenURL overrides the token endpoint, used by tests to point at a
// local server.
func WithTokenURL(tokenURL string) Option {
	return func(c *Client) {
		c.cfg.Endpoint.TokenURL = tokenURL
	}
}

// NewClient builds a client for the given application credentials.
// MercadoLibre expects client_id and client_secret in the request body, hence
// AuthStyleInParams.
func NewClient(appID, clientSecret, redirectURI string, opts ...Option) *Client {
	c := &Client{
		cfg: &oauth2.Config{
			ClientID:     appID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   AuthEndpoint,
				TokenURL:  TokenEndpoint,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exchange trades an authorization code for the first credential record.
func (c *Client) Exchange(ctx context.Context, code string) (token.Record, error) {
	if code == "" {
		return token.Record{}, fmt.Errorf("authorization code must not be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	tok, err := c.cfg.Exchange(ctx, code)
	if err != nil {
		return token.Record{}, upstreamError("exchange", err)
	}
	return c.record(tok, "", token.OriginBootstrap)
}

// Refresh trades a refresh token for a new credential record. When the
// upstream does not rotate refresh tokens the previous one is carried into
// the new record so the result stays rotatable.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (token.Record, error) {
	if refreshToken == "" {
		return token.Record{}, fmt.Errorf("refresh token must not be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	tok, err := c.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return token.Record{}, upstreamError("refresh", err)
	}
	return c.record(tok, refreshToken, token.OriginRotation)
}

// record converts an oauth2 token into the shared credential record, deriving
// expires_at from expires_in and the client's clock.
func (c *Client) record(tok *oauth2.Token, previousRefresh, origin string) (token.Record, error) {
	if tok.AccessToken == "" {
		return token.Record{}, dserrors.UpstreamAuthError{
			Operation: origin,
			Err:       fmt.Errorf("upstream returned no access_token"),
		}
	}

	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = previousRefresh
	}

	now := c.clock.Now()
	rec := token.New(tok.AccessToken, refresh, expiresIn(tok, now), now, origin)
	rec.TokenType = tok.Type()
	if scope, ok := tok.Extra("scope").(string); ok {
		rec.Scope = scope
	}
	return rec, nil
}

// expiresIn recovers the raw expires_in reported by the token endpoint,
// falling back to the expiry the oauth2 package computed.
func expiresIn(tok *oauth2.Token, now time.Time) int64 {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	}
	if !tok.Expiry.IsZero() {
		if secs := int64(tok.Expiry.Sub(now).Seconds()); secs > 0 {
			return secs
		}
	}
	return 0
}

// upstreamError maps oauth2 failures onto the error taxonomy, keeping the
// upstream status and body for diagnosis.
func upstreamError(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return dserrors.UpstreamAuthError{
			Operation: op,
			Status:    status,
			Body:      string(retrieveErr.Body),
			Err:       err,
		}
	}
	return dserrors.UpstreamAuthError{Operation: op, Err: err}
}
