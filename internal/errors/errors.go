// Package errors defines the error taxonomy for the token manager.
//
// Fatal conditions (ConfigError, BootstrapError) surface immediately and stop
// the calling command. Per-tick conditions (UpstreamAuthError, store errors)
// are logged by the rotation loop and retried on the next scheduled tick.
// StaleCredentialError is the one condition raised synchronously to read-path
// callers, since serving a dead token is worse than failing loudly.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ConfigError represents a missing or invalid configuration key. It is fatal:
// no retry makes a bad config good.
type ConfigError struct {
	Key        string
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "configuration error"
	if e.Key != "" {
		msg += fmt.Sprintf(" for key '%s'", e.Key)
	}
	msg += ": " + e.Message
	if e.Suggestion != "" {
		msg += "\n  Try: " + e.Suggestion
	}
	return msg
}

// UpstreamAuthError is returned when the OAuth provider rejects a grant
// request. Status and Body carry the upstream response for diagnosis.
type UpstreamAuthError struct {
	Operation string // "exchange" or "refresh"
	Status    int
	Body      string
	Err       error
}

func (e UpstreamAuthError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("oauth %s rejected by upstream (status %d): %s", e.Operation, e.Status, e.Body)
	}
	return fmt.Sprintf("oauth %s failed: %v", e.Operation, e.Err)
}

func (e UpstreamAuthError) Unwrap() error {
	return e.Err
}

// BootstrapError is returned when no starting point for the credential exists:
// no authorization code, no cached record, no remote record, no seed refresh
// token.
type BootstrapError struct {
	Message    string
	Suggestion string
}

func (e BootstrapError) Error() string {
	msg := "bootstrap failed: " + e.Message
	if e.Suggestion != "" {
		msg += "\n  Try: " + e.Suggestion
	}
	return msg
}

// StaleCredentialError is raised by the access helpers when every available
// source is expired and no rotation has happened within the tolerance window.
type StaleCredentialError struct {
	ExpiredAt    time.Time
	LastRotation time.Time
	Tolerance    time.Duration
}

func (e StaleCredentialError) Error() string {
	return fmt.Sprintf(
		"stale credential: token expired at %s and last rotation was at %s (tolerance %s); check that the rotation loop is running",
		e.ExpiredAt.UTC().Format(time.RFC3339),
		e.LastRotation.UTC().Format(time.RFC3339),
		e.Tolerance,
	)
}

// Secret store sentinel errors. ErrSecretNotFound means "no prior credential"
// and is non-fatal on first-run bootstrap; the others are logged and the tick
// is skipped.
var (
	ErrSecretNotFound         = errors.New("secret not found")
	ErrSecretPermissionDenied = errors.New("secret access permission denied")
	ErrSecretUnavailable      = errors.New("secret store unavailable")
)

// StoreError wraps a secret store failure with the operation and secret name.
type StoreError struct {
	Op     string // "read", "ensure", "add-version"
	Secret string
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("secret store %s failed for '%s': %v", e.Op, e.Secret, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the secret or cache entry does not
// exist yet.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSecretNotFound)
}
