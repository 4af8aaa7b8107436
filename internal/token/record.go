// Package token defines the credential record shared by the local cache file
// and the remote secret payload. Both sides serialize the same JSON shape, so
// a record written by the rotator can be read back by any consumer.
package token

import (
	"encoding/json"
	"fmt"
	"time"
)

// Origin marks how a record was produced.
const (
	OriginBootstrap = "bootstrap"
	OriginRotation  = "rotation"
)

// Record is one access/refresh token pair plus expiry metadata.
//
// ExpiresAt is the canonical freshness field: it is derived from ExpiresIn at
// write time and consumers must trust it rather than re-deriving expiry from
// their own clocks.
type Record struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	UpdatedAt    int64  `json:"updated_at"`
	Origin       string `json:"origin,omitempty"`
}

// New builds a record issued at the given time, deriving ExpiresAt from
// expiresIn.
func New(accessToken, refreshToken string, expiresIn int64, issuedAt time.Time, origin string) Record {
	now := issuedAt.Unix()
	return Record{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
		ExpiresAt:    now + expiresIn,
		UpdatedAt:    now,
		Origin:       origin,
	}
}

// Valid reports whether the record holds a usable access token at the given
// time. Validity depends only on the access token being present and ExpiresAt
// being in the future.
func (r Record) Valid(now time.Time) bool {
	return r.AccessToken != "" && now.Unix() < r.ExpiresAt
}

// Rotatable reports whether the record can be exchanged for a fresh pair,
// regardless of access-token validity.
func (r Record) Rotatable() bool {
	return r.RefreshToken != ""
}

// Age returns how long ago the record was written.
func (r Record) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(r.UpdatedAt, 0))
}

// Marshal serializes the record as the shared on-disk / secret-payload JSON.
func (r Record) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal token record: %w", err)
	}
	return data, nil
}

// Unmarshal parses a record from its JSON form.
func Unmarshal(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("failed to unmarshal token record: %w", err)
	}
	return r, nil
}
