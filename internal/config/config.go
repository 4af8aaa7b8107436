// Package config loads the token-manager configuration.
//
// A Snapshot is built fresh on every Load call and never mutated afterwards.
// Callers that need current values (the access helpers in particular) reload
// rather than holding on to an old snapshot, so out-of-band changes to the
// config file or environment are picked up on the next call.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	dserrors "github.com/notorios/meli-token-manager/internal/errors"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the config file lives unless overridden.
const DefaultPath = "config/config_vars.yaml"

// Configuration keys. The file uses the same flat key names as the
// environment, so either source can supply any key; environment wins.
const (
	KeyAppID            = "MELI_APP_ID"
	KeyClientSecret     = "MELI_CLIENT_SECRET"
	KeyRedirectURI      = "MELI_REDIRECT_URI"
	KeyTokensSecretName = "MELI_TOKENS_SECRET_NAME"
	KeyProjectID        = "GCP_PROJECT_ID"
	KeyRefreshTokenSeed = "MELI_REFRESH_TOKEN"
	KeyTokenFile        = "MELI_TOKEN_FILE"
	KeyRotationInterval = "ROTATION_INTERVAL_SECONDS"
	KeySecretOrigin     = "SECRET_ORIGIN"
	KeyLocalSecretDir   = "LOCAL_SECRET_DIR"
)

// knownKeys lists every key the overlay considers; unknown keys in the file
// are rejected by the schema.
var knownKeys = []string{
	KeyAppID,
	KeyClientSecret,
	KeyRedirectURI,
	KeyTokensSecretName,
	KeyProjectID,
	KeyRefreshTokenSeed,
	KeyTokenFile,
	KeyRotationInterval,
	KeySecretOrigin,
	KeyLocalSecretDir,
}

// DefaultTokenFile is the local cache slot used when MELI_TOKEN_FILE is unset.
const DefaultTokenFile = "tokens.json"

// DefaultRotationInterval keeps rotation well ahead of the 6h token expiry.
const DefaultRotationInterval = 4 * time.Hour

// Options carries per-invocation overrides, typically from CLI flags.
type Options struct {
	Path         string // config file path; DefaultPath when empty
	SecretOrigin string // forces SECRET_ORIGIN when non-empty
	ProjectID    string // forces GCP_PROJECT_ID when non-empty
}

// Snapshot is an immutable view of the configuration at load time.
type Snapshot struct {
	path   string
	values map[string]string
}

// Load reads the config file, validates it, overlays the environment, and
// applies the option overrides. A missing file is not an error when every
// required key can come from the environment, so it only warns via the error
// path when the file exists but cannot be parsed.
func Load(opts Options) (*Snapshot, error) {
	path := opts.Path
	if path == "" {
		path = DefaultPath
	}

	values := make(map[string]string, len(knownKeys))

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		doc := map[string]interface{}{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, dserrors.ConfigError{
				Key:        "path",
				Message:    fmt.Sprintf("invalid YAML in %s: %v", path, err),
				Suggestion: "Check the config file syntax",
			}
		}
		if err := validateDocument(doc); err != nil {
			return nil, err
		}
		for key, raw := range doc {
			values[key] = scalarString(raw)
		}
	case os.IsNotExist(err):
		// Environment-only operation is allowed; required keys are enforced
		// by Require at the call sites that need them.
	default:
		return nil, dserrors.ConfigError{
			Key:        "path",
			Message:    fmt.Sprintf("failed to read %s: %v", path, err),
			Suggestion: "Check file permissions and the --config path",
		}
	}

	for _, key := range knownKeys {
		if env := os.Getenv(key); env != "" {
			values[key] = env
		}
	}

	if opts.SecretOrigin != "" {
		values[KeySecretOrigin] = opts.SecretOrigin
	}
	if opts.ProjectID != "" {
		values[KeyProjectID] = opts.ProjectID
	}

	return &Snapshot{path: path, values: values}, nil
}

// scalarString renders a YAML scalar the way the environment would carry it.
func scalarString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Path returns the config file path this snapshot was loaded from.
func (s *Snapshot) Path() string {
	return s.path
}

// Get returns the value for key, or fallback when unset.
func (s *Snapshot) Get(key, fallback string) string {
	if v, ok := s.values[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Require returns the value for key or a ConfigError naming the key.
func (s *Snapshot) Require(key string) (string, error) {
	if v, ok := s.values[key]; ok && v != "" {
		return v, nil
	}
	return "", dserrors.ConfigError{
		Key:        key,
		Message:    "required key is missing",
		Suggestion: fmt.Sprintf("Set %s in %s or export it in the environment", key, s.path),
	}
}

// SecretOrigin returns the configured secret origin, defaulting to "gcp".
func (s *Snapshot) SecretOrigin() string {
	return s.Get(KeySecretOrigin, "gcp")
}

// TokenFile returns the local cache file path.
func (s *Snapshot) TokenFile() string {
	return s.Get(KeyTokenFile, DefaultTokenFile)
}

// RotationInterval returns the configured rotation interval.
func (s *Snapshot) RotationInterval() (time.Duration, error) {
	raw := s.Get(KeyRotationInterval, "")
	if raw == "" {
		return DefaultRotationInterval, nil
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || secs <= 0 {
		return 0, dserrors.ConfigError{
			Key:        KeyRotationInterval,
			Message:    fmt.Sprintf("must be a positive number of seconds, got %q", raw),
			Suggestion: "Use an integer like 14400 (4 hours)",
		}
	}
	return time.Duration(secs) * time.Second, nil
}
