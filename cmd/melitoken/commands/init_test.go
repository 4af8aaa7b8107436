package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/notorios/meli-token-manager/internal/cache"
	"github.com/notorios/meli-token-manager/internal/logging"
	"github.com/notorios/meli-token-manager/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFullConfig writes a local-origin config with the OAuth application
// keys set, returning the App and the token file path.
func writeFullConfig(t *testing.T) (*App, string) {
	t.Helper()
	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "tokens.json")
	configPath := filepath.Join(dir, "config_vars.yaml")

	content := fmt.Sprintf(`
MELI_APP_ID: "12345"
MELI_CLIENT_SECRET: shhh
MELI_REDIRECT_URI: https://example.com/callback
MELI_TOKENS_SECRET_NAME: meli-tokens
SECRET_ORIGIN: local
LOCAL_SECRET_DIR: %s
MELI_TOKEN_FILE: %s
`, filepath.Join(dir, "secrets"), tokenFile)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	return &App{
		ConfigPath:     configPath,
		NonInteractive: true,
		Logger:         logging.New(false, true),
	}, tokenFile
}

func TestInitCommand_ReusesValidLocalRecord(t *testing.T) {
	app, tokenFile := writeFullConfig(t)

	local, err := cache.NewFile(tokenFile)
	require.NoError(t, err)
	existing := token.New("A-live", "R-live", 21600, time.Now(), token.OriginBootstrap)
	require.NoError(t, local.Write(existing))

	_, err = captureStdout(t, NewInitCommand(app), nil)
	require.NoError(t, err, "re-running init against a valid record needs no network")

	got, err := local.Read()
	require.NoError(t, err)
	assert.Equal(t, existing, got)
}

func TestInitCommand_NoSourceFailsNonInteractive(t *testing.T) {
	app, _ := writeFullConfig(t)

	_, err := captureStdout(t, NewInitCommand(app), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bootstrap failed")
}

func TestInitCommand_MissingApplicationKeys(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config_vars.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
MELI_TOKENS_SECRET_NAME: meli-tokens
SECRET_ORIGIN: local
`), 0o600))

	app := &App{ConfigPath: configPath, NonInteractive: true, Logger: logging.New(false, true)}
	_, err := captureStdout(t, NewInitCommand(app), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MELI_APP_ID")
}
