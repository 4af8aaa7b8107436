package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/notorios/meli-token-manager/internal/logging"
	"github.com/notorios/meli-token-manager/internal/secretstore"
	"github.com/notorios/meli-token-manager/internal/token"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeLocalSetup creates a local-origin config plus a store holding rec, and
// returns the App wired to it.
func writeLocalSetup(t *testing.T, rec token.Record) *App {
	t.Helper()
	dir := t.TempDir()
	secretDir := filepath.Join(dir, "secrets")
	configPath := filepath.Join(dir, "config_vars.yaml")

	content := fmt.Sprintf(`
MELI_TOKENS_SECRET_NAME: meli-tokens
SECRET_ORIGIN: local
LOCAL_SECRET_DIR: %s
MELI_TOKEN_FILE: %s
ROTATION_INTERVAL_SECONDS: 14400
`, secretDir, filepath.Join(dir, "tokens.json"))
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	store, err := secretstore.NewLocal(secretDir, "meli-tokens")
	require.NoError(t, err)
	require.NoError(t, store.AddVersion(context.Background(), rec))

	return &App{
		ConfigPath: configPath,
		Logger:     logging.New(false, true),
	}
}

// captureStdout runs the command and returns everything written to stdout.
func captureStdout(t *testing.T, cmd *cobra.Command, args []string) (string, error) {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = old }()

	cmd.SetArgs(args)
	runErr := cmd.Execute()

	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out), runErr
}

func TestGetCommand_PrintsRawToken(t *testing.T) {
	rec := token.New("APP_USR-access", "TG-refresh", 21600, time.Now(), token.OriginRotation)
	app := writeLocalSetup(t, rec)

	out, err := captureStdout(t, NewGetCommand(app), nil)
	require.NoError(t, err)
	assert.Equal(t, "APP_USR-access", out, "raw output has no trailing newline")
}

func TestGetCommand_JSONOutput(t *testing.T) {
	rec := token.New("APP_USR-access", "TG-refresh", 21600, time.Now(), token.OriginRotation)
	app := writeLocalSetup(t, rec)

	out, err := captureStdout(t, NewGetCommand(app), []string{"--json"})
	require.NoError(t, err)

	var got token.Record
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, rec, got)
}

func TestGetCommand_StaleTokenFails(t *testing.T) {
	// Written two days ago with a six hour lifetime: expired and far past
	// the 2x-interval tolerance.
	rec := token.New("APP_USR-dead", "TG-refresh", 21600, time.Now().Add(-48*time.Hour), token.OriginRotation)
	app := writeLocalSetup(t, rec)

	_, err := captureStdout(t, NewGetCommand(app), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stale credential")
}

func TestGetCommand_MissingSecretName(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config_vars.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("SECRET_ORIGIN: local\n"), 0o600))

	app := &App{ConfigPath: configPath, Logger: logging.New(false, true)}
	_, err := captureStdout(t, NewGetCommand(app), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MELI_TOKENS_SECRET_NAME")
}
