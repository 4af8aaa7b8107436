package commands

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/notorios/meli-token-manager/internal/config"
	dserrors "github.com/notorios/meli-token-manager/internal/errors"
	"github.com/notorios/meli-token-manager/internal/oauth"
	"github.com/spf13/cobra"
)

func NewInitCommand(app *App) *cobra.Command {
	var authCode string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Bootstrap the first token pair",
		Long: `Establish the initial access/refresh token pair and write it to the
local token file and the remote secret store.

The starting point is resolved in priority order: an authorization code
passed with --code, an existing local token file, an existing remote secret,
or a seed MELI_REFRESH_TOKEN from the configuration. When none of those
exist and the session is interactive, the authorization URL is printed and
the code is read from stdin.

Examples:
  # Bootstrap from a redirect code
  melitoken init --code TG-abc123

  # Re-run against an existing deployment (reuses stored tokens)
  melitoken init

  # Offline test setup
  melitoken init --secret-origin local --code TG-abc123`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			rot, err := app.buildRotator(ctx, cfg, 0)
			if err != nil {
				return err
			}

			rec, err := rot.Bootstrap(ctx, authCode)
			var bootErr dserrors.BootstrapError
			if errors.As(err, &bootErr) && authCode == "" && !app.NonInteractive {
				code, promptErr := promptForCode(cfg)
				if promptErr != nil {
					return err
				}
				rec, err = rot.Bootstrap(ctx, code)
			}
			if err != nil {
				return err
			}

			app.Logger.Info("tokens written to %s and the %s secret store", cfg.TokenFile(), cfg.SecretOrigin())
			app.Logger.Info("access token valid until %s", time.Unix(rec.ExpiresAt, 0).UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&authCode, "code", "", "Authorization code from the MercadoLibre redirect")

	return cmd
}

// promptForCode prints the authorization URL and reads the redirect code from
// stdin.
func promptForCode(cfg *config.Snapshot) (string, error) {
	appID, err := cfg.Require(config.KeyAppID)
	if err != nil {
		return "", err
	}
	redirectURI, err := cfg.Require(config.KeyRedirectURI)
	if err != nil {
		return "", err
	}

	fmt.Println("\n=== MercadoLibre OAuth bootstrap ===")
	fmt.Println("1) Visit and authorize:")
	fmt.Printf("\n%s\n\n", oauth.BuildAuthURL(appID, redirectURI))
	fmt.Print("2) Paste the 'code' parameter from the redirect: ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read authorization code: %w", err)
	}

	code := strings.TrimSpace(line)
	if code == "" {
		return "", dserrors.BootstrapError{
			Message:    "no authorization code provided",
			Suggestion: "Re-run 'melitoken init --code <code>'",
		}
	}
	return code, nil
}
