package commands

import (
	"fmt"

	"github.com/notorios/meli-token-manager/internal/access"
	"github.com/spf13/cobra"
)

func NewGetCommand(app *App) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the current access token",
		Long: `Read the latest credential written by the rotation engine and print the
access token to stdout. Only the raw value is printed, making it suitable
for scripting; --json prints the full stored record instead.

Configuration is reloaded and the secret store re-read on every invocation,
so the output always reflects the most recent rotation. Fails with a stale
credential error when the token is expired and rotation has fallen behind.

Examples:
  # Use in scripts
  export MELI_TOKEN=$(melitoken get)

  # Inspect the full record
  melitoken get --json

  # Read the local test store
  melitoken get --secret-origin local`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := access.Options{
				ConfigPath:   app.ConfigPath,
				SecretOrigin: app.SecretOrigin,
				ProjectID:    app.ProjectID,
				Logger:       app.Logger,
			}

			if jsonOutput {
				rec, err := access.GetTokenPayload(cmd.Context(), opts)
				if err != nil {
					return err
				}
				data, err := rec.Marshal()
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			tok, err := access.GetAccessToken(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Print(tok)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full token record as JSON")

	return cmd
}
