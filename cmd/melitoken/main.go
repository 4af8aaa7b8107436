package main

import (
	"fmt"
	"os"

	"github.com/notorios/meli-token-manager/cmd/melitoken/commands"
	"github.com/notorios/meli-token-manager/internal/config"
	"github.com/notorios/meli-token-manager/internal/logging"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile     string
		secretOrigin   string
		projectID      string
		noColor        bool
		debug          bool
		nonInteractive bool
	)

	app := &commands.App{}

	rootCmd := &cobra.Command{
		Use:   "melitoken",
		Short: "MercadoLibre token manager - bootstrap and rotate OAuth credentials",
		Long: `melitoken keeps a continuously valid MercadoLibre access token by
exchanging the refresh token on a schedule and persisting the result to a
local file and a remote secret store.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			app.ConfigPath = configFile
			app.SecretOrigin = secretOrigin
			app.ProjectID = projectID
			app.NonInteractive = nonInteractive
			app.Logger = logging.New(debug, noColor)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().StringVar(&secretOrigin, "secret-origin", "", "Force secret origin (gcp|local|keyring)")
	rootCmd.PersistentFlags().StringVar(&projectID, "project-id", "", "Override GCP project id")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Never prompt for input")

	rootCmd.AddCommand(
		commands.NewInitCommand(app),
		commands.NewRotateCommand(app),
		commands.NewGetCommand(app),
	)

	return rootCmd.Execute()
}
