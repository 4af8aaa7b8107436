package commands

import (
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func NewRotateCommand(app *App) *cobra.Command {
	var (
		once            bool
		intervalSeconds int
		metricsAddr     string
	)

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Run the rotation loop or a single refresh",
		Long: `Exchange the current refresh token for a new token pair and persist it
to the local token file and the remote secret store.

By default this runs forever at the configured interval; a failed tick is
logged and retried on the next one. With --once exactly one tick runs and a
failure exits non-zero.

Examples:
  # Continuous rotation (for a supervisor or container)
  melitoken rotate

  # One refresh, e.g. from cron
  melitoken rotate --once

  # Faster schedule with Prometheus metrics exposed
  melitoken rotate --interval-seconds 3600 --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			var override time.Duration
			if intervalSeconds > 0 {
				override = time.Duration(intervalSeconds) * time.Second
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rot, err := app.buildRotator(ctx, cfg, override)
			if err != nil {
				return err
			}

			if once {
				return rot.Tick(ctx)
			}

			if metricsAddr != "" {
				go serveMetrics(app, metricsAddr)
			}

			return rot.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run a single refresh instead of the continuous loop")
	cmd.Flags().IntVar(&intervalSeconds, "interval-seconds", 0, "Loop interval in seconds (defaults to ROTATION_INTERVAL_SECONDS)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (loop mode only)")

	return cmd
}

// serveMetrics exposes the default registry. An unusable listen address is a
// warning, not a reason to stop rotating.
func serveMetrics(app *App, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	app.Logger.Info("serving metrics on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		app.Logger.Warn("metrics server stopped: %v", err)
	}
}
