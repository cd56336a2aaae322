package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gantrylabs/gantry/internal/config"
	"github.com/gantrylabs/gantry/internal/logging"
	"github.com/gantrylabs/gantry/internal/metrics"
	"github.com/gantrylabs/gantry/internal/server"
)

// serveFlags holds the flag values for the serve command.
type serveFlags struct {
	Listen string
	Mode   string
}

// newServeCmd creates the "gantry serve" command. It starts the web driver:
// an HTTP and websocket surface over a single executor, so a dashboard can
// trigger runs and watch state snapshots stream in live.
func newServeCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web driver for dashboards and automation",
		Long: `Start the HTTP server exposing flow execution over a REST and websocket
API. One run is active at a time; state snapshots stream to every connected
websocket client. Prometheus metrics are served on /metrics.`,
		Example: `  # Serve on the configured address
  gantry serve

  # Serve on a specific address in simulation mode
  gantry serve --listen 0.0.0.0:8844 --mode simulation`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.Listen, "listen", "", "Address to listen on (host:port)")
	cmd.Flags().StringVarP(&flags.Mode, "mode", "m", "", `Execution mode: "real" or "simulation"`)

	return cmd
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}

// runServe is the RunE handler for the serve command.
func runServe(cmd *cobra.Command, flags serveFlags) error {
	logger := logging.New("serve")

	overrides := &config.CLIOverrides{}
	if cmd.Flags().Changed("listen") {
		overrides.Listen = &flags.Listen
	}
	if cmd.Flags().Changed("mode") {
		overrides.Mode = &flags.Mode
	}

	resolved, meta, err := loadAndResolveWith(overrides)
	if err != nil {
		return err
	}
	if err := requireValidConfig(cmd, resolved, meta); err != nil {
		return err
	}

	m := metrics.New()
	exec, err := buildExecutor(resolved.Config, m)
	if err != nil {
		return err
	}

	srv := server.New(
		server.Config{
			Listen:         resolved.Config.Server.Listen,
			AllowedOrigins: resolved.Config.Server.AllowedOrigins,
		},
		exec,
		newFlowSource(resolved),
		m.Registry(),
		logging.New("server"),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting web driver",
		"listen", resolved.Config.Server.Listen,
		"mode", resolved.Config.Run.Mode)

	if err := srv.Serve(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
