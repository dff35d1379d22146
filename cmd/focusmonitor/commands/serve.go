package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bryanchriswhite/FocusMonitor/internal/api"
	"github.com/bryanchriswhite/FocusMonitor/internal/config"
	"github.com/bryanchriswhite/FocusMonitor/internal/logger"
	"github.com/bryanchriswhite/FocusMonitor/internal/window"
	"github.com/hashicorp/go-multierror"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve active window changes over HTTP",
	Long: `Start the FocusMonitor HTTP server.

The server exposes the focused window at /api/window/current and streams
every change over a WebSocket at /api/window/stream.`,
	Example: `  # Start server on default port (8080)
  focusmonitor serve

  # Start server on custom port
  focusmonitor serve --port 9090

  # Start with debug logging
  focusmonitor serve --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "server port (default is 8080)")
	viper.BindPFlag("server_port", serveCmd.Flags().Lookup("port"))
}

func runServe(cmd *cobra.Command, args []string) (err error) {
	log := logger.WithComponent("serve")

	configMgr, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Override port from flag if provided
	if viper.IsSet("server_port") {
		if port := viper.GetInt("server_port"); port > 0 {
			if err := configMgr.Set("server_port", port); err != nil {
				return err
			}
			cfg = configMgr.Get()
		}
	}

	configMgr.Watch(func(c *config.Config) {
		logger.SetLevel(c.LogLevel)
	})

	log.Info().Str("display", cfg.Display).Msg("Connecting to X11 server")
	monitor, err := window.Open(cfg.MonitorOptions())
	if err != nil {
		return fmt.Errorf("failed to start focus monitor: %w", err)
	}

	// Seed before the producer goroutine takes ownership of the monitor.
	var seed *window.Focus
	if w, err := monitor.Current(); err != nil {
		log.Warn().Err(err).Msg("Failed to read initial focused window")
	} else {
		f := window.FocusOf(w)
		seed = &f
	}

	async := window.NewAsync(monitor, cfg.QueueSize)
	defer func() {
		if closeErr := async.Close(); closeErr != nil {
			err = multierror.Append(err, closeErr).ErrorOrNil()
		}
	}()

	hub := window.NewHub(async)
	if seed != nil {
		hub.Seed(*seed)
	}
	server := api.NewServer(hub, configMgr)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		return hub.Run(ctx)
	})
	p.Go(func(ctx context.Context) error {
		return server.Start(ctx, cfg.ServerPort)
	})

	log.Info().
		Int("port", cfg.ServerPort).
		Msgf("FocusMonitor is running on http://localhost:%d/api", cfg.ServerPort)

	if err := p.Wait(); err != nil {
		return err
	}

	log.Info().Msg("Shutting down gracefully")
	return nil
}
