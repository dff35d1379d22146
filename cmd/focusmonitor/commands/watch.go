package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bryanchriswhite/FocusMonitor/internal/config"
	"github.com/bryanchriswhite/FocusMonitor/internal/logger"
	"github.com/bryanchriswhite/FocusMonitor/internal/window"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print every active window change",
	Long: `Connect to the X server and print a line each time the focused window
changes. A line with no window means nothing has focus.`,
	Example: `  # Print changes as tab separated text
  focusmonitor watch

  # Print changes as JSON lines
  focusmonitor watch --format json

  # Read changes through the buffered background monitor
  focusmonitor watch --async`,
	RunE: runWatch,
}

var (
	watchFormat string
	watchAsync  bool
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&watchFormat, "format", "f", "text", "output format (text or json)")
	watchCmd.Flags().BoolVar(&watchAsync, "async", false, "consume changes through the background monitor")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := validateFormat(watchFormat); err != nil {
		return err
	}

	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watchAsync {
		return watchChannel(ctx, cfg)
	}
	return watchBlocking(ctx, cfg)
}

// watchBlocking pulls directly from the monitor on this goroutine.
func watchBlocking(ctx context.Context, cfg *config.Config) error {
	log := logger.WithComponent("watch")

	monitor, err := window.Open(cfg.MonitorOptions())
	if err != nil {
		return fmt.Errorf("failed to start focus monitor: %w", err)
	}
	defer monitor.Close()

	// Closing the connection is the only way to interrupt a blocked pull.
	go func() {
		<-ctx.Done()
		monitor.Close()
	}()

	for w, err := range monitor.All() {
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if window.IsFatal(err) {
				return err
			}
			log.Warn().Err(err).Msg("Failed to resolve focused window")
			continue
		}
		if err := printFocus(os.Stdout, watchFormat, w); err != nil {
			return err
		}
	}
	return nil
}

// watchChannel reads from an AsyncMonitor.
func watchChannel(ctx context.Context, cfg *config.Config) error {
	log := logger.WithComponent("watch")

	monitor, err := window.OpenAsync(cfg.MonitorOptions(), cfg.QueueSize)
	if err != nil {
		return fmt.Errorf("failed to start focus monitor: %w", err)
	}
	defer monitor.Close()

	for {
		w, err := monitor.Recv(ctx)
		switch {
		case ctx.Err() != nil, errors.Is(err, window.ErrClosed):
			return nil
		case window.IsFatal(err):
			return err
		case err != nil:
			log.Warn().Err(err).Msg("Failed to resolve focused window")
			continue
		}
		if err := printFocus(os.Stdout, watchFormat, w); err != nil {
			return err
		}
	}
}
