package commands

import (
	"fmt"
	"os"

	"github.com/bryanchriswhite/FocusMonitor/internal/window"
	"github.com/spf13/cobra"
)

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Print the focused window",
	Long:  `Read _NET_ACTIVE_WINDOW once and print the focused window.`,
	Example: `  # Show the focused window
  focusmonitor current

  # Show the focused window as JSON
  focusmonitor current --format json`,
	RunE: runCurrent,
}

var currentFormat string

func init() {
	rootCmd.AddCommand(currentCmd)

	currentCmd.Flags().StringVarP(&currentFormat, "format", "f", "text", "output format (text or json)")
}

func runCurrent(cmd *cobra.Command, args []string) error {
	if err := validateFormat(currentFormat); err != nil {
		return err
	}

	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	monitor, err := window.Open(cfg.MonitorOptions())
	if err != nil {
		return fmt.Errorf("failed to connect to X11: %w", err)
	}
	defer monitor.Close()

	w, err := monitor.Current()
	if err != nil {
		return fmt.Errorf("failed to read focused window: %w", err)
	}
	return printFocus(os.Stdout, currentFormat, w)
}
