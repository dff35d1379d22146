package commands

import (
	"fmt"
	"os"

	"github.com/bryanchriswhite/FocusMonitor/internal/config"
	"github.com/bryanchriswhite/FocusMonitor/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "focusmonitor",
		Short: "FocusMonitor - report X11 active window changes",
		Long: `FocusMonitor watches the X11 root window's _NET_ACTIVE_WINDOW property and
reports every change of the focused window with its title and WM_CLASS.

Features:
  • Event driven, no polling
  • Duplicate notifications for the same window are suppressed
  • Text or JSON output for scripting
  • HTTP and WebSocket API for integration`,
		SilenceUsage: true,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/focusmonitor/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("display", "", "X display to connect to (default is $DISPLAY)")

	// Bind flags to viper
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("display", rootCmd.PersistentFlags().Lookup("display"))
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, applies flag overrides and configures logging.
func loadConfig() (*config.Manager, *config.Config, error) {
	configMgr, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	for _, key := range []string{"log_level", "display"} {
		if viper.IsSet(key) && viper.GetString(key) != "" {
			if err := configMgr.Set(key, viper.GetString(key)); err != nil {
				return nil, nil, err
			}
		}
	}

	cfg := configMgr.Get()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration in %s: %w", configMgr.GetConfigPath(), err)
	}

	logger.Init(cfg.LogLevel, cfg.LogPretty)
	return configMgr, cfg, nil
}
