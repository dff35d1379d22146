package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bryanchriswhite/FocusMonitor/internal/logger"
	"github.com/bryanchriswhite/FocusMonitor/internal/window"
	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. FOCUSMONITOR_LOG_LEVEL.
const EnvPrefix = "FOCUSMONITOR"

// Config represents the application configuration
type Config struct {
	Display         string `json:"display" yaml:"display" mapstructure:"display"`
	LogLevel        string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	LogPretty       bool   `json:"log_pretty" yaml:"log_pretty" mapstructure:"log_pretty"`
	Dedup           bool   `json:"dedup" yaml:"dedup" mapstructure:"dedup"`
	QueueSize       int    `json:"queue_size" yaml:"queue_size" mapstructure:"queue_size"`
	PreferNetWMName bool   `json:"prefer_net_wm_name" yaml:"prefer_net_wm_name" mapstructure:"prefer_net_wm_name"`
	ServerPort      int    `json:"server_port" yaml:"server_port" mapstructure:"server_port"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Display:         "",
		LogLevel:        "info",
		LogPretty:       true,
		Dedup:           true,
		QueueSize:       window.DefaultQueueSize,
		PreferNetWMName: false,
		ServerPort:      8080,
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		result = multierror.Append(result, err)
	}
	if c.QueueSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("invalid queue_size: %d (must be positive)", c.QueueSize))
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		result = multierror.Append(result, fmt.Errorf("invalid server_port: %d", c.ServerPort))
	}

	return result.ErrorOrNil()
}

// MonitorOptions converts the configuration into focus monitor options.
func (c *Config) MonitorOptions() window.Options {
	opts := window.DefaultOptions()
	opts.Display = c.Display
	opts.Dedup = c.Dedup
	opts.PreferNetWMName = c.PreferNetWMName
	return opts
}

// Manager handles configuration
type Manager struct {
	configPath string
	v          *viper.Viper
	config     *Config
	mu         sync.RWMutex
}

// DefaultPath returns $HOME/.config/focusmonitor/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "focusmonitor", "config.yaml"), nil
}

// NewManager loads configFile, or the default path when empty. A missing
// file is created with the defaults.
func NewManager(configFile string) (*Manager, error) {
	log := logger.WithComponent("config")

	path := configFile
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{
		configPath: path,
		v:          newViper(path),
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		log.Info().
			Str("path", path).
			Msg("Config file not found, creating new config")
		defaults := Defaults()
		m.config = &defaults
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	if err := m.load(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	log.Debug().
		Str("path", m.configPath).
		Str("log_level", m.config.LogLevel).
		Bool("dedup", m.config.Dedup).
		Msg("Config loaded")

	return m, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	defaults := Defaults()
	v.SetDefault("display", defaults.Display)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_pretty", defaults.LogPretty)
	v.SetDefault("dedup", defaults.Dedup)
	v.SetDefault("queue_size", defaults.QueueSize)
	v.SetDefault("prefer_net_wm_name", defaults.PreferNetWMName)
	v.SetDefault("server_port", defaults.ServerPort)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func (m *Manager) load() error {
	if err := m.v.ReadInConfig(); err != nil {
		return err
	}
	return m.refresh()
}

// refresh re-decodes the viper state into the typed config.
func (m *Manager) refresh() error {
	cfg, err := m.decode()
	if err != nil {
		return err
	}
	m.commit(cfg)
	return nil
}

func (m *Manager) decode() (*Config, error) {
	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func (m *Manager) commit(cfg *Config) {
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
}

// reload decodes the viper state and commits it only if it validates.
func (m *Manager) reload() (*Config, error) {
	cfg, err := m.decode()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m.commit(cfg)
	return m.Get(), nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := *m.config
	return &cfg
}

// GetViper exposes the underlying viper instance (flag bindings, raw key lookups).
func (m *Manager) GetViper() *viper.Viper {
	return m.v
}

// IsKnownKey reports whether key is a configuration setting.
func IsKnownKey(key string) bool {
	switch key {
	case "display", "log_level", "log_pretty", "dedup", "queue_size", "prefer_net_wm_name", "server_port":
		return true
	}
	return false
}

// Set changes a single setting in memory; call Save to persist it.
// A value that fails validation is rejected and the previous one kept.
func (m *Manager) Set(key string, value any) error {
	if !IsKnownKey(key) {
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	prev := m.v.Get(key)
	m.v.Set(key, value)
	if _, err := m.reload(); err != nil {
		m.v.Set(key, prev)
		return err
	}
	return nil
}

// Save writes the configuration file
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := *m.config
	m.mu.RUnlock()

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	logger.WithComponent("config").Debug().Str("path", m.configPath).Msg("Config saved")
	return nil
}

// Watch reloads the configuration whenever the file changes and passes the
// new values to onChange. Invalid changes are skipped and the last valid
// configuration stays in effect.
func (m *Manager) Watch(onChange func(*Config)) {
	log := logger.WithComponent("config")

	m.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := m.reload()
		if err != nil {
			log.Warn().Err(err).Str("path", e.Name).Msg("Ignoring invalid config change")
			return
		}
		log.Info().Str("path", e.Name).Msg("Config reloaded")
		onChange(cfg)
	})
	m.v.WatchConfig()
}

// GetConfigPath returns the configuration file path
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
