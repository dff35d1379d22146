package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_CreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	m, err := NewManager(path)
	require.NoError(t, err)

	assert.FileExists(t, path)
	assert.Equal(t, path, m.GetConfigPath())

	cfg := m.Get()
	assert.Equal(t, Defaults(), *cfg)
	assert.True(t, cfg.Dedup)
	assert.Equal(t, 100, cfg.QueueSize)
}

func TestNewManager_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
display: ":1"
log_level: debug
dedup: false
queue_size: 16
prefer_net_wm_name: true
`), 0644))

	m, err := NewManager(path)
	require.NoError(t, err)

	cfg := m.Get()
	assert.Equal(t, ":1", cfg.Display)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.Dedup)
	assert.Equal(t, 16, cfg.QueueSize)
	assert.True(t, cfg.PreferNetWMName)
	// Unset keys keep their defaults.
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.True(t, cfg.LogPretty)
}

func TestNewManager_EnvOverride(t *testing.T) {
	t.Setenv("FOCUSMONITOR_QUEUE_SIZE", "42")

	m, err := NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 42, m.Get().QueueSize)
}

func TestNewManager_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dedup: [unclosed"), 0644))

	_, err := NewManager(path)
	assert.Error(t, err)
}

func TestManager_SetAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewManager(path)
	require.NoError(t, err)

	require.NoError(t, m.Set("dedup", false))
	require.NoError(t, m.Set("server_port", 9090))
	require.NoError(t, m.Save())

	reloaded, err := NewManager(path)
	require.NoError(t, err)
	assert.False(t, reloaded.Get().Dedup)
	assert.Equal(t, 9090, reloaded.Get().ServerPort)
}

func TestManager_SetRejects(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.Error(t, m.Set("no_such_key", "x"))
	assert.Error(t, m.Set("log_level", "loud"))
	assert.Error(t, m.Set("queue_size", 0))
}

func TestConfig_Validate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	cfg.LogLevel = "verbose"
	cfg.QueueSize = -1
	cfg.ServerPort = 70000

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
	assert.Contains(t, err.Error(), "invalid queue_size")
	assert.Contains(t, err.Error(), "invalid server_port")
}

func TestConfig_MonitorOptions(t *testing.T) {
	cfg := Defaults()
	cfg.Display = ":2"
	cfg.Dedup = false
	cfg.PreferNetWMName = true

	opts := cfg.MonitorOptions()
	assert.Equal(t, ":2", opts.Display)
	assert.False(t, opts.Dedup)
	assert.True(t, opts.PreferNetWMName)
	assert.Nil(t, opts.Dial)
}

func TestManager_SetRejectedValueIsNotKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewManager(path)
	require.NoError(t, err)

	require.NoError(t, m.Set("queue_size", 32))
	require.Error(t, m.Set("queue_size", -1))
	assert.Equal(t, 32, m.Get().QueueSize)
	assert.Equal(t, 32, m.GetViper().GetInt("queue_size"))

	require.Error(t, m.Set("server_port", "eighty"))
	assert.Equal(t, 8080, m.Get().ServerPort)

	// A later save persists only accepted values.
	require.NoError(t, m.Set("dedup", false))
	require.NoError(t, m.Save())

	reloaded, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, 32, reloaded.Get().QueueSize)
	assert.Equal(t, 8080, reloaded.Get().ServerPort)
	assert.False(t, reloaded.Get().Dedup)
}

func TestManager_ReloadKeepsLastValidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewManager(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("queue_size: 7\n"), 0644))
	require.NoError(t, m.GetViper().ReadInConfig())
	cfg, err := m.reload()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.QueueSize)

	require.NoError(t, os.WriteFile(path, []byte("queue_size: -1\nlog_level: loud\n"), 0644))
	require.NoError(t, m.GetViper().ReadInConfig())
	_, err = m.reload()
	require.Error(t, err)

	assert.Equal(t, 7, m.Get().QueueSize)
	assert.Equal(t, "info", m.Get().LogLevel)
}

// replaceFile swaps path's content in one rename so the watcher never sees a
// half-written file.
func replaceFile(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0644))
	require.NoError(t, os.Rename(tmp, path))
}

func TestManager_WatchSkipsInvalidChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewManager(path)
	require.NoError(t, err)

	changes := make(chan *Config, 10)
	m.Watch(func(c *Config) { changes <- c })

	next := func() *Config {
		t.Helper()
		select {
		case c := <-changes:
			return c
		case <-time.After(5 * time.Second):
			t.Fatal("no config change delivered")
			return nil
		}
	}

	replaceFile(t, path, "queue_size: 7\n")
	assert.Equal(t, 7, next().QueueSize)

	replaceFile(t, path, "queue_size: -1\n")
	select {
	case c := <-changes:
		t.Fatalf("invalid config change delivered: %+v", c)
	case <-time.After(300 * time.Millisecond):
	}
	assert.Equal(t, 7, m.Get().QueueSize)

	replaceFile(t, path, "queue_size: 9\nlog_level: debug\n")
	c := next()
	assert.Equal(t, 9, c.QueueSize)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, 9, m.Get().QueueSize)
}
