package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	content := `
address: 127.0.0.1
port: 9090
upstreamTimeout: 5s
maxBodyBytes: 1048576
allowedHosts:
  - api.example.com
  - hooks.example.com
routesFile: /var/lib/hookgw/routes.json
historyFile: /var/lib/hookgw/history.jsonl
historyCapacity: 100
adminToken: s3cret
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Address)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, int64(1048576), cfg.MaxBodyBytes)
	assert.Equal(t, []string{"api.example.com", "hooks.example.com"}, cfg.AllowedHosts)
	assert.Equal(t, "/var/lib/hookgw/routes.json", cfg.RoutesFile)
	assert.Equal(t, 100, cfg.HistoryCapacity)
	assert.Equal(t, "s3cret", cfg.AdminToken)

	// Fields absent from the file keep their defaults.
	assert.Equal(t, DefaultReadHeaderTimeout, cfg.ReadHeaderTimeout)
	assert.Equal(t, DefaultHistoryBackend, cfg.HistoryBackend)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfigFromReader_InvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := LoadConfigFromReader(strings.NewReader("port: [not a port"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadConfigFromReader_EnvSubstitution(t *testing.T) {
	t.Setenv("HOOKGW_TEST_TOKEN", "from-env")

	content := `
adminToken: ${HOOKGW_TEST_TOKEN}
redisAddress: ${HOOKGW_TEST_REDIS:-localhost:6379}
logLevel: ${HOOKGW_TEST_LEVEL:-}
`
	cfg, err := LoadConfigFromReader(strings.NewReader(content))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.AdminToken)
	assert.Equal(t, "localhost:6379", cfg.RedisAddress)
	// Empty default falls back through applyDefaults.
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigFromReader_EscapedDollar(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfigFromReader(strings.NewReader(`adminToken: "$${literal}"`))
	require.NoError(t, err)

	assert.Equal(t, "${literal}", cfg.AdminToken)
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, int64(DefaultMaxBodyBytes), cfg.MaxBodyBytes)
	assert.Equal(t, DefaultHistoryCapacity, cfg.HistoryCapacity)
	assert.True(t, cfg.WatchRoutes)
	assert.True(t, cfg.MetricsEnabled)
	assert.NoError(t, ValidateConfig(cfg))
}
