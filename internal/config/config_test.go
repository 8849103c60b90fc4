package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicom-index/internal/discovery"
	"dicom-index/internal/enumerate"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "dicom-index.db", cfg.Database)
	assert.Equal(t, discovery.All, cfg.Strategy)
	assert.Equal(t, enumerate.DefaultQueueSize, cfg.QueueSize)
	assert.Equal(t, enumerate.DefaultTimeout, cfg.Enumerator.Timeout)
	assert.Equal(t, enumerate.DefaultShutdownTimeout, cfg.Enumerator.ShutdownTimeout)
	assert.True(t, cfg.SkipHidden)
	assert.Empty(t, cfg.Exclude)
	assert.Equal(t, 5*time.Second, cfg.ProgressInterval)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)

	assert.GreaterOrEqual(t, cfg.WorkerCount(), 1)
	assert.LessOrEqual(t, cfg.WorkerCount(), maxWorkers)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("DICOMINDEX_STRATEGY", "per-leaf")
	t.Setenv("DICOMINDEX_WORKERS", "12")
	t.Setenv("DICOMINDEX_ENUMERATOR_TIMEOUT", "2m")
	t.Setenv("DICOMINDEX_SKIP_HIDDEN", "false")
	t.Setenv("DICOMINDEX_EXCLUDE", "**/tmp, **/*.bak")
	t.Setenv("DICOMINDEX_RETRY_MAX_RETRIES", "7")

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, discovery.PerLeaf, cfg.Strategy)
	assert.Equal(t, 12, cfg.WorkerCount())
	assert.Equal(t, 2*time.Minute, cfg.Enumerator.Timeout)
	assert.False(t, cfg.SkipHidden)
	assert.Equal(t, []string{"**/tmp", "**/*.bak"}, cfg.Exclude)
	assert.Equal(t, 7, cfg.FilesystemRetry().MaxRetries)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dicom-index.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database: /var/lib/dicom/catalog.db
strategy: per-folder
queue_size: 1024
metrics_addr: 127.0.0.1:9090
exclude:
  - "**/DICOMDIR"
enumerator:
  timeout: 45s
retry:
  initial_backoff: 10ms
  max_backoff: 1s
`), 0o644))

	t.Setenv("DICOMINDEX_QUEUE_SIZE", "2048")

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/dicom/catalog.db", cfg.Database)
	assert.Equal(t, discovery.PerFolder, cfg.Strategy)
	assert.Equal(t, 2048, cfg.QueueSize, "environment wins over the file")
	assert.Equal(t, "127.0.0.1:9090", cfg.MetricsAddr)
	assert.Equal(t, []string{"**/DICOMDIR"}, cfg.Exclude)

	opts := cfg.EnumeratorOptions()
	assert.Equal(t, 45*time.Second, opts.Timeout)
	assert.Equal(t, 2048, opts.QueueSize)

	retry := cfg.FilesystemRetry()
	assert.Equal(t, 10*time.Millisecond, retry.InitialBackoff)
	assert.Equal(t, time.Second, retry.MaxBackoff)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(New(), "")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty database", func(c *Config) { c.Database = "" }, "database must not be empty"},
		{"unknown strategy", func(c *Config) { c.Strategy = "dicom_file_per_series" }, "unknown strategy"},
		{"negative workers", func(c *Config) { c.Workers = -1 }, "workers must not be negative"},
		{"zero queue", func(c *Config) { c.QueueSize = 0 }, "queue_size must be positive"},
		{"zero timeout", func(c *Config) { c.Enumerator.Timeout = 0 }, "enumerator.timeout must be positive"},
		{"zero shutdown timeout", func(c *Config) { c.Enumerator.ShutdownTimeout = 0 }, "enumerator.shutdown_timeout must be positive"},
		{"zero progress interval", func(c *Config) { c.ProgressInterval = 0 }, "progress_interval must be positive"},
		{"backoff inverted", func(c *Config) { c.Retry.MaxBackoff = time.Millisecond }, "retry backoff"},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }, "retry.max_retries"},
		{"bad pattern", func(c *Config) { c.Exclude = []string{"[a-"} }, "invalid exclude pattern"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := &Config{Strategy: "bogus"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database must not be empty")
	assert.Contains(t, err.Error(), "unknown strategy")
	assert.Contains(t, err.Error(), "queue_size must be positive")
}
