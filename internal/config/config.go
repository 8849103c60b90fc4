// Package config loads the settings of the index command from defaults, an
// optional YAML file, DICOMINDEX_* environment variables and command-line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/viper"

	"dicom-index/internal/discovery"
	"dicom-index/internal/enumerate"
	"dicom-index/internal/filesystem"
	"dicom-index/internal/workers"
)

// EnvPrefix prefixes every environment variable, e.g. DICOMINDEX_WORKERS or
// DICOMINDEX_ENUMERATOR_TIMEOUT.
const EnvPrefix = "DICOMINDEX"

// maxWorkers caps the automatic opener pool size.
const maxWorkers = 64

// Config is the complete configuration of an index run.
type Config struct {
	Database         string           `mapstructure:"database"`
	Strategy         string           `mapstructure:"strategy"`
	Workers          int              `mapstructure:"workers"`
	QueueSize        int              `mapstructure:"queue_size"`
	Enumerator       EnumeratorConfig `mapstructure:"enumerator"`
	SkipHidden       bool             `mapstructure:"skip_hidden"`
	Exclude          []string         `mapstructure:"exclude"`
	MetricsAddr      string           `mapstructure:"metrics_addr"`
	ProgressInterval time.Duration    `mapstructure:"progress_interval"`
	LogLevel         string           `mapstructure:"log_level"`
	Retry            RetryConfig      `mapstructure:"retry"`
}

// EnumeratorConfig bounds the waits on the discovery worker.
type EnumeratorConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RetryConfig tunes retries of stale NFS file handles.
type RetryConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// New returns a viper instance with defaults and environment binding in
// place. Callers bind their flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()

	retry := filesystem.DefaultRetryConfig()
	v.SetDefault("database", "dicom-index.db")
	v.SetDefault("strategy", discovery.All)
	v.SetDefault("workers", 0)
	v.SetDefault("queue_size", enumerate.DefaultQueueSize)
	v.SetDefault("enumerator.timeout", enumerate.DefaultTimeout)
	v.SetDefault("enumerator.shutdown_timeout", enumerate.DefaultShutdownTimeout)
	v.SetDefault("skip_hidden", true)
	v.SetDefault("exclude", []string{})
	v.SetDefault("metrics_addr", "")
	v.SetDefault("progress_interval", 5*time.Second)
	v.SetDefault("log_level", "")
	v.SetDefault("retry.max_retries", retry.MaxRetries)
	v.SetDefault("retry.initial_backoff", retry.InitialBackoff)
	v.SetDefault("retry.max_backoff", retry.MaxBackoff)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads configFile when given and decodes v into a validated Config.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.Exclude = splitList(cfg.Exclude)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitList accepts comma-separated entries, which is how a list arrives
// from an environment variable.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Database == "" {
		errs = append(errs, errors.New("database must not be empty"))
	}
	if !slices.Contains(discovery.Names(), c.Strategy) {
		errs = append(errs, fmt.Errorf("unknown strategy %q (want one of %s)", c.Strategy, strings.Join(discovery.Names(), ", ")))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("queue_size must be positive, got %d", c.QueueSize))
	}
	if c.Enumerator.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("enumerator.timeout must be positive, got %s", c.Enumerator.Timeout))
	}
	if c.Enumerator.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("enumerator.shutdown_timeout must be positive, got %s", c.Enumerator.ShutdownTimeout))
	}
	if c.ProgressInterval <= 0 {
		errs = append(errs, fmt.Errorf("progress_interval must be positive, got %s", c.ProgressInterval))
	}
	if c.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("retry.max_retries must not be negative, got %d", c.Retry.MaxRetries))
	}
	if c.Retry.InitialBackoff <= 0 || c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		errs = append(errs, fmt.Errorf("retry backoff must satisfy 0 < initial_backoff <= max_backoff, got %s and %s",
			c.Retry.InitialBackoff, c.Retry.MaxBackoff))
	}
	for _, pattern := range c.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			errs = append(errs, fmt.Errorf("invalid exclude pattern %q", pattern))
		}
	}
	return errors.Join(errs...)
}

// WorkerCount resolves the opener pool size. Zero selects a size suited to
// network filesystems.
func (c *Config) WorkerCount() int {
	return workers.ForNetworkIO(maxWorkers, c.Workers)
}

// EnumeratorOptions converts the settings for enumerate.New.
func (c *Config) EnumeratorOptions() enumerate.Options {
	return enumerate.Options{
		QueueSize:       c.QueueSize,
		Timeout:         c.Enumerator.Timeout,
		ShutdownTimeout: c.Enumerator.ShutdownTimeout,
	}
}

// FilesystemRetry converts the settings for the filesystem package. The
// caller attaches an observer and logger.
func (c *Config) FilesystemRetry() filesystem.RetryConfig {
	return filesystem.RetryConfig{
		MaxRetries:     c.Retry.MaxRetries,
		InitialBackoff: c.Retry.InitialBackoff,
		MaxBackoff:     c.Retry.MaxBackoff,
	}
}
