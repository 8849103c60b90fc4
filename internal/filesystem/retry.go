// Package filesystem provides utilities for filesystem operations with retry logic for NFS
package filesystem

import (
	"errors"
	"io/fs"
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Observer receives retry metrics. Nil disables recording.
	Observer Observer
	// Log receives retry diagnostics. Nil disables logging.
	Log *zerolog.Logger
}

// DefaultRetryConfig returns sensible defaults for NFS retry behavior
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// isNFSStaleError checks if an error is an NFS stale file handle error
func isNFSStaleError(err error) bool {
	if err == nil {
		return false
	}

	// Check for ESTALE (stale file handle) - errno 116 on Linux
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESTALE
	}

	return false
}

// StatWithRetry performs os.Stat with retry logic for NFS stale file handle errors
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	return withRetry(config, "stat", path, func() (os.FileInfo, error) {
		return os.Stat(path)
	})
}

// OpenWithRetry performs os.Open with retry logic for NFS stale file handle errors
func OpenWithRetry(path string, config RetryConfig) (*os.File, error) {
	return withRetry(config, "open", path, func() (*os.File, error) {
		return os.Open(path)
	})
}

// ReadDirWithRetry performs os.ReadDir with retry logic for NFS stale file
// handle errors. Entries are sorted by filename, as with os.ReadDir.
func ReadDirWithRetry(path string, config RetryConfig) ([]fs.DirEntry, error) {
	return withRetry(config, "readdir", path, func() ([]fs.DirEntry, error) {
		return os.ReadDir(path)
	})
}

func withRetry[T any](config RetryConfig, op, path string, fn func() (T, error)) (T, error) {
	start := time.Now()
	obs := config.Observer
	var zero T
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			if attempt > 0 {
				config.logInfo(op, path, attempt)
				if obs != nil {
					obs.ObserveRetrySuccess(op)
				}
			}
			if obs != nil {
				obs.ObserveRetryDuration(op, time.Since(start).Seconds())
			}
			return result, nil
		}

		lastErr = err

		// Only retry on NFS stale file handle errors
		if !isNFSStaleError(err) {
			if obs != nil {
				obs.ObserveRetryDuration(op, time.Since(start).Seconds())
			}
			return zero, err
		}

		if obs != nil {
			obs.ObserveStaleError(op)
		}

		// Don't sleep after the last attempt
		if attempt < config.MaxRetries {
			if obs != nil {
				obs.ObserveRetryAttempt(op)
			}
			if config.Log != nil {
				config.Log.Debug().
					Str("op", op).
					Str("path", path).
					Dur("backoff", backoff).
					Int("attempt", attempt+1).
					Int("max", config.MaxRetries).
					Msg("stale file handle, retrying")
			}
			time.Sleep(backoff)

			// Exponential backoff with cap
			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	if config.Log != nil {
		config.Log.Warn().
			Err(lastErr).
			Str("op", op).
			Str("path", path).
			Int("retries", config.MaxRetries).
			Msg("filesystem operation failed after retries")
	}
	if obs != nil {
		obs.ObserveRetryFailure(op)
		obs.ObserveRetryDuration(op, time.Since(start).Seconds())
	}
	return zero, lastErr
}

func (c RetryConfig) logInfo(op, path string, attempt int) {
	if c.Log == nil {
		return
	}
	c.Log.Info().Str("op", op).Str("path", path).Int("attempt", attempt).Msg("succeeded on retry")
}
