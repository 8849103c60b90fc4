/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors.

# Purpose

Archives are frequently served from NFS mounts. This package wraps os.Stat,
os.Open and os.ReadDir with retry logic for ESTALE (stale file handle)
errors, which appear when a mount is briefly disrupted or the server
re-exports a directory while it is being crawled.

# Usage

	cfg := filesystem.DefaultRetryConfig()
	cfg.Observer = metrics.NewFilesystemObserver()
	cfg.Log = &log

	entries, err := filesystem.ReadDirWithRetry(dir, cfg)
	f, err := filesystem.OpenWithRetry(path, cfg)

# Retry Behavior

Defaults:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

Only ESTALE triggers retries. All other errors (ENOENT, EACCES, ...) fail
immediately so callers can classify them per file.
*/
package filesystem
