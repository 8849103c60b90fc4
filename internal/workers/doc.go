/*
Package workers sizes worker pools in containerized environments.

# Overview

The number of usable CPUs may be limited by cgroup constraints. Go 1.19+
sets GOMAXPROCS from container CPU limits, while runtime.NumCPU() still
returns the host count; this package derives pool sizes from GOMAXPROCS.

The file opener is bound by open latency rather than CPU, so it sizes its
pool with ForNetworkIO:

	n := workers.ForNetworkIO(64, cfg.Workers)

A positive override (the --workers flag or DICOMINDEX_WORKERS) replaces the
computed value but is still capped by the limit.

# Workload Types

  - ForCPU (1.0x): parsing, hashing
  - ForIO (2.0x): local disk reads
  - ForNetworkIO (4.0x): file opens on NFS/SMB mounts

All functions are safe for concurrent use.
*/
package workers
