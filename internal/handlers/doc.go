// Package handlers serves the live state of the indexer over HTTP.
//
// Routes:
//   - GET /progress   the progress tuple of the active or last run
//   - GET /runs       recorded runs, most recent first (?limit=N)
//   - GET /runs/{id}  one recorded run
//   - GET /catalog    row counts per catalog table
//   - GET /healthz    idle or indexing, with process information
//   - GET /livez      liveness probe
//   - GET /version    build information
//   - GET /metrics    Prometheus exposition
package handlers
