package handlers

import (
	"net/http"
	"runtime"
	"time"

	"dicom-index/internal/startup"
)

const (
	statusIdle     = "idle"
	statusIndexing = "indexing"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Indexing bool   `json:"indexing"`
	RunID    string `json:"runId,omitempty"`

	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports whether a run is active. The server only exists while
// the process is up, so the status code is always 200.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	progress := h.indexer.Progress()

	response := HealthResponse{
		Status:       statusIdle,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Indexing:     h.indexer.IsRunning(),
		RunID:        progress.RunID,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if response.Indexing {
		response.Status = statusIndexing
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		writeJSON(w, h.log, response)
	}
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if r.Method != http.MethodHead {
		writeJSONStatus(w, h.log, "alive")
	}
}
