package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"dicom-index/internal/database"
)

const defaultRunLimit = 20

// GetProgress returns the progress tuple of the active run, or of the last
// one. Submitted may exceed the results produced so far, since some parses
// are still in flight.
func (h *Handlers) GetProgress(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, h.log, h.indexer.Progress())
}

// ListRuns returns recorded runs, most recent first.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSONError(w, h.log, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list runs")
		writeJSONError(w, h.log, "failed to list runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []database.Run{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.log, runs)
}

// GetRun returns one recorded run.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	run, err := h.store.GetRun(r.Context(), id)
	if database.IsNotFound(err) {
		writeJSONError(w, h.log, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("run", id).Msg("failed to load run")
		writeJSONError(w, h.log, "failed to load run", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.log, run)
}

// GetCatalog returns the row count of every catalog table.
func (h *Handlers) GetCatalog(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.CountRows(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to count catalog rows")
		writeJSONError(w, h.log, "failed to count catalog rows", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.log, counts)
}
