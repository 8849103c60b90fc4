package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"dicom-index/internal/database"
	"dicom-index/internal/indexer"
	"dicom-index/internal/startup"
	"dicom-index/internal/stats"
)

// =============================================================================
// Mocks
// =============================================================================

type mockIndexer struct {
	running  bool
	progress indexer.Progress
}

func (m *mockIndexer) Progress() indexer.Progress { return m.progress }
func (m *mockIndexer) IsRunning() bool            { return m.running }

type mockStore struct {
	runs      []database.Run
	counts    map[string]int64
	err       error
	lastLimit int
}

func (m *mockStore) ListRuns(_ context.Context, limit int) ([]database.Run, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	if limit > 0 && limit < len(m.runs) {
		return m.runs[:limit], nil
	}
	return m.runs, nil
}

func (m *mockStore) GetRun(_ context.Context, id string) (database.Run, error) {
	if m.err != nil {
		return database.Run{}, m.err
	}
	for _, r := range m.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return database.Run{}, sql.ErrNoRows
}

func (m *mockStore) CountRows(context.Context) (map[string]int64, error) {
	return m.counts, m.err
}

func newTestHandlers(idx *mockIndexer, store *mockStore) http.Handler {
	return New(idx, store, zerolog.Nop()).Router()
}

func serve(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return v
}

// =============================================================================
// Progress
// =============================================================================

func TestGetProgress(t *testing.T) {
	idx := &mockIndexer{
		running: true,
		progress: indexer.Progress{
			Running:    true,
			RunID:      "run-1",
			Discovered: 120,
			Submitted:  100,
			InFlight:   8,
			Processed:  92,
			Summary:    stats.Summary{Processed: 80, SkippedAlreadyVisited: 12, Total: 92},
		},
	}
	w := serve(t, newTestHandlers(idx, &mockStore{}), http.MethodGet, "/progress")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}

	got := decode[indexer.Progress](t, w)
	if got.RunID != "run-1" || got.Discovered != 120 || got.Submitted != 100 || got.Processed != 92 {
		t.Errorf("Unexpected progress: %+v", got)
	}
	if got.Summary.SkippedAlreadyVisited != 12 {
		t.Errorf("Expected summary to be included, got %+v", got.Summary)
	}
}

func TestGetProgressRejectsPost(t *testing.T) {
	w := serve(t, newTestHandlers(&mockIndexer{}, &mockStore{}), http.MethodPost, "/progress")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}
}

// =============================================================================
// Runs
// =============================================================================

func sampleRuns() []database.Run {
	now := time.Now().UTC().Truncate(time.Second)
	return []database.Run{
		{ID: "b", Root: "/archive", Strategy: "all", StartedAt: now, Status: database.RunCompleted, Counts: database.RunCounts{Processed: 3}},
		{ID: "a", Root: "/archive", Strategy: "per-leaf", StartedAt: now.Add(-time.Hour), Status: database.RunFailed, Error: "list root: permission denied"},
	}
}

func TestListRuns(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		wantCode  int
		wantLen   int
		wantLimit int
	}{
		{"default limit", "/runs", http.StatusOK, 2, defaultRunLimit},
		{"explicit limit", "/runs?limit=1", http.StatusOK, 1, 1},
		{"all runs", "/runs?limit=0", http.StatusOK, 2, 0},
		{"invalid limit", "/runs?limit=abc", http.StatusBadRequest, 0, 0},
		{"negative limit", "/runs?limit=-2", http.StatusBadRequest, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{runs: sampleRuns()}
			w := serve(t, newTestHandlers(&mockIndexer{}, store), http.MethodGet, tt.target)

			if w.Code != tt.wantCode {
				t.Fatalf("Expected status %d, got %d", tt.wantCode, w.Code)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			runs := decode[[]database.Run](t, w)
			if len(runs) != tt.wantLen {
				t.Errorf("Expected %d runs, got %d", tt.wantLen, len(runs))
			}
			if store.lastLimit != tt.wantLimit {
				t.Errorf("Expected limit %d passed to store, got %d", tt.wantLimit, store.lastLimit)
			}
		})
	}
}

func TestListRunsEmptyIsArray(t *testing.T) {
	w := serve(t, newTestHandlers(&mockIndexer{}, &mockStore{}), http.MethodGet, "/runs")
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("Expected empty JSON array, got %q", body)
	}
}

func TestListRunsStoreError(t *testing.T) {
	w := serve(t, newTestHandlers(&mockIndexer{}, &mockStore{err: errors.New("disk I/O error")}), http.MethodGet, "/runs")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "disk I/O") {
		t.Error("Storage errors should not leak to clients")
	}
}

func TestGetRun(t *testing.T) {
	h := newTestHandlers(&mockIndexer{}, &mockStore{runs: sampleRuns()})

	w := serve(t, h, http.MethodGet, "/runs/a")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	run := decode[database.Run](t, w)
	if run.Status != database.RunFailed || run.Error == "" {
		t.Errorf("Unexpected run: %+v", run)
	}

	w = serve(t, h, http.MethodGet, "/runs/zzz")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown run, got %d", w.Code)
	}
}

// =============================================================================
// Catalog
// =============================================================================

func TestGetCatalog(t *testing.T) {
	store := &mockStore{counts: map[string]int64{"patient": 2, "study": 3, "series": 7, "instance": 14}}
	w := serve(t, newTestHandlers(&mockIndexer{}, store), http.MethodGet, "/catalog")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	counts := decode[map[string]int64](t, w)
	if counts["instance"] != 14 || counts["series"] != 7 {
		t.Errorf("Unexpected counts: %v", counts)
	}

	w = serve(t, newTestHandlers(&mockIndexer{}, &mockStore{err: errors.New("locked")}), http.MethodGet, "/catalog")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
}

// =============================================================================
// Health, version and metrics
// =============================================================================

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		running    bool
		wantStatus string
	}{
		{"idle", false, statusIdle},
		{"indexing", true, statusIndexing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := &mockIndexer{running: tt.running, progress: indexer.Progress{RunID: "r"}}
			w := serve(t, newTestHandlers(idx, &mockStore{}), http.MethodGet, "/healthz")

			if w.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", w.Code)
			}
			resp := decode[HealthResponse](t, w)
			if resp.Status != tt.wantStatus || resp.Indexing != tt.running {
				t.Errorf("Unexpected health response: %+v", resp)
			}
			if resp.Version != startup.Version || resp.NumCPU < 1 || resp.RunID != "r" {
				t.Errorf("Expected process information, got %+v", resp)
			}
		})
	}
}

func TestHeadRequestsHaveNoBody(t *testing.T) {
	h := newTestHandlers(&mockIndexer{}, &mockStore{})
	for _, path := range []string{"/healthz", "/livez"} {
		w := serve(t, h, http.MethodHead, path)
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
		}
		if w.Body.Len() != 0 {
			t.Errorf("%s: expected empty body for HEAD, got %q", path, w.Body.String())
		}
	}
}

func TestLivenessCheck(t *testing.T) {
	w := serve(t, newTestHandlers(&mockIndexer{}, &mockStore{}), http.MethodGet, "/livez")
	if resp := decode[map[string]string](t, w); resp["status"] != "alive" {
		t.Errorf("Expected alive, got %v", resp)
	}
}

func TestGetVersion(t *testing.T) {
	w := serve(t, newTestHandlers(&mockIndexer{}, &mockStore{}), http.MethodGet, "/version")
	info := decode[startup.BuildInfo](t, w)
	if info.Version != startup.Version || info.GoVersion == "" {
		t.Errorf("Unexpected build info: %+v", info)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	w := serve(t, newTestHandlers(&mockIndexer{}, &mockStore{}), http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "dicom_index_runs_total") {
		t.Error("Expected indexer metrics in exposition")
	}
}

func TestUnknownRoute(t *testing.T) {
	w := serve(t, newTestHandlers(&mockIndexer{}, &mockStore{}), http.MethodGet, "/api/files")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}
