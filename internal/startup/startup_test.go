package startup

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
	if info.OS != runtime.GOOS || info.Arch != runtime.GOARCH {
		t.Errorf("Expected %s/%s, got %s/%s", runtime.GOOS, runtime.GOARCH, info.OS, info.Arch)
	}
	if !strings.Contains(info.String(), info.Version) {
		t.Errorf("Expected String() to contain version, got %q", info.String())
	}
}

func TestGetRoutes(t *testing.T) {
	r := mux.NewRouter()
	noop := func(http.ResponseWriter, *http.Request) {}
	r.HandleFunc("/progress", noop).Methods(http.MethodGet)
	r.HandleFunc("/healthz", noop).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/any", noop)

	routes, err := GetRoutes(r)
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}

	want := []RouteInfo{
		{Method: "GET", Path: "/progress"},
		{Method: "GET", Path: "/healthz"},
		{Method: "HEAD", Path: "/healthz"},
		{Method: "*", Path: "/any"},
	}
	if len(routes) != len(want) {
		t.Fatalf("Expected %d routes, got %d: %v", len(want), len(routes), routes)
	}
	for i := range want {
		if routes[i] != want[i] {
			t.Errorf("route %d = %+v, want %+v", i, routes[i], want[i])
		}
	}
}

func TestLogRoutesOnlyAtDebug(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/progress", func(http.ResponseWriter, *http.Request) {}).Methods(http.MethodGet)

	var buf bytes.Buffer
	LogRoutes(zerolog.New(&buf).Level(zerolog.InfoLevel), r)
	if buf.Len() != 0 {
		t.Errorf("Expected no output at info level, got %s", buf.String())
	}

	LogRoutes(zerolog.New(&buf).Level(zerolog.DebugLevel), r)
	if !strings.Contains(buf.String(), `"path":"/progress"`) {
		t.Errorf("Expected route in debug output, got %s", buf.String())
	}
}

func TestLogSystemInfo(t *testing.T) {
	var buf bytes.Buffer
	LogSystemInfo(zerolog.New(&buf))
	if !strings.Contains(buf.String(), `"version":"`+Version+`"`) {
		t.Errorf("Expected version in output, got %s", buf.String())
	}
}

func TestEnsureDatabaseDir(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) string
		wantErr bool
	}{
		{
			name: "existing writable directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "catalog.db")
			},
		},
		{
			name: "missing directory is created",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "a", "b", "catalog.db")
			},
		},
		{
			name: "parent is a file",
			setup: func(t *testing.T) string {
				file := filepath.Join(t.TempDir(), "file")
				if err := os.WriteFile(file, nil, 0o644); err != nil {
					t.Fatal(err)
				}
				return filepath.Join(file, "catalog.db")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbPath := tt.setup(t)
			err := EnsureDatabaseDir(dbPath, zerolog.Nop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("EnsureDatabaseDir() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if info, err := os.Stat(filepath.Dir(dbPath)); err != nil || !info.IsDir() {
				t.Errorf("Expected directory %s to exist", filepath.Dir(dbPath))
			}
			if _, err := os.Stat(filepath.Join(filepath.Dir(dbPath), ".write-test")); !os.IsNotExist(err) {
				t.Error("Expected write test file to be removed")
			}
		})
	}
}
