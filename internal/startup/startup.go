package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// String renders the build information on one line.
func (b BuildInfo) String() string {
	return fmt.Sprintf("dicom-index %s (commit %s, built %s, %s %s/%s)",
		b.Version, b.Commit, b.BuildTime, b.GoVersion, b.OS, b.Arch)
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{Method: method, Path: pathTemplate})
		}
		return nil
	})

	return routes, err
}

// LogSystemInfo logs the build and the CPU budget the worker pools are
// sized from.
func LogSystemInfo(log zerolog.Logger) {
	info := GetBuildInfo()
	event := log.Info().
		Str("version", info.Version).
		Str("commit", info.Commit).
		Str("go", info.GoVersion).
		Str("platform", info.OS+"/"+info.Arch).
		Int("cpus", runtime.NumCPU()).
		Int("gomaxprocs", runtime.GOMAXPROCS(0))
	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		event = event.Bool("cpu_limited", true)
	}
	event.Msg("starting")

	if log.GetLevel() <= zerolog.DebugLevel {
		if wd, err := os.Getwd(); err == nil {
			log.Debug().Str("dir", wd).Msg("working directory")
		}
	}
}

// LogRoutes logs the routes of router at debug level.
func LogRoutes(log zerolog.Logger, router *mux.Router) {
	if log.GetLevel() > zerolog.DebugLevel {
		return
	}
	routes, err := GetRoutes(router)
	if err != nil {
		log.Warn().Err(err).Msg("error walking routes")
	}
	for _, r := range routes {
		log.Debug().Str("method", r.Method).Str("path", r.Path).Msg("route")
	}
}

// LogServerStarted logs where the progress server listens.
func LogServerStarted(log zerolog.Logger, addr string) {
	log.Info().
		Str("addr", addr).
		Str("progress", "http://"+addr+"/progress").
		Str("metrics", "http://"+addr+"/metrics").
		Msg("progress server listening")
}

// EnsureDatabaseDir creates the directory holding dbPath and verifies that
// it accepts new files, which SQLite needs for its WAL and journal.
func EnsureDatabaseDir(dbPath string, log zerolog.Logger) error {
	dir := filepath.Dir(dbPath)

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		log.Debug().Str("dir", dir).Msg("creating database directory")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s exists but is not a directory", dir)
	}

	return testWriteAccess(dir, log)
}

func testWriteAccess(dir string, log zerolog.Logger) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return fmt.Errorf("directory %s is not writable: %w", dir, err)
	}
	if err := os.Remove(testFile); err != nil {
		log.Warn().Err(err).Str("file", testFile).Msg("failed to remove write test file")
	}
	return nil
}
