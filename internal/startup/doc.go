// Package startup holds build information and the preparation and logging
// done once before a command runs.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//
//	go build -ldflags "-X dicom-index/internal/startup.Version=1.2.0 \
//	    -X dicom-index/internal/startup.Commit=$(git rev-parse --short HEAD)"
//
// # Lifecycle Logging
//
//   - [LogSystemInfo]: version, platform and CPU limits
//   - [LogRoutes]: routes of the progress server (debug level)
//   - [LogServerStarted]: progress server endpoints
//
// [EnsureDatabaseDir] creates the directory of the catalog file and checks
// that it is writable before SQLite is asked to open it.
package startup
