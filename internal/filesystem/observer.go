package filesystem

// Observer records filesystem retry metrics. The implementation lives in the
// metrics package to break the import cycle between filesystem and metrics.
//
// op is the filesystem operation: "stat", "open", "readdir".
type Observer interface {
	ObserveRetryAttempt(op string)
	ObserveRetrySuccess(op string)
	ObserveRetryFailure(op string)
	ObserveRetryDuration(op string, durationSeconds float64)
	ObserveStaleError(op string)
}
