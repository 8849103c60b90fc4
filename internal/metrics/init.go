package metrics

// Outcome and table label values, mirrored from the stats and database
// packages so that every series exists from the first scrape.
var (
	outcomeLabels = []string{"processed", "processed_duplicate", "skipped_non_container", "skipped_failed", "skipped_already_visited"}
	errorKinds    = []string{"not_recognized", "malformed", "missing_required_field", "io", "storage_transaction", "enumeration"}
	tableLabels   = []string{"patient", "study", "series", "instance", "duplicate_instance", "non_container_file", "failed_file"}
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, outcome := range outcomeLabels {
		IndexerOutcomes.WithLabelValues(outcome)
	}
	for _, kind := range errorKinds {
		IndexerErrors.WithLabelValues(kind)
	}
	for _, table := range tableLabels {
		CatalogRows.WithLabelValues(table)
	}

	for _, result := range []string{"ok", "not_recognized", "malformed", "error"} {
		ParseDuration.WithLabelValues(result)
	}

	for _, op := range []string{"stat", "open", "readdir"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
		FilesystemRetryDuration.WithLabelValues(op)
	}

	for _, op := range []string{"initialize_schema", "seed_identifiers", "seed_path_statuses", "count_rows", "start_run", "finish_run", "list_runs", "get_run"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, result := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(result)
	}
}
