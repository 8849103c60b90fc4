package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dicom_index_http_requests_total",
			Help: "Total number of HTTP requests to the progress server",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dicom_index_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dicom_index_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Indexer run metrics
var (
	IndexerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dicom_index_runs_total",
			Help: "Total number of indexing runs",
		},
	)

	IndexerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dicom_index_is_running",
			Help: "Whether an indexing run is in progress (1) or not (0)",
		},
	)

	IndexerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dicom_index_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last completed run",
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dicom_index_last_run_duration_seconds",
			Help: "Duration of the last completed run in seconds",
		},
	)

	IndexerOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dicom_index_path_outcomes_total",
			Help: "Visited paths by terminal outcome",
		},
		[]string{"outcome"},
	)

	IndexerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dicom_index_errors_total",
			Help: "Pipeline errors by kind",
		},
		[]string{"kind"},
	)
)

// Pipeline stage metrics
var (
	PathsDiscovered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dicom_index_paths_discovered",
			Help: "Candidate paths pushed by the discovery worker in the current run",
		},
	)

	PathsSubmitted = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dicom_index_paths_submitted",
			Help: "Paths submitted to the file opener in the current run",
		},
	)

	OpenerWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dicom_index_opener_workers",
			Help: "Size of the file opener worker pool",
		},
	)

	OpenerInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dicom_index_opener_in_flight",
			Help: "Header parses currently running",
		},
	)

	ParseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dicom_index_parse_duration_seconds",
			Help:    "Time to open and parse one file header",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"result"},
	)

	EnumeratorTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dicom_index_enumerator_timeouts_total",
			Help: "Waits on the discovery worker that exceeded the bounded timeout",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dicom_index_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dicom_index_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dicom_index_db_transaction_duration_seconds",
			Help:    "Duration of per-file catalog transactions",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"result"},
	)

	CatalogRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dicom_index_catalog_rows",
			Help: "Rows in the catalog by table",
		},
		[]string{"table"},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dicom_index_filesystem_retry_attempts_total",
			Help: "Retry attempts after stale file handle errors",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dicom_index_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dicom_index_filesystem_retry_failures_total",
			Help: "Operations that still failed after all retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dicom_index_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dicom_index_filesystem_operation_duration_seconds",
			Help:    "Duration of retried filesystem operations including backoff",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		},
		[]string{"operation"},
	)
)
