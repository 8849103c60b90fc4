package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver
	"github.com/rs/zerolog"

	"dicom-index/internal/header"
	"dicom-index/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// schemaVersion is stored in the metadata table.
const schemaVersion = "1"

// Database is the SQLite catalog of patients, studies, series and instances
// plus the per-path bookkeeping that lets a run resume.
type Database struct {
	db      *sql.DB
	dbPath  string
	log     zerolog.Logger
	mu      sync.RWMutex
	txStart time.Time // start of the open batch, for metrics

	insertPatient  string
	insertStudy    string
	insertSeries   string
	insertInstance string
}

// New opens or creates the catalog at dbPath. The parent directory must
// already exist and be writable.
func New(ctx context.Context, dbPath string, log zerolog.Logger) (*Database, error) {
	log.Debug().Str("path", dbPath).Msg("opening catalog database")

	if err := diagnoseDatabasePermissions(dbPath, log); err != nil {
		log.Warn().Err(err).Msg("database permission diagnostics")
	}

	// busy_timeout helps prevent "database is locked" errors when the
	// metrics collector reads during a batch.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close database after ping failure")
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:             db,
		dbPath:         dbPath,
		log:            log,
		insertPatient:  insertStatement("patient", []string{"patient_id"}, header.PatientFields),
		insertStudy:    insertStatement("study", []string{"study_instance_uid", "patient_id"}, header.StudyFields),
		insertSeries:   insertStatement("series", []string{"series_instance_uid", "study_instance_uid"}, header.SeriesFields),
		insertInstance: insertStatement("instance", []string{"sop_instance_uid", "series_instance_uid", "path"}, header.InstanceFields),
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close database after initialization failure")
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	log.Debug().Str("path", dbPath).Msg("catalog database ready")
	return d, nil
}

// Exists reports whether a catalog file is already present at dbPath.
func Exists(dbPath string) bool {
	info, err := os.Stat(dbPath)
	return err == nil && info.Size() > 0
}

func (d *Database) initialize(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS patient (
		patient_id TEXT PRIMARY KEY,
		%s
		created_at INTEGER NOT NULL DEFAULT (strftime('%%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS study (
		study_instance_uid TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL REFERENCES patient(patient_id),
		%s
		created_at INTEGER NOT NULL DEFAULT (strftime('%%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_study_patient ON study(patient_id);

	CREATE TABLE IF NOT EXISTS series (
		series_instance_uid TEXT PRIMARY KEY,
		study_instance_uid TEXT NOT NULL REFERENCES study(study_instance_uid),
		%s
		created_at INTEGER NOT NULL DEFAULT (strftime('%%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_series_study ON series(study_instance_uid);

	CREATE TABLE IF NOT EXISTS instance (
		sop_instance_uid TEXT PRIMARY KEY,
		series_instance_uid TEXT NOT NULL REFERENCES series(series_instance_uid),
		path TEXT NOT NULL UNIQUE,
		%s
		created_at INTEGER NOT NULL DEFAULT (strftime('%%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_instance_series ON instance(series_instance_uid);

	CREATE TABLE IF NOT EXISTS duplicate_instance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		sop_instance_uid TEXT NOT NULL REFERENCES instance(sop_instance_uid),
		created_at INTEGER NOT NULL DEFAULT (strftime('%%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS non_container_file (
		path TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL DEFAULT (strftime('%%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS failed_file (
		path TEXT PRIMARY KEY,
		reason TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS index_run (
		id TEXT PRIMARY KEY,
		root TEXT NOT NULL,
		strategy TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		status TEXT NOT NULL,
		error TEXT,
		processed INTEGER NOT NULL DEFAULT 0,
		duplicates INTEGER NOT NULL DEFAULT 0,
		non_container INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		already_visited INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_index_run_started ON index_run(started_at);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`,
		attributeColumns(header.PatientFields),
		attributeColumns(header.StudyFields),
		attributeColumns(header.SeriesFields),
		attributeColumns(header.InstanceFields),
	)

	if _, err = d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	return d.checkSchemaVersion(ctx)
}

// checkSchemaVersion stamps a new catalog and refuses one written by an
// incompatible schema.
func (d *Database) checkSchemaVersion(ctx context.Context) error {
	version, err := d.GetMetadata(ctx, "schema_version")
	if errors.Is(err, sql.ErrNoRows) {
		return d.SetMetadata(ctx, "schema_version", schemaVersion)
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("catalog schema version %q is not supported (want %q)", version, schemaVersion)
	}
	return nil
}

func attributeColumns(fields []string) string {
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, "%q TEXT,\n\t\t", f)
	}
	return b.String()
}

// insertStatement builds an insert that keeps the existing row on a primary
// key conflict, so the first file seen for an entity wins.
func insertStatement(table string, keys, fields []string) string {
	cols := make([]string, 0, len(keys)+len(fields))
	cols = append(cols, keys...)
	for _, f := range fields {
		cols = append(cols, fmt.Sprintf("%q", f))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO NOTHING",
		table, strings.Join(cols, ", "), placeholders, keys[0])
}

func attributeArgs(args []any, fields []string, attrs Attributes) []any {
	for _, f := range fields {
		v, ok := attrs[f]
		args = append(args, sql.NullString{String: v, Valid: ok})
	}
	return args
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the catalog file path.
func (d *Database) Path() string {
	return d.dbPath
}

// BeginBatch starts a transaction for the rows of one file.
// The caller is responsible for calling EndBatch when done.
func (d *Database) BeginBatch() (*sql.Tx, error) {
	d.mu.Lock()
	txStart := time.Now()

	// Transaction lifetime is managed by EndBatch, not a timeout.
	tx, err := d.db.BeginTx(context.Background(), nil)
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}

	d.txStart = txStart
	return tx, nil
}

// EndBatch commits the transaction, or rolls it back when err is non-nil.
func (d *Database) EndBatch(tx *sql.Tx, err error) error {
	duration := time.Since(d.txStart).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		rbErr := tx.Rollback()
		if rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	if commitErr := tx.Commit(); commitErr != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		return commitErr
	}
	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return nil
}

// UpsertRows writes the non-nil rows parent first. Existing entities are
// left untouched.
func (d *Database) UpsertRows(tx *sql.Tx, rows Rows) error {
	ctx := context.Background()

	if p := rows.Patient; p != nil {
		args := attributeArgs([]any{p.PatientID}, header.PatientFields, p.Attributes)
		if _, err := tx.ExecContext(ctx, d.insertPatient, args...); err != nil {
			return fmt.Errorf("insert patient %s: %w", p.PatientID, err)
		}
	}
	if s := rows.Study; s != nil {
		args := attributeArgs([]any{s.StudyInstanceUID, s.PatientID}, header.StudyFields, s.Attributes)
		if _, err := tx.ExecContext(ctx, d.insertStudy, args...); err != nil {
			return fmt.Errorf("insert study %s: %w", s.StudyInstanceUID, err)
		}
	}
	if s := rows.Series; s != nil {
		args := attributeArgs([]any{s.SeriesInstanceUID, s.StudyInstanceUID}, header.SeriesFields, s.Attributes)
		if _, err := tx.ExecContext(ctx, d.insertSeries, args...); err != nil {
			return fmt.Errorf("insert series %s: %w", s.SeriesInstanceUID, err)
		}
	}
	if i := rows.Instance; i != nil {
		args := attributeArgs([]any{i.SOPInstanceUID, i.SeriesInstanceUID, i.Path}, header.InstanceFields, i.Attributes)
		if _, err := tx.ExecContext(ctx, d.insertInstance, args...); err != nil {
			return fmt.Errorf("insert instance %s: %w", i.SOPInstanceUID, err)
		}
	}
	return nil
}

// InsertDuplicate records a file repeating an already catalogued instance.
func (d *Database) InsertDuplicate(tx *sql.Tx, dup DuplicateInstance) error {
	_, err := tx.ExecContext(context.Background(), `
		INSERT INTO duplicate_instance (path, sop_instance_uid) VALUES (?, ?)
		ON CONFLICT(path) DO NOTHING
	`, dup.Path, dup.SOPInstanceUID)
	return err
}

// InsertNonContainer records a file that is not a DICOM Part-10 container.
func (d *Database) InsertNonContainer(tx *sql.Tx, path string) error {
	_, err := tx.ExecContext(context.Background(),
		"INSERT INTO non_container_file (path) VALUES (?) ON CONFLICT(path) DO NOTHING", path)
	return err
}

// InsertFailed records a file that could not be catalogued.
func (d *Database) InsertFailed(tx *sql.Tx, f FailedFile) error {
	_, err := tx.ExecContext(context.Background(), `
		INSERT INTO failed_file (path, reason) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET reason = excluded.reason
	`, f.Path, f.Reason)
	return err
}

// SeedIdentifiers loads every catalogued entity key.
func (d *Database) SeedIdentifiers(ctx context.Context) (ids Identifiers, err error) {
	start := time.Now()
	defer func() { recordQuery("seed_identifiers", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, q := range []struct {
		query string
		dst   *[]string
	}{
		{"SELECT patient_id FROM patient", &ids.Patients},
		{"SELECT study_instance_uid FROM study", &ids.Studies},
		{"SELECT series_instance_uid FROM series", &ids.Series},
		{"SELECT sop_instance_uid FROM instance", &ids.Instances},
	} {
		if *q.dst, err = d.queryStrings(ctx, q.query); err != nil {
			return Identifiers{}, err
		}
	}
	return ids, nil
}

// SeedPathStatuses loads the terminal status of every recorded path.
// Catalogued instances and duplicates count as processed.
func (d *Database) SeedPathStatuses(ctx context.Context) (statuses map[string]PathStatus, err error) {
	start := time.Now()
	defer func() { recordQuery("seed_path_statuses", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	statuses = make(map[string]PathStatus)
	for _, q := range []struct {
		query  string
		status PathStatus
	}{
		{"SELECT path FROM instance", StatusProcessed},
		{"SELECT path FROM duplicate_instance", StatusProcessed},
		{"SELECT path FROM non_container_file", StatusSkippedNonContainer},
		{"SELECT path FROM failed_file", StatusSkippedFailed},
	} {
		paths, err := d.queryStrings(ctx, q.query)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			statuses[p] = q.status
		}
	}
	return statuses, nil
}

func (d *Database) queryStrings(ctx context.Context, query string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountTables lists the tables reported by CountRows, in display order.
var CountTables = []string{"patient", "study", "series", "instance", "duplicate_instance", "non_container_file", "failed_file"}

// CountRows returns the number of rows in each catalog table.
func (d *Database) CountRows(ctx context.Context) (counts map[string]int64, err error) {
	start := time.Now()
	defer func() { recordQuery("count_rows", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	counts = make(map[string]int64, len(CountTables))
	for _, table := range CountTables {
		var n int64
		// Table names come from CountTables, never from input.
		if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string, log zerolog.Logger) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	log.Trace().Str("dir", dir).Stringer("mode", dirInfo.Mode()).Msg("database directory")

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if info.Mode().Perm()&0o200 == 0 {
			log.Warn().Str("file", p).Stringer("mode", info.Mode()).Msg("database file is read-only, writes will fail")
		}
	}

	return nil
}
