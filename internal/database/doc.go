// Package database provides the SQLite catalog for dicom-index.
//
// It stores:
//   - Patient, study, series and instance rows, linked by foreign keys
//   - Duplicate instances, non-container files and failed files, so that
//     a later run does not reopen them
//   - Index run history
//
// Descriptive attributes are TEXT columns named by DICOM keyword, taken
// from the field lists of the header package. Rows are insert-only: the
// first file seen for an entity determines its attributes.
//
// The database uses WAL mode with foreign keys enabled. Writes happen in
// per-file batches opened with BeginBatch and closed with EndBatch.
package database
