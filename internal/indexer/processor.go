package indexer

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"dicom-index/internal/database"
	"dicom-index/internal/header"
	"dicom-index/internal/metrics"
	"dicom-index/internal/opener"
	"dicom-index/internal/stats"
)

// process classifies one opener result into exactly one outcome and applies
// its storage effect. Identifiers reach the index only after their rows
// were committed.
func (idx *Indexer) process(log zerolog.Logger, res opener.Result) stats.Outcome {
	path := res.Path

	if res.Skipped || idx.index.IsKnownPath(path) {
		log.Trace().Str("path", path).Msg("already visited")
		return stats.SkippedAlreadyVisited
	}

	if res.Err != nil {
		return idx.processParseError(log, path, res.Err)
	}

	c, err := idx.index.Classify(res.Header, path)
	if err != nil {
		metrics.IndexerErrors.WithLabelValues("missing_required_field").Inc()
		log.Warn().Err(err).Str("path", path).Msg("header lacks identifiers")
		return idx.fail(log, path, err)
	}

	if c.IsDuplicate() {
		err := idx.inBatch(func(tx *sql.Tx) error {
			return idx.store.InsertDuplicate(tx, *c.Duplicate)
		})
		if err != nil {
			metrics.IndexerErrors.WithLabelValues("storage_transaction").Inc()
			log.Error().Err(err).Str("path", path).Msg("failed to record duplicate instance")
			return idx.fail(log, path, err)
		}
		log.Debug().Str("path", path).Str("sop_instance_uid", c.Duplicate.SOPInstanceUID).Msg("duplicate instance")
		idx.index.MarkPathStatus(path, database.StatusProcessed)
		return stats.ProcessedDuplicate
	}

	err = idx.inBatch(func(tx *sql.Tx) error {
		return idx.store.UpsertRows(tx, c.Rows)
	})
	if err != nil {
		metrics.IndexerErrors.WithLabelValues("storage_transaction").Inc()
		log.Error().Err(err).Str("path", path).Msg("failed to write catalog rows")
		return idx.fail(log, path, err)
	}

	idx.index.Commit(c.Identifiers)
	idx.index.MarkPathStatus(path, database.StatusProcessed)
	log.Debug().Str("path", path).Str("sop_instance_uid", c.Identifiers.SOPInstanceUID).Msg("catalogued")
	return stats.Processed
}

func (idx *Indexer) processParseError(log zerolog.Logger, path string, err error) stats.Outcome {
	switch {
	case errors.Is(err, header.ErrNotRecognized):
		metrics.IndexerErrors.WithLabelValues("not_recognized").Inc()
		log.Debug().Str("path", path).Msg("not a DICOM file")
		storeErr := idx.inBatch(func(tx *sql.Tx) error {
			return idx.store.InsertNonContainer(tx, path)
		})
		if storeErr != nil {
			metrics.IndexerErrors.WithLabelValues("storage_transaction").Inc()
			log.Error().Err(storeErr).Str("path", path).Msg("failed to record non-DICOM file")
		}
		idx.index.MarkPathStatus(path, database.StatusSkippedNonContainer)
		return stats.SkippedNonContainer

	case errors.Is(err, header.ErrMalformed):
		metrics.IndexerErrors.WithLabelValues("malformed").Inc()
		log.Warn().Err(err).Str("path", path).Msg("malformed DICOM header")
		return idx.fail(log, path, err)

	default:
		// I/O failures may be transient, so they are not persisted and the
		// file is retried by the next run.
		metrics.IndexerErrors.WithLabelValues("io").Inc()
		log.Warn().Err(err).Str("path", path).Msg("cannot read file")
		idx.index.MarkPathStatus(path, database.StatusSkippedFailed)
		return stats.SkippedFailed
	}
}

// fail records path as failed, in storage and in the index.
func (idx *Indexer) fail(log zerolog.Logger, path string, cause error) stats.Outcome {
	err := idx.inBatch(func(tx *sql.Tx) error {
		return idx.store.InsertFailed(tx, database.FailedFile{Path: path, Reason: cause.Error()})
	})
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to record failed file")
	}
	idx.index.MarkPathStatus(path, database.StatusSkippedFailed)
	return stats.SkippedFailed
}

// inBatch runs fn in one transaction, committing on success and rolling
// back on error.
func (idx *Indexer) inBatch(fn func(tx *sql.Tx) error) error {
	tx, err := idx.store.BeginBatch()
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrStorageTransaction, err)
	}
	if err := idx.store.EndBatch(tx, fn(tx)); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageTransaction, err)
	}
	return nil
}
