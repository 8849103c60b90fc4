// Package indexer catalogues the DICOM files of an archive.
//
// A run has three stages connected by queues:
//   - discovery, in its own goroutine behind an eager enumerator
//   - header parsing, on a bounded pool in the opener package
//   - classification and storage, on the goroutine that called Run
//
// Every visited path ends in exactly one outcome:
//
//	already known                      skipped_already_visited
//	not a DICOM file                   skipped_non_container (recorded)
//	malformed or missing identifiers   skipped_failed (recorded)
//	unreadable                         skipped_failed (retried next run)
//	instance already catalogued        processed_duplicate (recorded)
//	new instance                       processed
//	rows rejected by storage           skipped_failed (rolled back, recorded)
//
// The rows of one file are written in a single transaction, and the
// in-memory index learns a file's identifiers only after that transaction
// commits. Recorded paths are seeded as known at the start of the next run
// and are not opened again.
package indexer
