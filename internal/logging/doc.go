// Package logging builds the structured loggers used by dicom-index.
//
// Loggers are constructed once in the command layer and passed to each
// component; no package keeps a global logger. Levels:
//   - TRACE: per-file pipeline decisions
//   - DEBUG: verbose debugging information
//   - INFO: general operational messages
//   - WARN: warning conditions
//   - ERROR: error conditions
//
// The level comes from the --log-level flag, the -v count, or the DEBUG and
// LOG_LEVEL environment variables, in that order of precedence.
package logging
