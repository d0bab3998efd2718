// Package logging provides a simple leveled logging interface for the
// media pipeline.
//
// It supports the following log levels:
//   - DEBUG: Verbose pipeline tracing
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the process
//
// The log level is configured via the LOG_LEVEL environment variable,
// or forced to debug by setting DEBUG=true.
package logging
