// Package metrics provides Prometheus instrumentation for the media pipeline.
//
// All metrics are prefixed with "media_pipeline_" to avoid naming collisions
// with other applications.
//
// # Metric Categories
//
// ## Queue Metrics
//
// Track the single-flight processing queue:
//   - QueueFilesProcessed: Counter of completed files by kind and status
//   - QueuePipelineDuration: Histogram of end-to-end pipeline duration by kind
//   - QueueDepth: Gauge of queued files awaiting processing
//   - QueueProcessing: Gauge of whether the worker slot is busy
//   - QueueStaleSwept: Counter of stale PROCESSING rows swept to FAILED
//   - QueueExpiredReaped: Counter of expired provisional files deleted
//
// ## Subprocess Metrics
//
// Track ffmpeg/ffprobe invocations:
//   - SubprocessRuns: Counter by operation and status
//   - SubprocessDuration: Histogram of wall-clock duration by operation
//
// ## Catalog Metrics
//
// Monitor catalog query performance:
//   - DBQueryTotal: Counter of queries by operation and status
//   - DBQueryDuration: Histogram of query duration by operation
//
// ## Storage Metrics
//
// Monitor artifact relocation into content-addressed storage:
//   - StorageRelocations: Counter of relocations by status
//   - StorageRetryAttempts: Counter of retried filesystem operations
//   - StorageBytesWritten: Counter of bytes relocated
//
// ## HTTP Metrics
//
// Track requests to the ops listener (health, metrics, version).
package metrics
