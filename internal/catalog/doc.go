// Package catalog is the persistence layer for File and FileVariant records
// and their status transitions.
//
// It is backed by SQLite in WAL mode. The schema is created in code on
// startup; there is no external migration step.
//
// # Life Cycle
//
// A file is created QUEUED with no variants. ClaimOldestQueued atomically
// moves the oldest QUEUED row to PROCESSING, establishing exclusive
// ownership for one worker; the status guard inside the claim statement
// means N concurrent claims on one queued row produce exactly one winner,
// which is what makes running multiple worker processes against the same
// catalog safe. The worker then marks the row DONE or FAILED.
//
// # Invariants
//
//   - No variant rows exist for files whose status is not DONE.
//   - A variant row is only written after its physical artifact is in its
//     final content-addressed location.
//   - Deletion removes the file row and its variant rows in one
//     transaction; the caller removes physical artifacts afterwards.
//
// # Recovery
//
// SweepAbandonedProcessing runs at startup and fails every PROCESSING row
// with the "cleaned up after restart" note; abandoned work is never
// resumed because scratch-directory state does not survive the process.
// SweepStaleProcessing is the age-based variant for livelocked workers,
// driven by the reaper.
package catalog
