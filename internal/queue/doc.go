// Package queue is the processing orchestrator. It claims queued files one
// at a time, runs the media processor against a scratch directory, relocates
// the produced artifacts into content-addressed storage, and records the
// outcome in the catalog.
//
// The worker is strictly single-flight: one file transcodes at a time, and
// the worker is woken by explicit CheckQueue calls rather than polling.
// Codec subprocesses are CPU- and memory-hungry; a FIFO single worker avoids
// resource exhaustion, and scaling out means running more worker processes
// against the same catalog, which the atomic claim already supports.
package queue
