// Package processor contains the per-kind media pipelines. Each pipeline
// takes a source file and a scratch directory, runs the decode, modification,
// compression, and derivation steps for its media kind, and returns a Result
// describing every artifact it produced. Pipelines never touch the catalog
// or permanent storage; persisting their output is the orchestrator's job.
package processor
