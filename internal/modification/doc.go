// Package modification validates and normalizes user-supplied
// non-destructive modifications (crop, trim) against the probed source.
//
// All functions are pure: they never touch the filesystem or spawn
// subprocesses. Absent modifications take the no-op default path and never
// produce an error; only out-of-bounds values fail, with
// ErrInvalidModification.
package modification
