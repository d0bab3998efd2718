// Package reaper runs the background housekeeping sweeps: deleting expired
// provisional uploads and failing PROCESSING rows abandoned by dead workers.
package reaper
