// Package filtergraph builds the single ffmpeg filter-graph expression a
// render invocation is allowed to carry.
//
// Fragments are bucketed by category (crop, scale, codec optimization,
// custom) rather than insertion order, so the emitted chain is always
// geometrically correct: cropping happens in source-pixel space before any
// scale, and palette generation sees the final frame size. Silent
// misordering here corrupts output geometry without failing the subprocess,
// which is why the ordering is explicit and tested.
package filtergraph
