// Package ffmpeg is a thin, typed façade over the external ffmpeg and
// ffprobe binaries.
//
// It exposes five operations, each implemented as a spawned subprocess with
// structured stdout/stderr parsing:
//
//   - Probe: duration and per-stream width/height/codec
//   - Screenshot: single-frame still extraction at a timestamp
//   - Transcode: generic render with one filter graph and streamed progress
//   - AnalyzeLoudness / NormalizeAudio: two-pass EBU R128-style loudness
//     normalization (measurement pass, then application pass parameterized by
//     the measured values)
//   - GenerateWaveform: fixed-length normalized peak sequence for UI
//     rendering, with RMS reduction and two-scale dynamic-range enhancement
//
// Every operation is awaited to completion; cancellation goes through the
// context. Progress from long renders streams as key=value lines on stdout
// and is surfaced through a caller-supplied callback as a percentage of the
// known total duration. Probe failures surface as ErrProbe, measurement
// parse failures as ErrLoudness; everything else wraps the subprocess error
// with the tail of stderr.
package ffmpeg
