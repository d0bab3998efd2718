package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/metrics"
)

// ErrProbe is returned when a source cannot be read or its probe output
// cannot be parsed.
var ErrProbe = errors.New("media probe failed")

// ErrLoudness is returned when the loudness measurement pass does not
// produce the full set of required measurements.
var ErrLoudness = errors.New("loudness analysis failed")

// Runner is a typed façade over the external ffmpeg and ffprobe binaries.
// All operations run to completion before returning; cancellation happens
// only through the context.
type Runner struct {
	FFmpegPath  string
	FFprobePath string
}

// NewRunner returns a Runner using the given binary paths, defaulting to
// whatever "ffmpeg"/"ffprobe" resolve to on PATH.
func NewRunner(ffmpegPath, ffprobePath string) *Runner {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Runner{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}
}

// run executes an ffmpeg invocation, recording metrics under operation.
// stdout is returned; stderr is captured and included in errors.
func (r *Runner) run(ctx context.Context, operation string, args []string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, r.FFmpegPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.Debug("ffmpeg %s: %v", operation, args)

	err := cmd.Run()
	metrics.SubprocessDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SubprocessRuns.WithLabelValues(operation, "error").Inc()
		return stdout.Bytes(), stderr.Bytes(), fmt.Errorf("ffmpeg %s: %w - %s", operation, err, tail(stderr.String(), 512))
	}

	metrics.SubprocessRuns.WithLabelValues(operation, "success").Inc()
	return stdout.Bytes(), stderr.Bytes(), nil
}

// tail returns at most the last n bytes of s, for error messages.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
