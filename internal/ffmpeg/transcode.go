package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"media-pipeline/internal/metrics"
)

// TranscodeSpec describes one ffmpeg render invocation.
type TranscodeSpec struct {
	// InputOptions are placed before -i (pre-decode seek lives here).
	InputOptions []string
	Input        string
	// FilterGraph is the single filter chain for this invocation; graphs
	// containing ';' are passed as -filter_complex, linear chains as -vf.
	FilterGraph string
	// AudioFilter is the -af chain (loudness normalization for
	// audio-bearing renders).
	AudioFilter string
	// OutputOptions are codec/bitrate flags placed before the output path.
	OutputOptions []string
	Output        string

	// Duration is the total output duration in seconds, used to convert
	// streamed progress into a percentage. Zero disables progress.
	Duration   float64
	OnProgress func(percent float64)
}

// Transcode runs one render invocation to completion, streaming progress to
// the spec's callback as machine-readable progress lines arrive.
func (r *Runner) Transcode(ctx context.Context, spec TranscodeSpec) error {
	args := []string{"-y", "-hide_banner", "-nostats"}
	args = append(args, spec.InputOptions...)
	args = append(args, "-i", spec.Input)

	if spec.FilterGraph != "" {
		if strings.Contains(spec.FilterGraph, ";") {
			args = append(args, "-filter_complex", spec.FilterGraph)
		} else {
			args = append(args, "-vf", spec.FilterGraph)
		}
	}

	if spec.AudioFilter != "" {
		args = append(args, "-af", spec.AudioFilter)
	}

	args = append(args, spec.OutputOptions...)
	args = append(args, "-progress", "pipe:1", spec.Output)

	start := time.Now()
	cmd := exec.CommandContext(ctx, r.FFmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		metrics.SubprocessRuns.WithLabelValues("transcode", "error").Inc()
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	// Progress lines must be drained even when nobody listens, or ffmpeg
	// blocks on a full pipe.
	parseProgress(stdout, spec.Duration, spec.OnProgress)

	err = cmd.Wait()
	metrics.SubprocessDuration.WithLabelValues("transcode").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SubprocessRuns.WithLabelValues("transcode", "error").Inc()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("transcode failed: %w - %s", err, tail(stderr.String(), 512))
	}

	metrics.SubprocessRuns.WithLabelValues("transcode", "success").Inc()
	if spec.OnProgress != nil {
		spec.OnProgress(100)
	}
	return nil
}

// parseProgress consumes ffmpeg -progress key=value lines, converting
// elapsed output time over the known total duration into a percentage.
func parseProgress(r io.Reader, totalDuration float64, onProgress func(float64)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		switch key {
		case "out_time_us", "out_time_ms":
			if onProgress == nil || totalDuration <= 0 {
				continue
			}
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || us < 0 {
				continue
			}
			percent := float64(us) / 1e6 / totalDuration * 100
			if percent > 100 {
				percent = 100
			}
			onProgress(percent)
		case "progress":
			if value == "end" && onProgress != nil {
				onProgress(100)
			}
		}
	}
}

// Screenshot extracts a single frame at the given timestamp. Used both for
// dimension discovery before crop/trim and for poster-frame generation after
// compression, so the poster reflects applied modifications.
func (r *Runner) Screenshot(ctx context.Context, path string, atSeconds float64, outPath string) error {
	args := []string{
		"-y", "-hide_banner", "-nostats",
		"-ss", strconv.FormatFloat(atSeconds, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-q:v", "2",
		outPath,
	}

	_, _, err := r.run(ctx, "screenshot", args)
	return err
}
