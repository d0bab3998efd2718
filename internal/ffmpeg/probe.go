package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"media-pipeline/internal/metrics"
)

// Stream describes one stream of a probed source.
type Stream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// ProbeResult holds the parsed ffprobe output for a source.
type ProbeResult struct {
	Duration float64
	Streams  []Stream
}

// VideoStream returns the first video stream, or nil if the source has none.
func (p *ProbeResult) VideoStream() *Stream {
	for i := range p.Streams {
		if p.Streams[i].CodecType == "video" {
			return &p.Streams[i]
		}
	}
	return nil
}

// HasAudio reports whether the source carries at least one audio stream.
func (p *ProbeResult) HasAudio() bool {
	for _, s := range p.Streams {
		if s.CodecType == "audio" {
			return true
		}
	}
	return false
}

// raw ffprobe JSON shape. Duration arrives as a string in the format block.
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []Stream `json:"streams"`
}

// Probe runs ffprobe against a source and returns duration and per-stream
// dimensions/codec information. Non-zero exit or unparseable JSON surface
// as ErrProbe.
func (r *Runner) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, r.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	metrics.SubprocessDuration.WithLabelValues("probe").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SubprocessRuns.WithLabelValues("probe", "error").Inc()
		return nil, fmt.Errorf("%w: %v - %s", ErrProbe, err, tail(stderr.String(), 512))
	}

	result, err := parseProbeOutput(stdout.Bytes())
	if err != nil {
		metrics.SubprocessRuns.WithLabelValues("probe", "error").Inc()
		return nil, err
	}

	metrics.SubprocessRuns.WithLabelValues("probe", "success").Inc()
	return result, nil
}

func parseProbeOutput(data []byte) (*ProbeResult, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: unparseable ffprobe output: %v", ErrProbe, err)
	}

	result := &ProbeResult{Streams: out.Streams}
	if out.Format.Duration != "" {
		d, err := strconv.ParseFloat(out.Format.Duration, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad duration %q", ErrProbe, out.Format.Duration)
		}
		result.Duration = d
	}
	return result, nil
}
