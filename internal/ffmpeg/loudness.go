package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Loudness normalization targets. Defaults follow common streaming practice:
// -16 LUFS integrated, -1.5 dBTP true peak, 11 LU loudness range.
type LoudnessOptions struct {
	IntegratedLUFS float64
	TruePeakDBTP   float64
	RangeLU        float64
}

// DefaultLoudnessOptions returns the standard normalization targets.
func DefaultLoudnessOptions() LoudnessOptions {
	return LoudnessOptions{
		IntegratedLUFS: -16,
		TruePeakDBTP:   -1.5,
		RangeLU:        11,
	}
}

// LoudnessMeasurements holds the five measurements from the analysis pass,
// all required by the application pass.
type LoudnessMeasurements struct {
	InputI       float64
	InputLRA     float64
	InputTP      float64
	InputThresh  float64
	TargetOffset float64
}

// raw loudnorm JSON: every value arrives as a string.
type loudnormJSON struct {
	InputI       *string `json:"input_i"`
	InputLRA     *string `json:"input_lra"`
	InputTP      *string `json:"input_tp"`
	InputThresh  *string `json:"input_thresh"`
	TargetOffset *string `json:"target_offset"`
}

// AnalyzeLoudness runs the measurement pass of two-pass loudness
// normalization. The loudnorm filter prints its measurements as a JSON block
// at the end of stderr; a missing block or missing measurement surfaces as
// ErrLoudness.
func (r *Runner) AnalyzeLoudness(ctx context.Context, path string, opts LoudnessOptions) (*LoudnessMeasurements, error) {
	filter := fmt.Sprintf("loudnorm=I=%g:TP=%g:LRA=%g:print_format=json",
		opts.IntegratedLUFS, opts.TruePeakDBTP, opts.RangeLU)

	args := []string{
		"-hide_banner", "-nostats",
		"-i", path,
		"-af", filter,
		"-f", "null", "-",
	}

	_, stderr, err := r.run(ctx, "loudness", args)
	if err != nil {
		return nil, err
	}

	return parseLoudnessOutput(string(stderr))
}

// parseLoudnessOutput locates and decodes the loudnorm JSON block in the
// process output stream.
func parseLoudnessOutput(output string) (*LoudnessMeasurements, error) {
	open := strings.LastIndex(output, "{")
	close := strings.LastIndex(output, "}")
	if open == -1 || close < open {
		return nil, fmt.Errorf("%w: no measurement JSON in output", ErrLoudness)
	}

	var raw loudnormJSON
	if err := json.Unmarshal([]byte(output[open:close+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: unparseable measurement JSON: %v", ErrLoudness, err)
	}

	m := &LoudnessMeasurements{}
	for _, field := range []struct {
		name  string
		value *string
		dst   *float64
	}{
		{"input_i", raw.InputI, &m.InputI},
		{"input_lra", raw.InputLRA, &m.InputLRA},
		{"input_tp", raw.InputTP, &m.InputTP},
		{"input_thresh", raw.InputThresh, &m.InputThresh},
		{"target_offset", raw.TargetOffset, &m.TargetOffset},
	} {
		if field.value == nil {
			return nil, fmt.Errorf("%w: missing measurement %s", ErrLoudness, field.name)
		}
		v, err := strconv.ParseFloat(*field.value, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad measurement %s=%q", ErrLoudness, field.name, *field.value)
		}
		*field.dst = v
	}

	return m, nil
}

// LoudnormFilter builds the application-pass filter expression from the
// measured values. Exposed so video renders can carry it as their audio
// filter inside the same invocation as the video encode.
func LoudnormFilter(measured *LoudnessMeasurements, opts LoudnessOptions) string {
	return fmt.Sprintf(
		"loudnorm=I=%g:TP=%g:LRA=%g:measured_I=%g:measured_LRA=%g:measured_TP=%g:measured_thresh=%g:offset=%g:linear=true:dual_mono=true",
		opts.IntegratedLUFS, opts.TruePeakDBTP, opts.RangeLU,
		measured.InputI, measured.InputLRA, measured.InputTP, measured.InputThresh, measured.TargetOffset,
	)
}

// NormalizeAudio runs the application pass, re-invoking the transcoder with
// a loudnorm filter parameterized by the measured values. Two-pass is
// mandatory: single-pass normalization produces audible pumping on program
// material with wide dynamic range.
//
// outputOptions selects the target codec (e.g. libmp3lame for audio uploads,
// aac inside an MP4 render).
func (r *Runner) NormalizeAudio(ctx context.Context, inPath, outPath string, measured *LoudnessMeasurements, opts LoudnessOptions, outputOptions []string) error {
	filter := LoudnormFilter(measured, opts)

	args := []string{
		"-y", "-hide_banner", "-nostats",
		"-i", inPath,
		"-af", filter,
	}
	args = append(args, outputOptions...)
	args = append(args, outPath)

	_, _, err := r.run(ctx, "loudness", args)
	return err
}
