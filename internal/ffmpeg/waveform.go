package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Waveform extraction runs the decoded stream through astats in fixed-size
// chunks and reduces the per-chunk peak levels to the requested sample
// count. The decode rate is fixed so identical inputs and options always
// produce identical output.
const (
	waveformRate = 8000
	// rawChunkFactor oversamples the target count so the RMS reduction has
	// real windows to work with.
	rawChunkFactor = 4

	// dB window mapped onto 0..1. Anything below the floor reads as silence.
	waveformFloorDB = -60.0
)

// WaveformChannel selects which channel feeds the waveform.
type WaveformChannel string

const (
	// ChannelMixed downmixes all channels to mono before analysis.
	ChannelMixed WaveformChannel = "mixed"
	// ChannelLeft analyzes the left channel only.
	ChannelLeft WaveformChannel = "left"
	// ChannelRight analyzes the right channel only.
	ChannelRight WaveformChannel = "right"
)

// WaveformOptions configures waveform generation.
type WaveformOptions struct {
	// Samples is the exact number of output values.
	Samples int
	// Channel defaults to ChannelMixed.
	Channel WaveformChannel
	// Duration is the known source duration; zero triggers a probe.
	Duration float64
}

// GenerateWaveform produces a fixed-length sequence of normalized (0..1)
// peak magnitudes for UI rendering. The raw peaks are reduced with
// RMS-over-window averaging rather than simple decimation, preserving
// perceptual loudness texture, then run through a two-scale dynamic-range
// enhancement so quiet or heavily-compressed material does not render as a
// flat bar.
func (r *Runner) GenerateWaveform(ctx context.Context, path string, opts WaveformOptions) ([]float64, error) {
	if opts.Samples <= 0 {
		return nil, fmt.Errorf("waveform samples must be positive, got %d", opts.Samples)
	}

	duration := opts.Duration
	if duration <= 0 {
		probe, err := r.Probe(ctx, path)
		if err != nil {
			return nil, err
		}
		duration = probe.Duration
	}
	if duration <= 0 {
		return nil, fmt.Errorf("%w: source has no duration", ErrProbe)
	}

	chunkCount := opts.Samples * rawChunkFactor
	samplesPerChunk := int(duration * waveformRate / float64(chunkCount))
	if samplesPerChunk < 1 {
		samplesPerChunk = 1
	}

	filter := fmt.Sprintf("aresample=%d,%s,asetnsamples=n=%d,astats=metadata=1:reset=1,ametadata=mode=print:key=lavfi.astats.Overall.Peak_level:file=-",
		waveformRate, channelFilter(opts.Channel), samplesPerChunk)

	args := []string{
		"-hide_banner", "-nostats",
		"-i", path,
		"-af", filter,
		"-f", "null", "-",
	}

	stdout, _, err := r.run(ctx, "waveform", args)
	if err != nil {
		return nil, err
	}

	peaks := parsePeakLevels(bytes.NewReader(stdout))
	if len(peaks) == 0 {
		return nil, fmt.Errorf("waveform statistics produced no peak levels")
	}

	linear := make([]float64, len(peaks))
	for i, db := range peaks {
		linear[i] = dbToLinear(db)
	}

	reduced := reduceRMS(linear, opts.Samples)
	return enhanceDynamicRange(reduced), nil
}

// channelFilter returns the pan expression selecting the analyzed channel.
func channelFilter(ch WaveformChannel) string {
	switch ch {
	case ChannelLeft:
		return "pan=mono|c0=c0"
	case ChannelRight:
		return "pan=mono|c0=c1"
	default:
		return "pan=mono|c0=0.5*c0+0.5*c1"
	}
}

// parsePeakLevels extracts per-chunk Peak_level dB values from ametadata
// print output. Silent chunks report -inf and read as the floor.
func parsePeakLevels(r io.Reader) []float64 {
	var peaks []float64
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		_, value, ok := strings.Cut(line, "Peak_level=")
		if !ok {
			continue
		}
		if value == "-inf" || value == "nan" {
			peaks = append(peaks, waveformFloorDB)
			continue
		}
		db, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}
		peaks = append(peaks, db)
	}
	return peaks
}

// dbToLinear maps a dB peak onto 0..1 over the fixed floor..0 window.
func dbToLinear(db float64) float64 {
	if db < waveformFloorDB {
		db = waveformFloorDB
	}
	if db > 0 {
		db = 0
	}
	return (db - waveformFloorDB) / -waveformFloorDB
}

// reduceRMS reduces raw samples to exactly target values using
// RMS-over-window averaging.
func reduceRMS(values []float64, target int) []float64 {
	if target <= 0 {
		return nil
	}
	out := make([]float64, target)
	if len(values) == 0 {
		return out
	}

	for i := 0; i < target; i++ {
		lo := i * len(values) / target
		hi := (i + 1) * len(values) / target
		if hi <= lo {
			hi = lo + 1
		}
		if hi > len(values) {
			hi = len(values)
		}
		var sum float64
		for _, v := range values[lo:hi] {
			sum += v * v
		}
		out[i] = math.Sqrt(sum / float64(hi-lo))
	}
	return out
}

// Contrast-stretch tuning. The boost factor is inversely proportional to a
// region's standard deviation, capped so noise never explodes.
const (
	stretchTargetDev = 0.22
	stretchMaxBoost  = 4.0
	localMaxBoost    = 2.0
)

// enhanceDynamicRange restores visual dynamic range to flat waveforms:
// a global chunk-wise contrast stretch, a local sliding-window pass at finer
// granularity, then a final min-max renormalization to 0..1.
func enhanceDynamicRange(values []float64) []float64 {
	if len(values) == 0 {
		return values
	}

	globalChunk := len(values) / 4
	if globalChunk < 8 {
		globalChunk = 8
	}
	stretched := stretchChunks(values, globalChunk, stretchMaxBoost)

	localWindow := len(values) / 16
	if localWindow < 4 {
		localWindow = 4
	}
	stretched = stretchSliding(stretched, localWindow, localMaxBoost)

	return normalize01(stretched)
}

// stretchChunks applies a chunk-wise contrast stretch with linear
// interpolation of chunk statistics between chunk centers, avoiding visible
// seams at chunk boundaries.
func stretchChunks(values []float64, chunkSize int, maxBoost float64) []float64 {
	chunkCount := (len(values) + chunkSize - 1) / chunkSize
	means := make([]float64, chunkCount)
	factors := make([]float64, chunkCount)

	for c := 0; c < chunkCount; c++ {
		lo := c * chunkSize
		hi := lo + chunkSize
		if hi > len(values) {
			hi = len(values)
		}
		mean, dev := meanStd(values[lo:hi])
		means[c] = mean
		factors[c] = boostFactor(dev, maxBoost)
	}

	out := make([]float64, len(values))
	for i, v := range values {
		mean, factor := interpolateChunkStats(i, chunkSize, means, factors)
		out[i] = clamp01(mean + (v-mean)*factor)
	}
	return out
}

// interpolateChunkStats blends the statistics of the two chunks whose
// centers straddle position i.
func interpolateChunkStats(i, chunkSize int, means, factors []float64) (float64, float64) {
	pos := (float64(i) - float64(chunkSize)/2 + 0.5) / float64(chunkSize)
	left := int(math.Floor(pos))
	t := pos - float64(left)
	right := left + 1

	if left < 0 {
		return means[0], factors[0]
	}
	if right >= len(means) {
		return means[len(means)-1], factors[len(factors)-1]
	}
	return means[left]*(1-t) + means[right]*t, factors[left]*(1-t) + factors[right]*t
}

// stretchSliding applies the same technique per sample over a centered
// window, catching short low-variance runs the global pass smooths over.
func stretchSliding(values []float64, window int, maxBoost float64) []float64 {
	out := make([]float64, len(values))
	half := window / 2
	for i, v := range values {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half + 1
		if hi > len(values) {
			hi = len(values)
		}
		mean, dev := meanStd(values[lo:hi])
		factor := boostFactor(dev, maxBoost)
		out[i] = clamp01(mean + (v-mean)*factor)
	}
	return out
}

// boostFactor scales inversely with the region's deviation: flat regions
// get the most enhancement, already-dynamic ones are left alone.
func boostFactor(dev, maxBoost float64) float64 {
	if dev <= 0 {
		return 1
	}
	factor := stretchTargetDev / dev
	if factor < 1 {
		return 1
	}
	if factor > maxBoost {
		return maxBoost
	}
	return factor
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var varSum float64
	for _, v := range values {
		d := v - mean
		varSum += d * d
	}
	return mean, math.Sqrt(varSum / float64(len(values)))
}

// normalize01 rescales to the full 0..1 range. A constant signal maps to
// its clamped value rather than dividing by zero.
func normalize01(values []float64) []float64 {
	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	out := make([]float64, len(values))
	if max-min < 1e-12 {
		for i, v := range values {
			out[i] = clamp01(v)
		}
		return out
	}
	for i, v := range values {
		out[i] = (v - min) / (max - min)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
