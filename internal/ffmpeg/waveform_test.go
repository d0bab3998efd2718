package ffmpeg

import (
	"math"
	"strings"
	"testing"
)

func TestParsePeakLevels(t *testing.T) {
	input := strings.Join([]string{
		"frame:0    pts:0       pts_time:0",
		"lavfi.astats.Overall.Peak_level=-18.700000",
		"frame:1    pts:1024    pts_time:0.128",
		"lavfi.astats.Overall.Peak_level=-6.020000",
		"lavfi.astats.Overall.Peak_level=-inf",
		"lavfi.astats.Overall.Peak_level=garbage",
	}, "\n")

	peaks := parsePeakLevels(strings.NewReader(input))
	if len(peaks) != 3 {
		t.Fatalf("Expected 3 peaks, got %d: %v", len(peaks), peaks)
	}
	if peaks[0] != -18.7 {
		t.Errorf("Expected -18.7, got %f", peaks[0])
	}
	if peaks[1] != -6.02 {
		t.Errorf("Expected -6.02, got %f", peaks[1])
	}
	if peaks[2] != waveformFloorDB {
		t.Errorf("Expected -inf to read as floor %g, got %f", waveformFloorDB, peaks[2])
	}
}

func TestDbToLinear(t *testing.T) {
	tests := []struct {
		db       float64
		expected float64
	}{
		{0, 1},
		{-60, 0},
		{-30, 0.5},
		{-90, 0},  // below floor clamps
		{6, 1},    // above ceiling clamps
	}

	for _, tt := range tests {
		if got := dbToLinear(tt.db); math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("dbToLinear(%g) = %f, want %f", tt.db, got, tt.expected)
		}
	}
}

func TestReduceRMS(t *testing.T) {
	values := []float64{1, 1, 0, 0, 1, 1, 0, 0}

	out := reduceRMS(values, 4)
	if len(out) != 4 {
		t.Fatalf("Expected 4 values, got %d", len(out))
	}
	// Each window is a homogeneous pair, so RMS equals the value.
	expected := []float64{1, 0, 1, 0}
	for i := range expected {
		if math.Abs(out[i]-expected[i]) > 1e-9 {
			t.Errorf("Value %d: expected %f, got %f", i, expected[i], out[i])
		}
	}
}

func TestReduceRMSPreservesLoudness(t *testing.T) {
	// RMS over a mixed window sits above the plain mean; that is the point
	// of not decimating.
	out := reduceRMS([]float64{1, 0}, 1)
	if len(out) != 1 {
		t.Fatalf("Expected 1 value, got %d", len(out))
	}
	if math.Abs(out[0]-math.Sqrt(0.5)) > 1e-9 {
		t.Errorf("Expected RMS sqrt(0.5), got %f", out[0])
	}
}

func TestReduceRMSShortInput(t *testing.T) {
	// Fewer raw values than target: every output window still has at least
	// one sample and the length contract holds.
	out := reduceRMS([]float64{0.5, 0.8}, 8)
	if len(out) != 8 {
		t.Fatalf("Expected 8 values, got %d", len(out))
	}
}

func TestEnhanceDynamicRange(t *testing.T) {
	// A nearly-flat quiet waveform with some texture.
	values := make([]float64, 128)
	for i := range values {
		values[i] = 0.1 + 0.01*math.Sin(float64(i)/3)
	}

	out := enhanceDynamicRange(values)
	if len(out) != len(values) {
		t.Fatalf("Expected length %d, got %d", len(values), len(out))
	}

	min, max := out[0], out[0]
	for _, v := range out {
		if v < 0 || v > 1 {
			t.Fatalf("Value %f out of [0,1]", v)
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	// Enhancement must spread the flat signal across the full range.
	if max-min < 0.9 {
		t.Errorf("Expected enhanced range near full scale, got [%f, %f]", min, max)
	}
}

func TestEnhanceDynamicRangeDeterministic(t *testing.T) {
	values := make([]float64, 64)
	for i := range values {
		values[i] = float64(i%7) / 10
	}

	a := enhanceDynamicRange(append([]float64(nil), values...))
	b := enhanceDynamicRange(append([]float64(nil), values...))
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Non-deterministic output at %d: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestEnhanceDynamicRangeConstantInput(t *testing.T) {
	values := []float64{0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3}
	out := enhanceDynamicRange(values)
	for _, v := range out {
		if v < 0 || v > 1 {
			t.Errorf("Constant input produced out-of-range value %f", v)
		}
	}
}

func TestNormalize01(t *testing.T) {
	out := normalize01([]float64{0.2, 0.4, 0.6})
	expected := []float64{0, 0.5, 1}
	for i := range expected {
		if math.Abs(out[i]-expected[i]) > 1e-9 {
			t.Errorf("Value %d: expected %f, got %f", i, expected[i], out[i])
		}
	}
}

func TestChannelFilter(t *testing.T) {
	if got := channelFilter(ChannelLeft); got != "pan=mono|c0=c0" {
		t.Errorf("Unexpected left filter: %q", got)
	}
	if got := channelFilter(ChannelRight); got != "pan=mono|c0=c1" {
		t.Errorf("Unexpected right filter: %q", got)
	}
	if got := channelFilter(ChannelMixed); !strings.Contains(got, "0.5*c0+0.5*c1") {
		t.Errorf("Unexpected mixed filter: %q", got)
	}
	// Unset channel defaults to mixed.
	if channelFilter("") != channelFilter(ChannelMixed) {
		t.Error("Expected empty channel to default to mixed")
	}
}

func TestBoostFactor(t *testing.T) {
	if got := boostFactor(0, 4); got != 1 {
		t.Errorf("Zero deviation must not boost, got %f", got)
	}
	if got := boostFactor(0.5, 4); got != 1 {
		t.Errorf("High deviation must not boost, got %f", got)
	}
	if got := boostFactor(0.01, 4); got != 4 {
		t.Errorf("Tiny deviation must cap at maxBoost, got %f", got)
	}
}
