package processor

import (
	"context"
	"fmt"
	"math"
	"sync"

	"media-pipeline/internal/ffmpeg"
	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/modification"
)

// Output sizing. Compressed renditions cap the larger dimension; thumbnails
// fit inside a fixed box.
const (
	maxCompressedDimension = 2048
	maxVideoDimension      = 1920
	thumbnailSize          = 400
	posterThumbnailSize    = 1024
	profileLargeSize       = 256
	profileSmallSize       = 64

	jpegQuality = 85

	waveformSamples          = 400
	waveformThumbnailSamples = 50
)

// StageError wraps any subprocess or filesystem failure with the pipeline
// stage it happened in. The stage label is what lands in processingNotes
// and is the primary operator-facing diagnostic.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// stage wraps err with a stage label, passing nil through.
func stage(name string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: name, Err: err}
}

// Created holds the scratch-directory paths of everything a pipeline
// produced. Empty fields mean the pipeline does not produce that artifact.
type Created struct {
	Original        string
	Compressed      string
	CompressedGif   string
	Thumbnail       string
	PosterThumbnail string
	Profile256      string
	Profile64       string
}

// Result is the self-describing bundle every pipeline returns: temp file
// paths plus the derived metadata the orchestrator persists.
type Result struct {
	// RelativeHeight is height/width of the compressed rendition as a
	// percentage, rounded to 4 decimal places. Zero for audio.
	RelativeHeight    float64
	Created           Created
	Waveform          []float64
	WaveformThumbnail []float64
}

// Request describes one pipeline run against a scratch directory.
type Request struct {
	FileID     string
	Kind       mediatypes.MediaKind
	SourcePath string
	ScratchDir string
	Actions    []modification.Action
	// OnProgress receives 0-100. May be nil.
	OnProgress func(percent float64)
}

// Processor runs the per-kind media pipelines.
type Processor struct {
	runner   *ffmpeg.Runner
	loudness ffmpeg.LoudnessOptions
}

// New creates a Processor around a subprocess runner.
func New(runner *ffmpeg.Runner, loudness ffmpeg.LoudnessOptions) *Processor {
	return &Processor{runner: runner, loudness: loudness}
}

// Process dispatches to the pipeline for the request's media kind. Dispatch
// happens exactly once here; the pipelines themselves are free of kind
// checks.
func (p *Processor) Process(ctx context.Context, req Request) (*Result, error) {
	switch req.Kind {
	case mediatypes.KindImage:
		return p.processImage(ctx, req)
	case mediatypes.KindProfilePicture:
		return p.processProfilePicture(ctx, req)
	case mediatypes.KindVideo, mediatypes.KindGif:
		return p.processVideo(ctx, req)
	case mediatypes.KindAudio:
		return p.processAudio(ctx, req)
	default:
		return nil, fmt.Errorf("%w: %s", mediatypes.ErrUnsupportedMediaType, req.Kind)
	}
}

// report invokes the request callback if one is set.
func (req *Request) report(percent float64) {
	if req.OnProgress != nil {
		req.OnProgress(percent)
	}
}

// relativeHeight computes height/width as a percentage rounded to 4 decimal
// places.
func relativeHeight(width, height int) float64 {
	if width <= 0 {
		return 0
	}
	return math.Round(float64(height)/float64(width)*100*10000) / 10000
}

// progressSlots averages independent per-render progress values into one
// overall percentage for parallel renders.
type progressSlots struct {
	mu    sync.Mutex
	slots []float64
	emit  func(percent float64)
}

func newProgressSlots(n int, emit func(float64)) *progressSlots {
	return &progressSlots{slots: make([]float64, n), emit: emit}
}

// slot returns the callback feeding slot i.
func (p *progressSlots) slot(i int) func(float64) {
	return func(percent float64) {
		p.mu.Lock()
		p.slots[i] = percent
		var sum float64
		for _, s := range p.slots {
			sum += s
		}
		avg := sum / float64(len(p.slots))
		p.mu.Unlock()

		if p.emit != nil {
			p.emit(avg)
		}
	}
}
