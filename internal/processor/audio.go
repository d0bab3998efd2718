package processor

import (
	"context"
	"errors"
	"path/filepath"

	"media-pipeline/internal/ffmpeg"
	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/modification"
)

var errNoAudioStream = errors.New("no audio stream in source")

// processAudio runs the audio pipeline: optional trim materialization,
// waveform extraction at two resolutions, and a two-pass loudness-normalized
// MP3 rendition.
func (p *Processor) processAudio(ctx context.Context, req Request) (*Result, error) {
	probe, err := p.runner.Probe(ctx, req.SourcePath)
	if err != nil {
		return nil, stage("source probe", err)
	}
	if !probe.HasAudio() {
		return nil, stage("source probe", errNoAudioStream)
	}

	trim := modification.ExtractTrim(req.Actions)
	if err := modification.ValidateTrim(trim, probe.Duration); err != nil {
		return nil, err
	}
	req.report(5)

	// A trim is rendered to a lossless temp copy up front so the waveform,
	// loudness analysis, and normalization all see the same samples. Seeking
	// independently in each stage risks drift between artifacts.
	workPath := req.SourcePath
	duration := probe.Duration
	if trim.NeedsTrim {
		trimmedPath := filepath.Join(req.ScratchDir, "trimmed.wav")
		err := p.runner.Transcode(ctx, ffmpeg.TranscodeSpec{
			InputOptions:  modification.TrimInputOptions(trim),
			Input:         req.SourcePath,
			OutputOptions: []string{"-c:a", "pcm_s16le"},
			Output:        trimmedPath,
			Duration:      trim.Duration,
			OnProgress: func(percent float64) {
				req.report(5 + percent*0.15)
			},
		})
		if err != nil {
			return nil, stage("trim rendering", err)
		}
		workPath = trimmedPath
		duration = trim.Duration
	}
	req.report(20)

	waveform, err := p.runner.GenerateWaveform(ctx, workPath, ffmpeg.WaveformOptions{
		Samples:  waveformSamples,
		Channel:  ffmpeg.ChannelMixed,
		Duration: duration,
	})
	if err != nil {
		return nil, stage("waveform generation", err)
	}
	req.report(45)

	waveformThumb, err := p.runner.GenerateWaveform(ctx, workPath, ffmpeg.WaveformOptions{
		Samples:  waveformThumbnailSamples,
		Channel:  ffmpeg.ChannelMixed,
		Duration: duration,
	})
	if err != nil {
		return nil, stage("waveform generation", err)
	}
	req.report(60)

	measured, err := p.runner.AnalyzeLoudness(ctx, workPath, p.loudness)
	if err != nil {
		return nil, stage("loudness analysis", err)
	}
	req.report(70)

	compressedPath := filepath.Join(req.ScratchDir, variantFilename(mediatypes.VariantCompressed, "mp3"))
	outputOptions := []string{"-c:a", "libmp3lame", "-b:a", "192k"}
	if err := p.runner.NormalizeAudio(ctx, workPath, compressedPath, measured, p.loudness, outputOptions); err != nil {
		return nil, stage("audio normalization", err)
	}
	req.report(100)

	return &Result{
		Created: Created{
			Original:   req.SourcePath,
			Compressed: compressedPath,
		},
		Waveform:          waveform,
		WaveformThumbnail: waveformThumb,
	}, nil
}
