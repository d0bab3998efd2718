package processor

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"

	"media-pipeline/internal/ffmpeg"
	"media-pipeline/internal/filtergraph"
	"media-pipeline/internal/logging"
	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/modification"
)

// gifMaxDimension caps the animated GIF rendition. GIF frames are stored
// uncompressed per pixel, so the cap is much tighter than for MP4.
const gifMaxDimension = 480

// processVideo runs the video and animated-GIF pipeline. Both kinds share
// the MP4 render; GIF uploads additionally get a palette-optimized GIF
// rendition, produced in parallel with the MP4.
func (p *Processor) processVideo(ctx context.Context, req Request) (*Result, error) {
	probe, err := p.runner.Probe(ctx, req.SourcePath)
	if err != nil {
		return nil, stage("source probe", err)
	}
	if probe.VideoStream() == nil {
		return nil, stage("source probe", fmt.Errorf("no video stream in source"))
	}

	// Dimensions come from a decoded frame rather than the stream header.
	// Rotated phone footage reports pre-rotation dimensions in the header;
	// a screenshot reflects what the viewer will actually see.
	width, height, err := p.discoverDimensions(ctx, req)
	if err != nil {
		return nil, err
	}
	req.report(5)

	crop, hasCrop := modification.ExtractCrop(req.Actions)
	if hasCrop {
		if err := modification.ValidateCrop(crop, width, height); err != nil {
			return nil, err
		}
	}
	trim := modification.ExtractTrim(req.Actions)
	if err := modification.ValidateTrim(trim, probe.Duration); err != nil {
		return nil, err
	}

	duration := probe.Duration
	if trim.NeedsTrim {
		duration = trim.Duration
	}

	var audioFilter string
	if probe.HasAudio() {
		measured, err := p.runner.AnalyzeLoudness(ctx, req.SourcePath, p.loudness)
		if err != nil {
			return nil, stage("loudness analysis", err)
		}
		audioFilter = ffmpeg.LoudnormFilter(measured, p.loudness)
	}

	mp4Path := filepath.Join(req.ScratchDir, variantFilename(mediatypes.VariantCompressed, "mp4"))
	var gifPath string
	if req.Kind == mediatypes.KindGif {
		gifPath = filepath.Join(req.ScratchDir, variantFilename(mediatypes.VariantCompressedGif, "gif"))
	}

	if err := p.runRenders(ctx, req, probe, crop, hasCrop, trim, audioFilter, duration, width, height, mp4Path, gifPath); err != nil {
		return nil, err
	}

	posterPath := filepath.Join(req.ScratchDir, "poster.jpg")
	if err := p.runner.Screenshot(ctx, mp4Path, 0, posterPath); err != nil {
		return nil, stage("poster frame extraction", err)
	}
	req.report(88)

	thumbPath, posterThumbPath, err := videoThumbnails(req.ScratchDir, posterPath)
	if err != nil {
		return nil, stage("thumbnail generation", err)
	}
	req.report(95)

	// Output dimensions are re-probed from the rendered file rather than
	// derived arithmetically from the crop, so scaling and even-pixel
	// rounding are accounted for.
	outProbe, err := p.runner.Probe(ctx, mp4Path)
	if err != nil {
		return nil, stage("output probe", err)
	}
	vs := outProbe.VideoStream()
	if vs == nil {
		return nil, stage("output probe", fmt.Errorf("no video stream in rendered output"))
	}
	req.report(100)

	logging.Debug("video pipeline for %s produced %dx%d compressed output", req.FileID, vs.Width, vs.Height)

	return &Result{
		RelativeHeight: relativeHeight(vs.Width, vs.Height),
		Created: Created{
			Original:        req.SourcePath,
			Compressed:      mp4Path,
			CompressedGif:   gifPath,
			Thumbnail:       thumbPath,
			PosterThumbnail: posterThumbPath,
		},
	}, nil
}

// discoverDimensions extracts a frame and probes it for display dimensions.
func (p *Processor) discoverDimensions(ctx context.Context, req Request) (int, int, error) {
	framePath := filepath.Join(req.ScratchDir, "discovery.jpg")
	if err := p.runner.Screenshot(ctx, req.SourcePath, 0, framePath); err != nil {
		return 0, 0, stage("dimension discovery", err)
	}
	frameProbe, err := p.runner.Probe(ctx, framePath)
	if err != nil {
		return 0, 0, stage("dimension discovery", err)
	}
	vs := frameProbe.VideoStream()
	if vs == nil || vs.Width <= 0 || vs.Height <= 0 {
		return 0, 0, stage("dimension discovery", fmt.Errorf("could not measure frame dimensions"))
	}
	return vs.Width, vs.Height, nil
}

// runRenders executes the MP4 render and, when gifPath is set, the GIF
// render concurrently. Progress from the active renders is averaged into
// the 10-85 band of the overall pipeline.
func (p *Processor) runRenders(ctx context.Context, req Request, probe *ffmpeg.ProbeResult, crop modification.Crop, hasCrop bool, trim modification.Trim, audioFilter string, duration float64, width, height int, mp4Path, gifPath string) error {
	slots := 1
	if gifPath != "" {
		slots = 2
	}
	progress := newProgressSlots(slots, func(avg float64) {
		req.report(10 + avg*0.75)
	})

	var mp4Graph filtergraph.Builder
	if hasCrop {
		mp4Graph.AddCrop(crop, width, height)
	}
	mp4Graph.AddScaleMax(maxVideoDimension)

	mp4Output := []string{
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
	}
	if probe.HasAudio() {
		mp4Output = append(mp4Output, "-c:a", "aac", "-b:a", "160k")
	} else {
		mp4Output = append(mp4Output, "-an")
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := p.runner.Transcode(ctx, ffmpeg.TranscodeSpec{
			InputOptions:  modification.TrimInputOptions(trim),
			Input:         req.SourcePath,
			FilterGraph:   mp4Graph.Build(),
			AudioFilter:   audioFilter,
			OutputOptions: mp4Output,
			Output:        mp4Path,
			Duration:      duration,
			OnProgress:    progress.slot(0),
		})
		errs[0] = stage("MP4 video compression", err)
	}()

	if gifPath != "" {
		var gifGraph filtergraph.Builder
		if hasCrop {
			gifGraph.AddCrop(crop, width, height)
		}
		gifGraph.AddScaleMax(gifMaxDimension)
		gifGraph.AddGifOptimization()

		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.runner.Transcode(ctx, ffmpeg.TranscodeSpec{
				InputOptions:  modification.TrimInputOptions(trim),
				Input:         req.SourcePath,
				FilterGraph:   gifGraph.Build(),
				OutputOptions: []string{"-an"},
				Output:        gifPath,
				Duration:      duration,
				OnProgress:    progress.slot(1),
			})
			errs[1] = stage("GIF rendering", err)
		}()
	}

	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// videoThumbnails cuts the two thumbnail sizes from the poster frame.
func videoThumbnails(scratchDir, posterPath string) (string, string, error) {
	poster, err := imaging.Open(posterPath)
	if err != nil {
		return "", "", err
	}

	thumbPath := filepath.Join(scratchDir, variantFilename(mediatypes.VariantThumbnail, "jpg"))
	thumb := imaging.Fit(poster, thumbnailSize, thumbnailSize, imaging.Lanczos)
	if err := imaging.Save(thumb, thumbPath, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", "", err
	}

	posterThumbPath := filepath.Join(scratchDir, variantFilename(mediatypes.VariantThumbnailPoster, "jpg"))
	posterThumb := imaging.Fit(poster, posterThumbnailSize, posterThumbnailSize, imaging.Lanczos)
	if err := imaging.Save(posterThumb, posterThumbPath, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", "", err
	}

	return thumbPath, posterThumbPath, nil
}
