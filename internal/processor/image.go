package processor

import (
	"context"
	"image"
	"path/filepath"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // webp decode support for the imaging fallback

	"media-pipeline/internal/logging"
	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/modification"
)

// processImage runs the still-image pipeline: decode, optional crop,
// bounded resize, progressive JPEG compression, and a thumbnail cut from
// the compressed output so both artifacts share identical framing.
func (p *Processor) processImage(ctx context.Context, req Request) (*Result, error) {
	img, err := loadCroppedSource(req)
	if err != nil {
		return nil, err
	}
	req.report(30)

	img = boundDimensions(img, maxCompressedDimension)

	compressedPath := filepath.Join(req.ScratchDir, variantFilename(mediatypes.VariantCompressed, "jpg"))
	if err := saveProgressiveJPEG(img, compressedPath, jpegQuality); err != nil {
		return nil, stage("JPEG compression", err)
	}
	req.report(70)

	// Thumbnail from the saved file, not the in-memory image, so the
	// thumbnail reflects exactly what the encoder produced.
	compressed, err := imaging.Open(compressedPath)
	if err != nil {
		return nil, stage("thumbnail generation", err)
	}
	thumbPath := filepath.Join(req.ScratchDir, variantFilename(mediatypes.VariantThumbnail, "jpg"))
	thumb := imaging.Fit(compressed, thumbnailSize, thumbnailSize, imaging.Lanczos)
	if err := imaging.Save(thumb, thumbPath, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, stage("thumbnail generation", err)
	}
	req.report(100)

	b := img.Bounds()
	logging.Debug("image pipeline for %s produced %dx%d compressed output", req.FileID, b.Dx(), b.Dy())

	return &Result{
		RelativeHeight: relativeHeight(b.Dx(), b.Dy()),
		Created: Created{
			Original:   req.SourcePath,
			Compressed: compressedPath,
			Thumbnail:  thumbPath,
		},
	}, nil
}

// processProfilePicture produces the two square avatar renditions. A
// user-supplied crop is honored; otherwise the largest centered square is
// taken from the source.
func (p *Processor) processProfilePicture(ctx context.Context, req Request) (*Result, error) {
	img, err := loadCroppedSource(req)
	if err != nil {
		return nil, err
	}
	if _, ok := modification.ExtractCrop(req.Actions); !ok {
		img = centerSquare(img)
	}
	img = boundDimensions(img, maxCompressedDimension)
	req.report(40)

	largePath := filepath.Join(req.ScratchDir, variantFilename(mediatypes.VariantProfile256, "jpg"))
	large := imaging.Fill(img, profileLargeSize, profileLargeSize, imaging.Center, imaging.Lanczos)
	if err := imaging.Save(large, largePath, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, stage("profile picture generation", err)
	}
	req.report(70)

	smallPath := filepath.Join(req.ScratchDir, variantFilename(mediatypes.VariantProfile64, "jpg"))
	small := imaging.Fill(img, profileSmallSize, profileSmallSize, imaging.Center, imaging.Lanczos)
	if err := imaging.Save(small, smallPath, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, stage("profile picture generation", err)
	}
	req.report(100)

	return &Result{
		RelativeHeight: 100,
		Created: Created{
			Original:   req.SourcePath,
			Profile256: largePath,
			Profile64:  smallPath,
		},
	}, nil
}

// loadCroppedSource decodes the source for req and applies any requested
// crop. Crop insets are expressed in source pixels, so a crop forces a
// full-resolution decode before cropping; the result is bounded by the
// caller afterwards. Without a crop the decode shrinks up front.
func loadCroppedSource(req Request) (image.Image, error) {
	crop, hasCrop := modification.ExtractCrop(req.Actions)
	maxDim := maxCompressedDimension
	if hasCrop {
		maxDim = 0
	}

	img, err := loadSourceImage(req.SourcePath, maxDim)
	if err != nil {
		return nil, stage("image decode", err)
	}
	req.report(10)

	if hasCrop {
		b := img.Bounds()
		if err := modification.ValidateCrop(crop, b.Dx(), b.Dy()); err != nil {
			return nil, err
		}
		img = cropInsets(img, crop)
	}
	return img, nil
}

// cropInsets applies edge insets to an image. Callers validate first.
func cropInsets(img image.Image, crop modification.Crop) image.Image {
	b := img.Bounds()
	rect := image.Rect(
		b.Min.X+crop.Left,
		b.Min.Y+crop.Top,
		b.Max.X-crop.Right,
		b.Max.Y-crop.Bottom,
	)
	return imaging.Crop(img, rect)
}

// centerSquare extracts the largest centered square region.
func centerSquare(img image.Image) image.Image {
	b := img.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	return imaging.CropCenter(img, side, side)
}

// variantFilename names a scratch artifact after its variant kind.
func variantFilename(v mediatypes.VariantKind, ext string) string {
	return string(v) + "." + ext
}
