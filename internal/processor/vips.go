package processor

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"

	"media-pipeline/internal/logging"
)

// vipsMu guards both flags; vipsReady is the only read path so pipeline
// goroutines never race a concurrent ShutdownVips.
var (
	vipsMu        sync.Mutex
	vipsStarted   bool
	vipsAvailable bool
)

// InitVips starts libvips once, with conservative memory settings. Image
// pipelines fall back to pure-Go decoding when it is unavailable, so
// callers may ignore the outcome.
func InitVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	if vipsStarted {
		return
	}
	vipsStarted = true

	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			logging.Error("[%s] %s", domain, msg)
		case vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}, vips.LogLevelWarning)

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsAvailable = true
	logging.Info("libvips initialized (version: %s)", vips.Version)
}

// ShutdownVips releases libvips resources.
func ShutdownVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	if vipsAvailable {
		vips.Shutdown()
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

func vipsReady() bool {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	return vipsAvailable
}

// loadSourceImage decodes a source image with auto-orientation. Oversized
// sources go through libvips, which shrinks during decode and stays within
// memory bounds where a full Go decode would not. A maxDimension of zero
// decodes at full source resolution; crops are expressed in source pixels,
// so crop pipelines need the unshrunken image.
func loadSourceImage(path string, maxDimension int) (image.Image, error) {
	if vipsReady() {
		if img, err := loadWithVips(path, maxDimension); err == nil {
			return img, nil
		} else {
			logging.Debug("vips load failed for %s, falling back to imaging: %v", path, err)
		}
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	if maxDimension <= 0 {
		return img, nil
	}
	return boundDimensions(img, maxDimension), nil
}

func loadWithVips(path string, maxDimension int) (image.Image, error) {
	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, err
	}
	defer ref.Close()

	if maxDimension > 0 && (ref.Width() > maxDimension || ref.Height() > maxDimension) {
		if err := ref.Thumbnail(maxDimension, maxDimension, vips.InterestingNone); err != nil {
			return nil, err
		}
	}

	// Round-trip through a high-quality JPEG to get an image.Image; the
	// lossy step is negligible next to the final encode quality.
	data, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        95,
		OptimizeCoding: true,
	})
	if err != nil {
		return nil, err
	}
	return imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
}

// boundDimensions downsizes an image so neither dimension exceeds max.
// Images already within bounds pass through untouched.
func boundDimensions(img image.Image, max int) image.Image {
	b := img.Bounds()
	if b.Dx() <= max && b.Dy() <= max {
		return img
	}
	return imaging.Fit(img, max, max, imaging.Lanczos)
}

// saveProgressiveJPEG writes img as a progressive JPEG. libvips does the
// interlaced encode when available; the imaging fallback writes a baseline
// JPEG, which downstream consumers accept identically.
func saveProgressiveJPEG(img image.Image, path string, quality int) error {
	if vipsReady() {
		if err := saveJPEGWithVips(img, path, quality); err == nil {
			return nil
		} else {
			logging.Debug("vips JPEG export failed for %s, falling back to imaging: %v", path, err)
		}
	}
	return imaging.Save(img, path, imaging.JPEGQuality(quality))
}

func saveJPEGWithVips(img image.Image, path string, quality int) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}

	ref, err := vips.NewImageFromBuffer(buf.Bytes())
	if err != nil {
		return err
	}
	defer ref.Close()

	params := vips.NewJpegExportParams()
	params.Quality = quality
	params.Interlace = true
	params.OptimizeCoding = true

	data, _, err := ref.ExportJpeg(params)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
