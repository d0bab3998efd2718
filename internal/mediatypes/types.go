package mediatypes

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// MediaKind identifies the processing pipeline an uploaded file goes through.
type MediaKind string

const (
	// KindVideo is a video upload, rendered to MP4.
	KindVideo MediaKind = "VIDEO"
	// KindImage is a still image upload.
	KindImage MediaKind = "IMAGE"
	// KindGif is an animated upload rendered to both MP4 and GIF.
	KindGif MediaKind = "GIF"
	// KindAudio is an audio upload, normalized to MP3.
	KindAudio MediaKind = "AUDIO"
	// KindProfilePicture is an avatar upload with fixed-size renditions.
	KindProfilePicture MediaKind = "PROFILE_PICTURE"
)

// Kinds lists every supported media kind.
var Kinds = []MediaKind{KindVideo, KindImage, KindGif, KindAudio, KindProfilePicture}

// Valid reports whether k is a known media kind.
func (k MediaKind) Valid() bool {
	switch k {
	case KindVideo, KindImage, KindGif, KindAudio, KindProfilePicture:
		return true
	}
	return false
}

// VariantKind identifies one derived rendition of a file.
type VariantKind string

const (
	// VariantOriginal is the untouched source, kept for lossless re-derivation.
	VariantOriginal VariantKind = "ORIGINAL"
	// VariantThumbnail is the standard preview rendition.
	VariantThumbnail VariantKind = "THUMBNAIL"
	// VariantThumbnailPoster is the larger poster frame for video players.
	VariantThumbnailPoster VariantKind = "THUMBNAIL_POSTER"
	// VariantCompressed is the primary playback/display rendition.
	VariantCompressed VariantKind = "COMPRESSED"
	// VariantCompressedGif is the palette-optimized GIF rendition of a GIF upload.
	VariantCompressedGif VariantKind = "COMPRESSED_GIF"
	// VariantProfile256 is the 256px avatar rendition.
	VariantProfile256 VariantKind = "PROFILE_256"
	// VariantProfile64 is the 64px avatar rendition.
	VariantProfile64 VariantKind = "PROFILE_64"
)

// ErrUnsupportedMediaType is returned when an upload's mime type or
// extension is outside the supported set.
var ErrUnsupportedMediaType = errors.New("unsupported media type")

// mime type → media kind for upload classification. GIF uploads are
// distinguished from still images by the caller (an image/gif upload may be
// ingested as either IMAGE or GIF depending on intent), so image/gif maps
// to GIF here and callers wanting a still frame reclassify explicitly.
var mimeKinds = map[string]MediaKind{
	"video/mp4":        KindVideo,
	"video/quicktime":  KindVideo,
	"video/webm":       KindVideo,
	"video/x-matroska": KindVideo,
	"video/x-msvideo":  KindVideo,
	"video/mpeg":       KindVideo,

	"image/jpeg": KindImage,
	"image/png":  KindImage,
	"image/webp": KindImage,
	"image/bmp":  KindImage,
	"image/tiff": KindImage,
	"image/heic": KindImage,
	"image/heif": KindImage,

	"image/gif": KindGif,

	"audio/mpeg":  KindAudio,
	"audio/mp4":   KindAudio,
	"audio/aac":   KindAudio,
	"audio/ogg":   KindAudio,
	"audio/wav":   KindAudio,
	"audio/x-wav": KindAudio,
	"audio/flac":  KindAudio,
}

// extension (with leading dot, lowercase) → mime type for the formats the
// pipeline accepts or produces.
var mimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",

	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",

	".gif": "image/gif",

	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
}

// KindForMime returns the media kind for an upload mime type.
// Returns ErrUnsupportedMediaType for anything outside the supported set.
func KindForMime(mime string) (MediaKind, error) {
	base := mime
	if idx := strings.Index(base, ";"); idx != -1 {
		base = base[:idx]
	}
	base = strings.ToLower(strings.TrimSpace(base))

	kind, ok := mimeKinds[base]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mime)
	}
	return kind, nil
}

// MimeForExtension returns the mime type for a file extension.
// The extension should be lowercase and include the leading dot.
// Returns "application/octet-stream" if the extension is not recognized.
func MimeForExtension(ext string) string {
	if mime, ok := mimeTypes[strings.ToLower(ext)]; ok {
		return mime
	}
	return "application/octet-stream"
}

// ExtensionForMime returns the canonical extension (with leading dot) for a
// mime type produced by the pipeline, or an error for unknown types.
func ExtensionForMime(mime string) (string, error) {
	switch strings.ToLower(mime) {
	case "video/mp4":
		return ".mp4", nil
	case "image/jpeg":
		return ".jpg", nil
	case "image/gif":
		return ".gif", nil
	case "image/png":
		return ".png", nil
	case "audio/mpeg":
		return ".mp3", nil
	}
	if ext := extensionLookup(mime); ext != "" {
		return ext, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mime)
}

// extensionLookup walks mimeTypes in sorted key order so mime types with
// several extensions (image/tiff, video/mpeg) always resolve to the same one.
func extensionLookup(mime string) string {
	mime = strings.ToLower(mime)
	exts := make([]string, 0, len(mimeTypes))
	for ext := range mimeTypes {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		if mimeTypes[ext] == mime {
			return ext
		}
	}
	return ""
}

// IsVisual reports whether a kind produces width/height-bearing renditions.
func (k MediaKind) IsVisual() bool {
	return k != KindAudio
}
