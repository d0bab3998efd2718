package filtergraph

import (
	"fmt"
	"strings"

	"media-pipeline/internal/modification"
)

// Fragment categories. Build emits fragments in this order regardless of the
// order Add* calls were made, because ffmpeg accepts exactly one -vf/-filter
// graph per invocation and spatial transforms must run crop → scale →
// codec-specific optimization for correct geometry.
const (
	categoryCrop = iota
	categoryScale
	categoryOptimization
	categoryCustom
	categoryCount
)

// Builder composes an ordered, append-only chain of filter-graph fragments.
// The zero value is ready to use.
type Builder struct {
	buckets [categoryCount][]string
}

// AddCrop appends a crop fragment converting edge insets into ffmpeg's
// width:height:x:y crop form.
func (b *Builder) AddCrop(crop modification.Crop, srcWidth, srcHeight int) *Builder {
	w := srcWidth - crop.Left - crop.Right
	h := srcHeight - crop.Top - crop.Bottom
	b.buckets[categoryCrop] = append(b.buckets[categoryCrop],
		fmt.Sprintf("crop=%d:%d:%d:%d", w, h, crop.Left, crop.Top))
	return b
}

// AddScale appends a bounded scale fragment. Either dimension may be -2 to
// preserve aspect ratio on even pixel boundaries.
func (b *Builder) AddScale(width, height int) *Builder {
	b.buckets[categoryScale] = append(b.buckets[categoryScale],
		fmt.Sprintf("scale=%d:%d", width, height))
	return b
}

// AddScaleMax appends a scale fragment that only ever downsizes, capping the
// larger dimension at max while preserving aspect. Output dimensions are
// forced even; libx264 with yuv420p rejects odd widths and heights, and a
// crop can produce either.
func (b *Builder) AddScaleMax(max int) *Builder {
	b.buckets[categoryScale] = append(b.buckets[categoryScale],
		fmt.Sprintf("scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease:force_divisible_by=2", max, max))
	return b
}

// AddGifOptimization appends the split/palettegen/paletteuse chain that keeps
// animated GIF output from dithering into the default 256-color web palette.
func (b *Builder) AddGifOptimization() *Builder {
	b.buckets[categoryOptimization] = append(b.buckets[categoryOptimization],
		"split[s0][s1];[s0]palettegen[p];[s1][p]paletteuse")
	return b
}

// AddCustom appends a caller-supplied fragment after all categorized ones.
func (b *Builder) AddCustom(fragment string) *Builder {
	b.buckets[categoryCustom] = append(b.buckets[categoryCustom], fragment)
	return b
}

// Empty reports whether no fragments have been added.
func (b *Builder) Empty() bool {
	for _, bucket := range b.buckets {
		if len(bucket) > 0 {
			return false
		}
	}
	return true
}

// Fragments returns the ordered fragment list.
func (b *Builder) Fragments() []string {
	var out []string
	for _, bucket := range b.buckets {
		out = append(out, bucket...)
	}
	return out
}

// Build joins the ordered fragments into a single filter-graph expression.
// Returns the empty string when nothing was added.
func (b *Builder) Build() string {
	return strings.Join(b.Fragments(), ",")
}
