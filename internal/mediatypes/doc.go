// Package mediatypes provides shared type definitions for media handling
// across the pipeline.
//
// This package exists as a dependency-free foundation that can be imported by
// other packages without creating import cycles. It contains primitive types,
// constants, and pure utility functions with no dependencies beyond the
// standard library.
//
// # Media Kinds
//
// MediaKind is a closed enum selecting the processing pipeline once at entry:
//
//	mediatypes.KindVideo          // rendered to MP4
//	mediatypes.KindImage          // compressed progressive JPEG
//	mediatypes.KindGif            // rendered to MP4 + palette-optimized GIF
//	mediatypes.KindAudio          // loudness-normalized MP3 + waveforms
//	mediatypes.KindProfilePicture // fixed-size avatar renditions
//
// # Variant Kinds
//
// VariantKind names one derived rendition of a file (ORIGINAL, THUMBNAIL,
// THUMBNAIL_POSTER, COMPRESSED, COMPRESSED_GIF, PROFILE_256, PROFILE_64).
// ORIGINAL is retained for lossless re-derivation; every other variant is
// disposable and regenerable from it.
//
// # Classification
//
// Use KindForMime to classify an upload:
//
//	kind, err := mediatypes.KindForMime(header.Get("Content-Type"))
//	if errors.Is(err, mediatypes.ErrUnsupportedMediaType) {
//	    // reject the upload
//	}
package mediatypes
