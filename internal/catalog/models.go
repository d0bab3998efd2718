package catalog

import (
	"time"

	"media-pipeline/internal/mediatypes"
)

// ProcessingStatus is the life-cycle state of an uploaded file.
type ProcessingStatus string

const (
	// StatusQueued means the file awaits a worker.
	StatusQueued ProcessingStatus = "QUEUED"
	// StatusProcessing means a worker owns the file. At most one row
	// system-wide holds this status under single-worker discipline.
	StatusProcessing ProcessingStatus = "PROCESSING"
	// StatusDone means all variants exist and are consistent.
	StatusDone ProcessingStatus = "DONE"
	// StatusFailed means processing stopped; notes carry the diagnostics.
	StatusFailed ProcessingStatus = "FAILED"
)

// File is one uploaded asset.
type File struct {
	// ID is the opaque content-addressed identifier.
	ID      string              `json:"id"`
	Owner   string              `json:"owner"`
	Kind    mediatypes.MediaKind `json:"kind"`
	Status  ProcessingStatus    `json:"processingStatus"`
	// Progress is 0-100, nil until work starts.
	Progress *int   `json:"processingProgress,omitempty"`
	Notes    string `json:"processingNotes,omitempty"`
	// ExpireBy is an epoch-ms deadline for provisional uploads, nil once
	// the file is attached to a post.
	ExpireBy  *int64    `json:"expireBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FileVariant is one derived rendition of a File, keyed by (file, variant).
type FileVariant struct {
	FileID    string                 `json:"fileId"`
	Variant   mediatypes.VariantKind `json:"variant"`
	MimeType  string                 `json:"mimeType"`
	Extension string                 `json:"extension"`
	// SizeBytes is 0 until the physical file is in place, then patched.
	SizeBytes int64 `json:"sizeBytes"`
	// Metadata carries relative_height for visual media and
	// waveform/waveform_thumbnail arrays for audio.
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// FileSnapshot is what change notifications carry.
type FileSnapshot struct {
	ID       string           `json:"id"`
	Status   ProcessingStatus `json:"processingStatus"`
	Progress *int             `json:"processingProgress,omitempty"`
	Notes    string           `json:"processingNotes,omitempty"`
}

// Snapshot returns the notification view of a file.
func (f *File) Snapshot() FileSnapshot {
	return FileSnapshot{
		ID:       f.ID,
		Status:   f.Status,
		Progress: f.Progress,
		Notes:    f.Notes,
	}
}
