package queue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"media-pipeline/internal/catalog"
	"media-pipeline/internal/logging"
	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/metrics"
	"media-pipeline/internal/processor"
	"media-pipeline/internal/storage"
)

// Config holds the directory layout and retry policy for the orchestrator.
type Config struct {
	// ContentDir is the permanent content-addressed store root.
	ContentDir string
	// IntakeDir holds raw uploads keyed by file id, written by the upload
	// layer before CheckQueue fires.
	IntakeDir string
	// ScratchDir hosts per-run working directories.
	ScratchDir string
	Retry      storage.RetryConfig
}

// Queue is the single-slot processing orchestrator. At most one file is in
// PROCESSING at any instant; concurrent CheckQueue calls collapse into one
// pending wakeup.
type Queue struct {
	catalog *catalog.Catalog
	proc    *processor.Processor
	cfg     Config

	wake chan struct{}

	mu        sync.Mutex
	notifiers []Notifier
}

// New creates a Queue. Call Start before CheckQueue.
func New(cat *catalog.Catalog, proc *processor.Processor, cfg Config) *Queue {
	return &Queue{
		catalog: cat,
		proc:    proc,
		cfg:     cfg,
		wake:    make(chan struct{}, 1),
	}
}

// Subscribe registers a change notifier. Safe to call at any time.
func (q *Queue) Subscribe(n Notifier) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notifiers = append(q.notifiers, n)
}

// Start sweeps work abandoned by a previous run, launches the worker
// goroutine, and schedules an initial queue check so rows that were QUEUED
// across a restart get picked up without an external trigger.
func (q *Queue) Start(ctx context.Context) error {
	swept, err := q.catalog.SweepAbandonedProcessing(ctx)
	if err != nil {
		return fmt.Errorf("failed to sweep abandoned work: %w", err)
	}
	if swept > 0 {
		logging.Warn("marked %d abandoned PROCESSING file(s) as FAILED after restart", swept)
	}

	go q.work(ctx)
	q.CheckQueue()
	return nil
}

// CheckQueue signals the worker that queued work may exist. Never blocks;
// a signal arriving while the worker is busy is remembered, and duplicate
// signals coalesce.
func (q *Queue) CheckQueue() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// work is the single worker loop. Each wakeup drains the queue completely;
// processing one file then re-checking gives the forward progress guarantee
// even when individual files fail.
func (q *Queue) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		}

		for {
			if ctx.Err() != nil {
				return
			}
			claimed, err := q.processNext(ctx)
			if err != nil {
				logging.Error("queue claim failed: %v", err)
				break
			}
			if !claimed {
				break
			}
		}
		q.updateDepth(ctx)
	}
}

// processNext claims and fully processes one file. Returns false when the
// queue is empty.
func (q *Queue) processNext(ctx context.Context) (bool, error) {
	file, err := q.catalog.ClaimOldestQueued(ctx)
	if err != nil {
		return false, err
	}
	if file == nil {
		return false, nil
	}

	metrics.QueueProcessing.Set(1)
	defer metrics.QueueProcessing.Set(0)

	q.notify(file.ID, file.Snapshot())
	logging.Info("processing file %s (kind %s)", file.ID, file.Kind)

	start := time.Now()
	err = q.runPipeline(ctx, file)
	elapsed := time.Since(start)

	status := "done"
	if err != nil {
		status = "failed"
		logging.Error("file %s failed after %s: %v", file.ID, elapsed.Round(time.Millisecond), err)
		q.markFailed(ctx, file.ID, err)
	} else {
		logging.Info("file %s done in %s", file.ID, elapsed.Round(time.Millisecond))
	}

	metrics.QueueFilesProcessed.WithLabelValues(string(file.Kind), status).Inc()
	metrics.QueuePipelineDuration.WithLabelValues(string(file.Kind)).Observe(elapsed.Seconds())

	q.cleanupIntake(file.ID)
	q.notifyCurrent(ctx, file.ID)
	return true, nil
}

// runPipeline drives the media processor for one claimed file and persists
// its output. The scratch directory is removed on every path out.
func (q *Queue) runPipeline(ctx context.Context, file *catalog.File) error {
	source := storage.IntakePath(q.cfg.IntakeDir, file.ID)
	if _, err := os.Stat(source); err != nil {
		return &processor.StageError{Stage: "intake", Err: err}
	}

	manifest, err := loadManifest(source)
	if err != nil {
		return &processor.StageError{Stage: "intake", Err: err}
	}

	scratch := filepath.Join(q.cfg.ScratchDir, uuid.NewString())
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return &processor.StageError{Stage: "scratch setup", Err: err}
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logging.Warn("failed to remove scratch dir %s: %v", scratch, err)
		}
	}()

	result, err := q.proc.Process(ctx, processor.Request{
		FileID:     file.ID,
		Kind:       file.Kind,
		SourcePath: source,
		ScratchDir: scratch,
		Actions:    manifest.Actions,
		OnProgress: q.progressReporter(ctx, file.ID),
	})
	if err != nil {
		return err
	}

	return q.persistResult(ctx, file, manifest, result)
}

// progressReporter persists and fans out progress, throttled to whole
// percent changes so a chatty render does not hammer the catalog.
func (q *Queue) progressReporter(ctx context.Context, fileID string) func(float64) {
	last := -1
	return func(percent float64) {
		p := int(percent)
		if p == last {
			return
		}
		last = p

		if err := q.catalog.SetProgress(ctx, fileID, p); err != nil {
			logging.Debug("progress update for %s failed: %v", fileID, err)
			return
		}
		q.notifyCurrent(ctx, fileID)
	}
}

// persistResult relocates every produced artifact to its content-addressed
// path, records variant rows with byte sizes, and marks the file DONE.
func (q *Queue) persistResult(ctx context.Context, file *catalog.File, manifest IntakeManifest, result *processor.Result) error {
	for _, a := range artifacts(file, manifest, result) {
		if a.path == "" {
			continue
		}

		dst := storage.VariantPath(q.cfg.ContentDir, file.ID, a.variant, a.extension)
		size, err := storage.RelocateWithRetry(a.path, dst, q.cfg.Retry)
		if err != nil {
			return &processor.StageError{Stage: "artifact relocation", Err: err}
		}

		v := catalog.FileVariant{
			FileID:    file.ID,
			Variant:   a.variant,
			MimeType:  a.mimeType,
			Extension: a.extension,
			Metadata:  a.metadata,
		}
		if err := q.catalog.UpsertVariant(ctx, v); err != nil {
			return &processor.StageError{Stage: "variant persistence", Err: err}
		}
		if err := q.catalog.PatchVariantSize(ctx, file.ID, a.variant, size); err != nil {
			return &processor.StageError{Stage: "variant persistence", Err: err}
		}
	}

	if err := q.catalog.MarkDone(ctx, file.ID); err != nil {
		return &processor.StageError{Stage: "variant persistence", Err: err}
	}
	return nil
}

// artifact describes one produced file and its catalog row.
type artifact struct {
	path      string
	variant   mediatypes.VariantKind
	mimeType  string
	extension string
	metadata  map[string]any
}

// artifacts maps a pipeline result onto variant descriptors. The original
// keeps the upload's declared mime type, sniffed from content as a fallback;
// derived renditions have fixed formats per kind.
func artifacts(file *catalog.File, manifest IntakeManifest, result *processor.Result) []artifact {
	originalMime := manifest.MimeType
	if originalMime == "" {
		originalMime = sniffMime(result.Created.Original)
	}
	originalExt := "bin"
	if ext, err := mediatypes.ExtensionForMime(originalMime); err == nil {
		originalExt = strings.TrimPrefix(ext, ".")
	}

	compressedMime, compressedExt := compressedFormat(file.Kind)

	var compressedMeta map[string]any
	switch {
	case file.Kind == mediatypes.KindAudio:
		compressedMeta = map[string]any{
			"waveform":           result.Waveform,
			"waveform_thumbnail": result.WaveformThumbnail,
		}
	case file.Kind.IsVisual():
		compressedMeta = map[string]any{
			"relative_height": result.RelativeHeight,
		}
	}

	jpeg := func(path string, v mediatypes.VariantKind) artifact {
		return artifact{path: path, variant: v, mimeType: "image/jpeg", extension: "jpg"}
	}

	return []artifact{
		{
			path:      result.Created.Original,
			variant:   mediatypes.VariantOriginal,
			mimeType:  originalMime,
			extension: originalExt,
		},
		{
			path:      result.Created.Compressed,
			variant:   mediatypes.VariantCompressed,
			mimeType:  compressedMime,
			extension: compressedExt,
			metadata:  compressedMeta,
		},
		{
			path:      result.Created.CompressedGif,
			variant:   mediatypes.VariantCompressedGif,
			mimeType:  "image/gif",
			extension: "gif",
			metadata:  compressedMeta,
		},
		jpeg(result.Created.Thumbnail, mediatypes.VariantThumbnail),
		jpeg(result.Created.PosterThumbnail, mediatypes.VariantThumbnailPoster),
		jpeg(result.Created.Profile256, mediatypes.VariantProfile256),
		jpeg(result.Created.Profile64, mediatypes.VariantProfile64),
	}
}

// compressedFormat returns the fixed output format of the COMPRESSED
// rendition for a media kind.
func compressedFormat(kind mediatypes.MediaKind) (mime, ext string) {
	switch kind {
	case mediatypes.KindVideo, mediatypes.KindGif:
		return "video/mp4", "mp4"
	case mediatypes.KindAudio:
		return "audio/mpeg", "mp3"
	default:
		return "image/jpeg", "jpg"
	}
}

// markFailed records a failure and removes any variant rows written before
// the failing stage, so FAILED files never carry partial variants.
func (q *Queue) markFailed(ctx context.Context, fileID string, cause error) {
	if err := q.catalog.DeleteVariants(ctx, fileID); err != nil {
		logging.Error("failed to clear variants for failed file %s: %v", fileID, err)
	}
	if err := storage.RemoveFileTree(q.cfg.ContentDir, fileID); err != nil {
		logging.Error("failed to clear content for failed file %s: %v", fileID, err)
	}
	if err := q.catalog.MarkFailed(ctx, fileID, cause.Error()); err != nil {
		logging.Error("failed to mark file %s as FAILED: %v", fileID, err)
	}
}

// cleanupIntake removes the intake artifact and its sidecar. A successful
// run already relocated the source, so a missing file here is the norm.
func (q *Queue) cleanupIntake(fileID string) {
	if err := storage.RemoveIntake(q.cfg.IntakeDir, fileID); err != nil {
		logging.Warn("failed to remove intake artifact for %s: %v", fileID, err)
	}
	sidecar := manifestPath(storage.IntakePath(q.cfg.IntakeDir, fileID))
	if err := os.Remove(sidecar); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove intake sidecar for %s: %v", fileID, err)
	}
}

// notifyCurrent loads the current row and fans out its snapshot.
func (q *Queue) notifyCurrent(ctx context.Context, fileID string) {
	file, err := q.catalog.GetFile(ctx, fileID)
	if err != nil {
		logging.Debug("could not load file %s for notification: %v", fileID, err)
		return
	}
	q.notify(fileID, file.Snapshot())
}

func (q *Queue) updateDepth(ctx context.Context) {
	depth, err := q.catalog.CountQueued(ctx)
	if err != nil {
		logging.Debug("queue depth query failed: %v", err)
		return
	}
	metrics.QueueDepth.Set(float64(depth))
}
