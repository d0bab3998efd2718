package reaper

import (
	"context"
	"time"

	"media-pipeline/internal/catalog"
	"media-pipeline/internal/logging"
	"media-pipeline/internal/metrics"
	"media-pipeline/internal/storage"
)

// DefaultStaleAge is how long a file may sit in PROCESSING before the
// sweeper declares its worker dead. Comfortably above the longest expected
// transcode.
const DefaultStaleAge = 30 * time.Minute

// DefaultInterval is the sweep cadence.
const DefaultInterval = 5 * time.Minute

// Config tunes the background sweeps. Zero values take the defaults.
type Config struct {
	Interval time.Duration
	StaleAge time.Duration
}

// Reaper periodically deletes expired provisional files and fails stale
// PROCESSING rows left behind by dead workers.
type Reaper struct {
	catalog    *catalog.Catalog
	contentDir string
	cfg        Config
}

// New creates a Reaper over the given catalog and content root.
func New(cat *catalog.Catalog, contentDir string, cfg Config) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.StaleAge <= 0 {
		cfg.StaleAge = DefaultStaleAge
	}
	return &Reaper{catalog: cat, contentDir: contentDir, cfg: cfg}
}

// Start launches the sweep loop. It returns immediately; the loop exits
// when ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()

		logging.Info("reaper started (interval %s, stale age %s)", r.cfg.Interval, r.cfg.StaleAge)
		for {
			select {
			case <-ctx.Done():
				logging.Info("reaper stopped")
				return
			case <-ticker.C:
				r.Sweep(ctx)
			}
		}
	}()
}

// Sweep runs one round of both sweeps. Exposed for operator tooling and
// tests; the loop calls it on every tick.
func (r *Reaper) Sweep(ctx context.Context) {
	r.reapExpired(ctx)
	r.sweepStale(ctx)
}

// reapExpired deletes provisional files whose expireBy deadline has passed.
// Catalog rows and physical artifacts go together; a file is never left
// half-deleted with rows pointing at missing bytes or orphaned bytes on
// disk.
func (r *Reaper) reapExpired(ctx context.Context) {
	ids, err := r.catalog.ExpiredFiles(ctx, time.Now())
	if err != nil {
		logging.Error("expired file query failed: %v", err)
		return
	}

	for _, id := range ids {
		if err := r.catalog.DeleteFile(ctx, id); err != nil {
			logging.Error("failed to delete expired file %s: %v", id, err)
			continue
		}
		if err := storage.RemoveFileTree(r.contentDir, id); err != nil {
			logging.Error("failed to remove artifacts for expired file %s: %v", id, err)
			continue
		}
		metrics.QueueExpiredReaped.Inc()
		logging.Info("reaped expired file %s", id)
	}
}

// sweepStale fails PROCESSING rows older than the stale age.
func (r *Reaper) sweepStale(ctx context.Context) {
	swept, err := r.catalog.SweepStaleProcessing(ctx, r.cfg.StaleAge)
	if err != nil {
		logging.Error("stale processing sweep failed: %v", err)
		return
	}
	if swept > 0 {
		metrics.QueueStaleSwept.Add(float64(swept))
		logging.Warn("swept %d stale PROCESSING file(s) to FAILED", swept)
	}
}
