package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"media-pipeline/internal/mediatypes"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()

	c, err := New(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Failed to create test catalog: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("Failed to close catalog: %v", err)
		}
	})
	return c
}

func TestCreateAndGetFile(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	f, err := c.CreateFile(ctx, "abc123", "user-1", mediatypes.KindVideo, nil)
	if err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}

	if f.Status != StatusQueued {
		t.Errorf("Expected status QUEUED, got %s", f.Status)
	}
	if f.Progress != nil {
		t.Errorf("Expected nil progress before work starts, got %d", *f.Progress)
	}
	if f.Kind != mediatypes.KindVideo {
		t.Errorf("Expected kind VIDEO, got %s", f.Kind)
	}
	if f.ExpireBy != nil {
		t.Errorf("Expected no expiry, got %d", *f.ExpireBy)
	}
}

func TestCreateFileInvalidKind(t *testing.T) {
	c := testCatalog(t)

	_, err := c.CreateFile(context.Background(), "x", "u", mediatypes.MediaKind("DOCUMENT"), nil)
	if !errors.Is(err, mediatypes.ErrUnsupportedMediaType) {
		t.Errorf("Expected ErrUnsupportedMediaType, got %v", err)
	}
}

func TestGetFileNotFound(t *testing.T) {
	c := testCatalog(t)

	_, err := c.GetFile(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestClaimOldestQueued(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	if _, err := c.CreateFile(ctx, "first", "u", mediatypes.KindImage, nil); err != nil {
		t.Fatal(err)
	}
	// created_at has second granularity; ordering falls back to id, so a
	// same-second insert with a later id still claims after "first".
	if _, err := c.CreateFile(ctx, "second", "u", mediatypes.KindImage, nil); err != nil {
		t.Fatal(err)
	}

	claimed, err := c.ClaimOldestQueued(ctx)
	if err != nil {
		t.Fatalf("ClaimOldestQueued failed: %v", err)
	}
	if claimed == nil {
		t.Fatal("Expected a claim, got none")
	}
	if claimed.ID != "first" {
		t.Errorf("Expected FIFO claim of 'first', got %s", claimed.ID)
	}
	if claimed.Status != StatusProcessing {
		t.Errorf("Expected PROCESSING after claim, got %s", claimed.Status)
	}
	if claimed.Progress == nil || *claimed.Progress != 0 {
		t.Error("Expected progress 0 after claim")
	}
}

func TestClaimEmpty(t *testing.T) {
	c := testCatalog(t)

	claimed, err := c.ClaimOldestQueued(context.Background())
	if err != nil {
		t.Fatalf("ClaimOldestQueued failed: %v", err)
	}
	if claimed != nil {
		t.Errorf("Expected no claim from empty queue, got %s", claimed.ID)
	}
}

func TestAtomicClaim(t *testing.T) {
	// N concurrent claims with exactly one QUEUED row: exactly one wins.
	c := testCatalog(t)
	ctx := context.Background()

	if _, err := c.CreateFile(ctx, "only", "u", mediatypes.KindAudio, nil); err != nil {
		t.Fatal(err)
	}

	const n = 16
	var wg sync.WaitGroup
	results := make(chan *File, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := c.ClaimOldestQueued(ctx)
			if err != nil {
				t.Errorf("ClaimOldestQueued failed: %v", err)
				return
			}
			results <- claimed
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for claimed := range results {
		if claimed != nil {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("Expected exactly 1 winning claim, got %d", winners)
	}
}

func TestMarkDoneAndFailed(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	if _, err := c.CreateFile(ctx, "f1", "u", mediatypes.KindGif, nil); err != nil {
		t.Fatal(err)
	}

	if err := c.MarkDone(ctx, "f1"); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}
	f, _ := c.GetFile(ctx, "f1")
	if f.Status != StatusDone {
		t.Errorf("Expected DONE, got %s", f.Status)
	}

	if err := c.MarkFailed(ctx, "f1", "MP4 video compression: exit status 1"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	f, _ = c.GetFile(ctx, "f1")
	if f.Status != StatusFailed {
		t.Errorf("Expected FAILED, got %s", f.Status)
	}
	if f.Notes != "MP4 video compression: exit status 1" {
		t.Errorf("Unexpected notes: %q", f.Notes)
	}

	if err := c.MarkDone(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestSetProgressClamps(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	if _, err := c.CreateFile(ctx, "f1", "u", mediatypes.KindVideo, nil); err != nil {
		t.Fatal(err)
	}

	if err := c.SetProgress(ctx, "f1", 150); err != nil {
		t.Fatal(err)
	}
	f, _ := c.GetFile(ctx, "f1")
	if f.Progress == nil || *f.Progress != 100 {
		t.Errorf("Expected progress clamped to 100, got %v", f.Progress)
	}
}

func TestRequeue(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	if _, err := c.CreateFile(ctx, "f1", "u", mediatypes.KindVideo, nil); err != nil {
		t.Fatal(err)
	}

	// Only FAILED files can be requeued.
	if err := c.Requeue(ctx, "f1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound requeueing a QUEUED file, got %v", err)
	}

	if err := c.MarkFailed(ctx, "f1", "boom"); err != nil {
		t.Fatal(err)
	}
	if err := c.Requeue(ctx, "f1"); err != nil {
		t.Fatalf("Requeue failed: %v", err)
	}

	f, _ := c.GetFile(ctx, "f1")
	if f.Status != StatusQueued {
		t.Errorf("Expected QUEUED after requeue, got %s", f.Status)
	}
	if f.Progress != nil {
		t.Error("Expected progress reset to nil after requeue")
	}
	if f.Notes != "" {
		t.Errorf("Expected notes cleared, got %q", f.Notes)
	}
}

func TestSweepAbandonedProcessing(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	if _, err := c.CreateFile(ctx, "f1", "u", mediatypes.KindVideo, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ClaimOldestQueued(ctx); err != nil {
		t.Fatal(err)
	}

	n, err := c.SweepAbandonedProcessing(ctx)
	if err != nil {
		t.Fatalf("SweepAbandonedProcessing failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 swept row, got %d", n)
	}

	f, _ := c.GetFile(ctx, "f1")
	if f.Status != StatusFailed {
		t.Errorf("Expected FAILED after sweep, got %s", f.Status)
	}
	if f.Notes != RestartSweepNote {
		t.Errorf("Expected note %q, got %q", RestartSweepNote, f.Notes)
	}
}

func TestSweepStaleProcessingRespectsAge(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	if _, err := c.CreateFile(ctx, "f1", "u", mediatypes.KindVideo, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ClaimOldestQueued(ctx); err != nil {
		t.Fatal(err)
	}

	// Freshly claimed: a 30-minute threshold must leave it alone.
	n, err := c.SweepStaleProcessing(ctx, 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("Expected 0 swept rows for fresh claim, got %d", n)
	}

	f, _ := c.GetFile(ctx, "f1")
	if f.Status != StatusProcessing {
		t.Errorf("Expected PROCESSING to survive, got %s", f.Status)
	}
}

func TestExpiredFiles(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour).UnixMilli()
	future := time.Now().Add(time.Hour).UnixMilli()

	if _, err := c.CreateFile(ctx, "expired", "u", mediatypes.KindImage, &past); err != nil {
		t.Fatal(err)
	}
	if _, err := c.CreateFile(ctx, "fresh", "u", mediatypes.KindImage, &future); err != nil {
		t.Fatal(err)
	}
	if _, err := c.CreateFile(ctx, "permanent", "u", mediatypes.KindImage, nil); err != nil {
		t.Fatal(err)
	}

	ids, err := c.ExpiredFiles(ctx, time.Now())
	if err != nil {
		t.Fatalf("ExpiredFiles failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "expired" {
		t.Errorf("Expected [expired], got %v", ids)
	}

	// Attachment clears the deadline.
	if err := c.ClearExpiry(ctx, "expired"); err != nil {
		t.Fatal(err)
	}
	ids, err = c.ExpiredFiles(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("Expected no expired files after ClearExpiry, got %v", ids)
	}
}

func TestVariantLifecycle(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	if _, err := c.CreateFile(ctx, "f1", "u", mediatypes.KindAudio, nil); err != nil {
		t.Fatal(err)
	}

	v := FileVariant{
		FileID:    "f1",
		Variant:   mediatypes.VariantCompressed,
		MimeType:  "audio/mpeg",
		Extension: ".mp3",
		Metadata:  map[string]any{"waveform": []any{0.1, 0.9}},
	}
	if err := c.UpsertVariant(ctx, v); err != nil {
		t.Fatalf("UpsertVariant failed: %v", err)
	}

	if err := c.PatchVariantSize(ctx, "f1", mediatypes.VariantCompressed, 4096); err != nil {
		t.Fatalf("PatchVariantSize failed: %v", err)
	}

	variants, err := c.VariantsForFile(ctx, "f1")
	if err != nil {
		t.Fatalf("VariantsForFile failed: %v", err)
	}
	if len(variants) != 1 {
		t.Fatalf("Expected 1 variant, got %d", len(variants))
	}
	if variants[0].SizeBytes != 4096 {
		t.Errorf("Expected patched size 4096, got %d", variants[0].SizeBytes)
	}
	if _, ok := variants[0].Metadata["waveform"]; !ok {
		t.Error("Expected waveform metadata to round-trip")
	}

	// Upsert on the same (file, variant) key replaces, not duplicates.
	v.SizeBytes = 8192
	if err := c.UpsertVariant(ctx, v); err != nil {
		t.Fatal(err)
	}
	variants, _ = c.VariantsForFile(ctx, "f1")
	if len(variants) != 1 {
		t.Errorf("Expected upsert to replace, got %d rows", len(variants))
	}

	if err := c.DeleteVariants(ctx, "f1"); err != nil {
		t.Fatalf("DeleteVariants failed: %v", err)
	}
	variants, _ = c.VariantsForFile(ctx, "f1")
	if len(variants) != 0 {
		t.Errorf("Expected no variants after delete, got %d", len(variants))
	}
}

func TestPatchVariantSizeMissing(t *testing.T) {
	c := testCatalog(t)

	err := c.PatchVariantSize(context.Background(), "nope", mediatypes.VariantThumbnail, 1)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDeleteFileRemovesVariants(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	if _, err := c.CreateFile(ctx, "f1", "u", mediatypes.KindImage, nil); err != nil {
		t.Fatal(err)
	}
	if err := c.UpsertVariant(ctx, FileVariant{
		FileID: "f1", Variant: mediatypes.VariantOriginal, MimeType: "image/png", Extension: ".png",
	}); err != nil {
		t.Fatal(err)
	}

	if err := c.DeleteFile(ctx, "f1"); err != nil {
		t.Fatalf("DeleteFile failed: %v", err)
	}

	if _, err := c.GetFile(ctx, "f1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected file gone, got %v", err)
	}
	variants, err := c.VariantsForFile(ctx, "f1")
	if err != nil {
		t.Fatal(err)
	}
	if len(variants) != 0 {
		t.Errorf("Expected orphaned variants removed, got %d", len(variants))
	}
}

func TestCountQueued(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := c.CreateFile(ctx, id, "u", mediatypes.KindImage, nil); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := c.ClaimOldestQueued(ctx); err != nil {
		t.Fatal(err)
	}

	count, err := c.CountQueued(ctx)
	if err != nil {
		t.Fatalf("CountQueued failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 queued, got %d", count)
	}
}
