package queue

import (
	"context"
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"media-pipeline/internal/catalog"
	"media-pipeline/internal/ffmpeg"
	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/modification"
	"media-pipeline/internal/processor"
	"media-pipeline/internal/storage"
)

func newTestQueue(t *testing.T) (*Queue, *catalog.Catalog, Config) {
	t.Helper()
	dir := t.TempDir()

	cat, err := catalog.New(context.Background(), filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("failed to create catalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	cfg := Config{
		ContentDir: dir,
		IntakeDir:  filepath.Join(dir, "intake"),
		ScratchDir: filepath.Join(dir, "scratch"),
		Retry:      storage.DefaultRetryConfig(),
	}
	for _, d := range []string{cfg.IntakeDir, cfg.ScratchDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("failed to create %s: %v", d, err)
		}
	}

	proc := processor.New(ffmpeg.NewRunner("", ""), ffmpeg.DefaultLoudnessOptions())
	return New(cat, proc, cfg), cat, cfg
}

// writeIntakeImage drops a decodable PNG at the intake path for id.
func writeIntakeImage(t *testing.T, cfg Config, id string, w, h int) {
	t.Helper()
	img := imaging.New(w, h, image.Transparent.C)
	if err := imaging.Save(img, storage.IntakePath(cfg.IntakeDir, id)+".png"); err != nil {
		t.Fatalf("failed to write test image: %v", err)
	}
	// The intake contract is extension-less paths keyed by id.
	src := storage.IntakePath(cfg.IntakeDir, id) + ".png"
	if err := os.Rename(src, storage.IntakePath(cfg.IntakeDir, id)); err != nil {
		t.Fatalf("failed to place intake artifact: %v", err)
	}
}

func TestImageEndToEnd(t *testing.T) {
	q, cat, cfg := newTestQueue(t)
	ctx := context.Background()

	if _, err := cat.CreateFile(ctx, "img-1", "tester", mediatypes.KindImage, nil); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	writeIntakeImage(t, cfg, "img-1", 640, 360)

	claimed, err := q.processNext(ctx)
	if err != nil {
		t.Fatalf("processNext returned error: %v", err)
	}
	if !claimed {
		t.Fatal("processNext claimed nothing")
	}

	file, err := cat.GetFile(ctx, "img-1")
	if err != nil {
		t.Fatalf("failed to load file: %v", err)
	}
	if file.Status != catalog.StatusDone {
		t.Fatalf("status = %s (notes %q), want DONE", file.Status, file.Notes)
	}

	variants, err := cat.VariantsForFile(ctx, "img-1")
	if err != nil {
		t.Fatalf("failed to load variants: %v", err)
	}
	got := map[mediatypes.VariantKind]catalog.FileVariant{}
	for _, v := range variants {
		got[v.Variant] = v
	}
	for _, want := range []mediatypes.VariantKind{
		mediatypes.VariantOriginal,
		mediatypes.VariantCompressed,
		mediatypes.VariantThumbnail,
	} {
		v, ok := got[want]
		if !ok {
			t.Errorf("variant %s missing", want)
			continue
		}
		if v.SizeBytes <= 0 {
			t.Errorf("variant %s has size %d, want > 0", want, v.SizeBytes)
		}
		path := storage.VariantPath(cfg.ContentDir, "img-1", want, v.Extension)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("variant %s artifact missing at %s: %v", want, path, err)
		}
	}

	meta := got[mediatypes.VariantCompressed].Metadata
	if rh, ok := meta["relative_height"].(float64); !ok || rh != 56.25 {
		t.Errorf("relative_height = %v, want 56.25", meta["relative_height"])
	}

	if _, err := os.Stat(storage.IntakePath(cfg.IntakeDir, "img-1")); !os.IsNotExist(err) {
		t.Error("intake artifact not removed after processing")
	}
	entries, err := os.ReadDir(cfg.ScratchDir)
	if err != nil {
		t.Fatalf("failed to read scratch dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch dir not empty after processing: %d entries", len(entries))
	}
}

func TestCropAppliedToImage(t *testing.T) {
	q, cat, cfg := newTestQueue(t)
	ctx := context.Background()

	if _, err := cat.CreateFile(ctx, "img-crop", "tester", mediatypes.KindImage, nil); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	writeIntakeImage(t, cfg, "img-crop", 200, 100)

	manifest := IntakeManifest{
		MimeType: "image/png",
		Actions: []modification.Action{
			{Type: modification.ActionCrop, Crop: &modification.Crop{Left: 10, Top: 5, Right: 10, Bottom: 5}},
		},
	}
	data, _ := json.Marshal(manifest)
	sidecar := manifestPath(storage.IntakePath(cfg.IntakeDir, "img-crop"))
	if err := os.WriteFile(sidecar, data, 0o644); err != nil {
		t.Fatalf("failed to write sidecar: %v", err)
	}

	if _, err := q.processNext(ctx); err != nil {
		t.Fatalf("processNext returned error: %v", err)
	}

	variants, err := cat.VariantsForFile(ctx, "img-crop")
	if err != nil {
		t.Fatalf("failed to load variants: %v", err)
	}
	for _, v := range variants {
		if v.Variant != mediatypes.VariantCompressed {
			continue
		}
		want := 90.0 / 180.0 * 100
		if rh := v.Metadata["relative_height"]; rh != want {
			t.Errorf("relative_height = %v, want %v", rh, want)
		}
		img, err := imaging.Open(storage.VariantPath(cfg.ContentDir, "img-crop", v.Variant, v.Extension))
		if err != nil {
			t.Fatalf("failed to open compressed output: %v", err)
		}
		b := img.Bounds()
		if b.Dx() != 180 || b.Dy() != 90 {
			t.Errorf("compressed dimensions = %dx%d, want 180x90", b.Dx(), b.Dy())
		}
	}
}

func TestMissingIntakeMarksFailed(t *testing.T) {
	q, cat, _ := newTestQueue(t)
	ctx := context.Background()

	if _, err := cat.CreateFile(ctx, "ghost", "tester", mediatypes.KindImage, nil); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	claimed, err := q.processNext(ctx)
	if err != nil {
		t.Fatalf("processNext returned error: %v", err)
	}
	if !claimed {
		t.Fatal("processNext claimed nothing")
	}

	file, err := cat.GetFile(ctx, "ghost")
	if err != nil {
		t.Fatalf("failed to load file: %v", err)
	}
	if file.Status != catalog.StatusFailed {
		t.Fatalf("status = %s, want FAILED", file.Status)
	}
	if file.Notes == "" {
		t.Error("failed file has no diagnostic notes")
	}

	variants, err := cat.VariantsForFile(ctx, "ghost")
	if err != nil {
		t.Fatalf("failed to load variants: %v", err)
	}
	if len(variants) != 0 {
		t.Errorf("failed file has %d variant rows, want 0", len(variants))
	}
}

func TestForwardProgressAfterFailure(t *testing.T) {
	q, cat, cfg := newTestQueue(t)
	ctx := context.Background()

	// Oldest file has no intake artifact and must fail; the one behind it
	// must still be processed to DONE.
	if _, err := cat.CreateFile(ctx, "bad", "tester", mediatypes.KindImage, nil); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	time.Sleep(1100 * time.Millisecond) // created_at has second resolution
	if _, err := cat.CreateFile(ctx, "good", "tester", mediatypes.KindImage, nil); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	writeIntakeImage(t, cfg, "good", 64, 64)

	for i := 0; i < 2; i++ {
		claimed, err := q.processNext(ctx)
		if err != nil {
			t.Fatalf("processNext %d returned error: %v", i, err)
		}
		if !claimed {
			t.Fatalf("processNext %d claimed nothing", i)
		}
	}

	bad, _ := cat.GetFile(ctx, "bad")
	good, _ := cat.GetFile(ctx, "good")
	if bad.Status != catalog.StatusFailed {
		t.Errorf("bad status = %s, want FAILED", bad.Status)
	}
	if good.Status != catalog.StatusDone {
		t.Errorf("good status = %s (notes %q), want DONE", good.Status, good.Notes)
	}
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []catalog.FileSnapshot
}

func (r *recordingNotifier) FileChanged(fileID string, change ChangeKind, snapshot catalog.FileSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, snapshot)
}

type panickingNotifier struct{}

func (panickingNotifier) FileChanged(string, ChangeKind, catalog.FileSnapshot) {
	panic("subscriber bug")
}

func TestNotifierReceivesTerminalSnapshot(t *testing.T) {
	q, cat, cfg := newTestQueue(t)
	ctx := context.Background()

	rec := &recordingNotifier{}
	q.Subscribe(panickingNotifier{})
	q.Subscribe(rec)

	if _, err := cat.CreateFile(ctx, "img-n", "tester", mediatypes.KindImage, nil); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	writeIntakeImage(t, cfg, "img-n", 64, 64)

	if _, err := q.processNext(ctx); err != nil {
		t.Fatalf("processNext returned error: %v", err)
	}

	// Deliveries are asynchronous.
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec.mu.Lock()
		var sawDone bool
		for _, s := range rec.calls {
			if s.ID == "img-n" && s.Status == catalog.StatusDone {
				sawDone = true
			}
		}
		rec.mu.Unlock()
		if sawDone {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("never observed a DONE snapshot")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCheckQueueCoalesces(t *testing.T) {
	q, _, _ := newTestQueue(t)
	for i := 0; i < 10; i++ {
		q.CheckQueue()
	}
	if len(q.wake) != 1 {
		t.Errorf("wake channel holds %d signals, want 1", len(q.wake))
	}
}

func TestLoadManifestMissingSidecar(t *testing.T) {
	m, err := loadManifest(filepath.Join(t.TempDir(), "nothing"))
	if err != nil {
		t.Fatalf("loadManifest = %v, want nil", err)
	}
	if m.MimeType != "" || len(m.Actions) != 0 {
		t.Errorf("missing sidecar should yield zero manifest, got %+v", m)
	}
}

func TestCompressedFormat(t *testing.T) {
	tests := []struct {
		kind mediatypes.MediaKind
		mime string
		ext  string
	}{
		{mediatypes.KindVideo, "video/mp4", "mp4"},
		{mediatypes.KindGif, "video/mp4", "mp4"},
		{mediatypes.KindAudio, "audio/mpeg", "mp3"},
		{mediatypes.KindImage, "image/jpeg", "jpg"},
		{mediatypes.KindProfilePicture, "image/jpeg", "jpg"},
	}
	for _, tt := range tests {
		mime, ext := compressedFormat(tt.kind)
		if mime != tt.mime || ext != tt.ext {
			t.Errorf("compressedFormat(%s) = %s/%s, want %s/%s", tt.kind, mime, ext, tt.mime, tt.ext)
		}
	}
}
