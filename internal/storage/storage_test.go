package storage

import (
	"os"
	"path/filepath"
	"testing"

	"media-pipeline/internal/mediatypes"
)

func TestVariantPath(t *testing.T) {
	tests := []struct {
		name     string
		fileID   string
		variant  mediatypes.VariantKind
		ext      string
		expected string
	}{
		{"Compressed", "abc123", mediatypes.VariantCompressed, ".mp4", "content/abc123/COMPRESSED.mp4"},
		{"ExtWithoutDot", "abc123", mediatypes.VariantThumbnail, "jpg", "content/abc123/THUMBNAIL.jpg"},
		{"Original", "xyz", mediatypes.VariantOriginal, ".png", "content/xyz/ORIGINAL.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VariantPath("/data", tt.fileID, tt.variant, tt.ext)
			expected := filepath.Join("/data", tt.expected)
			if got != expected {
				t.Errorf("VariantPath = %q, want %q", got, expected)
			}
		})
	}
}

func TestVariantPathReproducible(t *testing.T) {
	a := VariantPath("/data", "id", mediatypes.VariantCompressed, ".mp4")
	b := VariantPath("/data", "id", mediatypes.VariantCompressed, ".mp4")
	if a != b {
		t.Errorf("Expected identical paths, got %q and %q", a, b)
	}
}

func TestIntakePath(t *testing.T) {
	got := IntakePath("/intake", "abc")
	if got != filepath.Join("/intake", "abc") {
		t.Errorf("IntakePath = %q", got)
	}
}

func TestRelocate(t *testing.T) {
	dir := t.TempDir()

	src := filepath.Join(dir, "scratch", "out.mp4")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatal(err)
	}
	payload := []byte("fake mp4 payload")
	if err := os.WriteFile(src, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	dst := VariantPath(dir, "file-1", mediatypes.VariantCompressed, ".mp4")
	size, err := Relocate(src, dst)
	if err != nil {
		t.Fatalf("Relocate failed: %v", err)
	}
	if size != int64(len(payload)) {
		t.Errorf("Expected size %d, got %d", len(payload), size)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("Expected source to be gone after relocation")
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("Destination unreadable: %v", err)
	}
	if string(data) != string(payload) {
		t.Error("Payload corrupted during relocation")
	}
}

func TestRelocateMissingSource(t *testing.T) {
	dir := t.TempDir()

	_, err := Relocate(filepath.Join(dir, "missing"), filepath.Join(dir, "dst"))
	if err == nil {
		t.Fatal("Expected error for missing source")
	}
}

func TestRemoveFileTree(t *testing.T) {
	dir := t.TempDir()

	dst := VariantPath(dir, "file-1", mediatypes.VariantThumbnail, ".jpg")
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := RemoveFileTree(dir, "file-1"); err != nil {
		t.Fatalf("RemoveFileTree failed: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(dst)); !os.IsNotExist(err) {
		t.Error("Expected content tree to be removed")
	}

	// Removing an id with no artifacts is not an error.
	if err := RemoveFileTree(dir, "never-existed"); err != nil {
		t.Errorf("Expected nil for absent tree, got %v", err)
	}
}

func TestRemoveIntake(t *testing.T) {
	dir := t.TempDir()

	path := IntakePath(dir, "file-1")
	if err := os.WriteFile(path, []byte("raw"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := RemoveIntake(dir, "file-1"); err != nil {
		t.Fatalf("RemoveIntake failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected intake artifact removed")
	}

	if err := RemoveIntake(dir, "file-1"); err != nil {
		t.Errorf("Expected missing intake to be ignored, got %v", err)
	}
}
