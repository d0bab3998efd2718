package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/metrics"
)

// RetryConfig configures retry behavior for relocation, tuned for transient
// network-filesystem errors.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// VariantPath returns the final content-addressed location of a variant:
// {root}/content/{fileId}/{VARIANT}{ext}. The path is derived purely from
// its inputs so any consumer that knows (fileId, variant, extension) can
// reproduce it without a database round-trip.
func VariantPath(root, fileID string, variant mediatypes.VariantKind, ext string) string {
	if !strings.HasPrefix(ext, ".") && ext != "" {
		ext = "." + ext
	}
	return filepath.Join(root, "content", fileID, string(variant)+ext)
}

// IntakePath returns the well-known location where the upload handler
// writes raw source bytes before signaling the queue.
func IntakePath(intakeRoot, fileID string) string {
	return filepath.Join(intakeRoot, fileID)
}

// Relocate moves a finished artifact from the scratch directory into its
// final location and returns its byte size. The destination directory is
// created as needed. Rename is attempted first; a cross-device link error
// falls back to copy+sync+rename through a temp file so the final path only
// ever appears fully written.
func Relocate(src, dst string) (int64, error) {
	return RelocateWithRetry(src, dst, DefaultRetryConfig())
}

// RelocateWithRetry is Relocate with explicit retry configuration.
func RelocateWithRetry(src, dst string, config RetryConfig) (int64, error) {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		size, err := relocateOnce(src, dst)
		if err == nil {
			if attempt > 0 {
				logging.Info("Relocation succeeded on retry %d for %s", attempt, dst)
			}
			metrics.StorageRelocations.WithLabelValues("success").Inc()
			metrics.StorageBytesWritten.Add(float64(size))
			return size, nil
		}

		lastErr = err
		if !isTransient(err) {
			metrics.StorageRelocations.WithLabelValues("error").Inc()
			return 0, err
		}

		if attempt < config.MaxRetries {
			metrics.StorageRetryAttempts.WithLabelValues("relocate").Inc()
			logging.Debug("Transient relocation error for %s, retrying in %v: %v", dst, backoff, err)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	metrics.StorageRelocations.WithLabelValues("error").Inc()
	return 0, fmt.Errorf("relocation failed after %d retries: %w", config.MaxRetries, lastErr)
}

func relocateOnce(src, dst string) (int64, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("source artifact missing: %w", err)
	}
	size := info.Size()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create content directory: %w", err)
	}

	if err := os.Rename(src, dst); err != nil {
		if !isCrossDevice(err) {
			return 0, fmt.Errorf("failed to move artifact into place: %w", err)
		}
		if err := copyAcrossDevices(src, dst); err != nil {
			return 0, err
		}
		if err := os.Remove(src); err != nil {
			logging.Warn("Failed to remove scratch artifact %s after copy: %v", src, err)
		}
	}

	return size, nil
}

// copyAcrossDevices copies through a temp file in the destination directory
// and renames it into place, so readers never observe a partial artifact.
func copyAcrossDevices(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source artifact: %w", err)
	}
	defer func() {
		if err := in.Close(); err != nil {
			logging.Warn("Failed to close source artifact %s: %v", src, err)
		}
	}()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".relocate-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to copy artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to move copied artifact into place: %w", err)
	}
	return nil
}

// RemoveFileTree deletes every artifact for one file id. The content tree
// is append-only per id, so recursive removal of the id directory is the
// complete inverse of all relocations.
func RemoveFileTree(root, fileID string) error {
	dir := filepath.Join(root, "content", fileID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove content tree for %s: %w", fileID, err)
	}
	return nil
}

// RemoveIntake deletes the queued intake artifact for a file id, ignoring
// a missing file.
func RemoveIntake(intakeRoot, fileID string) error {
	err := os.Remove(IntakePath(intakeRoot, fileID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove intake artifact for %s: %w", fileID, err)
	}
	return nil
}

func isCrossDevice(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == syscall.EXDEV
}

// isTransient identifies errors worth retrying: stale NFS handles and
// interrupted syscalls. Everything else fails fast.
func isTransient(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESTALE || errno == syscall.EINTR || errno == syscall.EBUSY
	}
	return false
}
