package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/mediatypes"
)

// ErrNotFound is returned when a file id has no catalog row.
var ErrNotFound = errors.New("file not found")

// RestartSweepNote is written into processing_notes for rows abandoned by a
// crashed worker.
const RestartSweepNote = "cleaned up after restart"

// StaleSweepNote is written for rows swept by the age-based housekeeping task.
const StaleSweepNote = "processing timed out"

const fileColumns = "id, owner, kind, processing_status, processing_progress, processing_notes, expire_by, created_at, updated_at"

func scanFile(row interface{ Scan(...any) error }) (*File, error) {
	var f File
	var progress sql.NullInt64
	var expireBy sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(&f.ID, &f.Owner, &f.Kind, &f.Status, &progress, &f.Notes, &expireBy, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if progress.Valid {
		p := int(progress.Int64)
		f.Progress = &p
	}
	if expireBy.Valid {
		e := expireBy.Int64
		f.ExpireBy = &e
	}
	f.CreatedAt = time.Unix(createdAt, 0)
	f.UpdatedAt = time.Unix(updatedAt, 0)
	return &f, nil
}

// CreateFile inserts a new QUEUED file row. The caller supplies the
// content-addressed id and has already written the raw bytes to the intake
// path before triggering the queue.
func (c *Catalog) CreateFile(ctx context.Context, id, owner string, kind mediatypes.MediaKind, expireBy *int64) (*File, error) {
	start := time.Now()

	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %s", mediatypes.ErrUnsupportedMediaType, kind)
	}

	var expire sql.NullInt64
	if expireBy != nil {
		expire = sql.NullInt64{Int64: *expireBy, Valid: true}
	}

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO files (id, owner, kind, processing_status, expire_by) VALUES (?, ?, ?, ?, ?)`,
		id, owner, string(kind), string(StatusQueued), expire)
	recordQuery("create_file", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", id, err)
	}

	return c.GetFile(ctx, id)
}

// GetFile returns one file row by id.
func (c *Catalog) GetFile(ctx context.Context, id string) (*File, error) {
	start := time.Now()

	row := c.db.QueryRowContext(ctx, "SELECT "+fileColumns+" FROM files WHERE id = ?", id)
	f, err := scanFile(row)
	recordQuery("get_file", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", id, err)
	}
	return f, nil
}

// CountQueued returns the number of files awaiting processing.
func (c *Catalog) CountQueued(ctx context.Context) (int, error) {
	start := time.Now()

	var count int
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM files WHERE processing_status = ?", string(StatusQueued)).Scan(&count)
	recordQuery("count_queued", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to count queued files: %w", err)
	}
	return count, nil
}

// ClaimOldestQueued atomically transitions the oldest QUEUED file to
// PROCESSING and returns it, establishing exclusive ownership for one
// worker. Returns (nil, nil) when no queued work exists. The status guard
// in the UPDATE makes double-claiming impossible even across processes.
func (c *Catalog) ClaimOldestQueued(ctx context.Context) (*File, error) {
	start := time.Now()

	row := c.db.QueryRowContext(ctx, `
		UPDATE files
		SET processing_status = ?, processing_progress = 0, updated_at = strftime('%s', 'now')
		WHERE id = (
			SELECT id FROM files
			WHERE processing_status = ?
			ORDER BY created_at, id
			LIMIT 1
		) AND processing_status = ?
		RETURNING `+fileColumns,
		string(StatusProcessing), string(StatusQueued), string(StatusQueued))

	f, err := scanFile(row)
	recordQuery("claim_oldest_queued", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim queued file: %w", err)
	}

	logging.Debug("Claimed file %s for processing", f.ID)
	return f, nil
}

// SetProgress patches processing progress (0-100).
func (c *Catalog) SetProgress(ctx context.Context, id string, progress int) error {
	start := time.Now()

	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	_, err := c.db.ExecContext(ctx,
		`UPDATE files SET processing_progress = ?, updated_at = strftime('%s', 'now') WHERE id = ?`,
		progress, id)
	recordQuery("set_progress", start, err)
	if err != nil {
		return fmt.Errorf("failed to set progress for %s: %w", id, err)
	}
	return nil
}

// MarkDone transitions a file to DONE.
func (c *Catalog) MarkDone(ctx context.Context, id string) error {
	return c.setStatus(ctx, id, StatusDone, "")
}

// MarkFailed transitions a file to FAILED with diagnostic notes.
func (c *Catalog) MarkFailed(ctx context.Context, id string, notes string) error {
	return c.setStatus(ctx, id, StatusFailed, notes)
}

// Requeue flips a FAILED file back to QUEUED for re-processing. The intake
// artifact must still exist; the operator tooling checks that before calling.
func (c *Catalog) Requeue(ctx context.Context, id string) error {
	start := time.Now()

	res, err := c.db.ExecContext(ctx, `
		UPDATE files
		SET processing_status = ?, processing_progress = NULL, processing_notes = '', updated_at = strftime('%s', 'now')
		WHERE id = ? AND processing_status = ?`,
		string(StatusQueued), id, string(StatusFailed))
	recordQuery("requeue", start, err)
	if err != nil {
		return fmt.Errorf("failed to requeue %s: %w", id, err)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: no FAILED file %s", ErrNotFound, id)
	}
	return nil
}

func (c *Catalog) setStatus(ctx context.Context, id string, status ProcessingStatus, notes string) error {
	start := time.Now()

	res, err := c.db.ExecContext(ctx,
		`UPDATE files SET processing_status = ?, processing_notes = ?, updated_at = strftime('%s', 'now') WHERE id = ?`,
		string(status), notes, id)
	recordQuery("set_status", start, err)
	if err != nil {
		return fmt.Errorf("failed to set status for %s: %w", id, err)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// SetExpiry sets the provisional-upload deadline (epoch ms).
func (c *Catalog) SetExpiry(ctx context.Context, id string, expireBy int64) error {
	return c.patchExpiry(ctx, id, sql.NullInt64{Int64: expireBy, Valid: true})
}

// ClearExpiry removes the deadline, making the upload permanent. Called on
// attachment to a post.
func (c *Catalog) ClearExpiry(ctx context.Context, id string) error {
	return c.patchExpiry(ctx, id, sql.NullInt64{})
}

func (c *Catalog) patchExpiry(ctx context.Context, id string, expire sql.NullInt64) error {
	start := time.Now()

	_, err := c.db.ExecContext(ctx,
		`UPDATE files SET expire_by = ?, updated_at = strftime('%s', 'now') WHERE id = ?`, expire, id)
	recordQuery("patch_expiry", start, err)
	if err != nil {
		return fmt.Errorf("failed to patch expiry for %s: %w", id, err)
	}
	return nil
}

// DeleteFile removes the file row and all its variant rows as one unit.
// Physical artifact removal is the caller's job (storage.RemoveFileTree),
// done after this commits so no row ever references a deleted artifact's
// file while some sibling rows remain.
func (c *Catalog) DeleteFile(ctx context.Context, id string) error {
	start := time.Now()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		recordQuery("delete_file", start, err)
		return fmt.Errorf("failed to begin delete for %s: %w", id, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM file_variants WHERE file_id = ?", id); err != nil {
		recordQuery("delete_file", start, err)
		return fmt.Errorf("failed to delete variants for %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE id = ?", id); err != nil {
		recordQuery("delete_file", start, err)
		return fmt.Errorf("failed to delete file %s: %w", id, err)
	}

	err = tx.Commit()
	recordQuery("delete_file", start, err)
	if err != nil {
		return fmt.Errorf("failed to commit delete for %s: %w", id, err)
	}
	return nil
}

// SweepAbandonedProcessing fails every PROCESSING row, regardless of age.
// Run once at startup before the first claim: a PROCESSING row found then
// was necessarily abandoned mid-work by the prior process, and scratch state
// is gone with it.
func (c *Catalog) SweepAbandonedProcessing(ctx context.Context) (int64, error) {
	return c.sweepProcessing(ctx, 0, RestartSweepNote)
}

// SweepStaleProcessing fails PROCESSING rows older than age. This is the
// out-of-core housekeeping path for livelocked (not crashed) workers.
func (c *Catalog) SweepStaleProcessing(ctx context.Context, age time.Duration) (int64, error) {
	return c.sweepProcessing(ctx, age, StaleSweepNote)
}

func (c *Catalog) sweepProcessing(ctx context.Context, age time.Duration, note string) (int64, error) {
	start := time.Now()

	cutoff := time.Now().Add(-age).Unix()
	res, err := c.db.ExecContext(ctx, `
		UPDATE files
		SET processing_status = ?, processing_notes = ?, updated_at = strftime('%s', 'now')
		WHERE processing_status = ? AND updated_at <= ?`,
		string(StatusFailed), note, string(StatusProcessing), cutoff)
	recordQuery("sweep_processing", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep processing rows: %w", err)
	}

	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Warn("Swept %d abandoned PROCESSING file(s) to FAILED (%s)", n, note)
	}
	return n, nil
}

// ExpiredFiles returns ids of provisional uploads whose deadline has passed,
// eligible for hard deletion together with variants and artifacts.
func (c *Catalog) ExpiredFiles(ctx context.Context, now time.Time) ([]string, error) {
	start := time.Now()

	rows, err := c.db.QueryContext(ctx,
		"SELECT id FROM files WHERE expire_by IS NOT NULL AND expire_by <= ?", now.UnixMilli())
	recordQuery("expired_files", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired files: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("failed to close expired-files rows: %v", err)
		}
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
