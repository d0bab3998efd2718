package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/mediatypes"
)

// UpsertVariant inserts or replaces a variant row. Callers must only do this
// after the physical artifact is in its final location: a variant row must
// never reference a file that does not yet exist.
func (c *Catalog) UpsertVariant(ctx context.Context, v FileVariant) error {
	start := time.Now()

	meta := v.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode variant metadata: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO file_variants (file_id, variant, mime_type, extension, size_bytes, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id, variant) DO UPDATE SET
			mime_type = excluded.mime_type,
			extension = excluded.extension,
			size_bytes = excluded.size_bytes,
			metadata = excluded.metadata,
			updated_at = strftime('%s', 'now')`,
		v.FileID, string(v.Variant), v.MimeType, v.Extension, v.SizeBytes, string(metaJSON))
	recordQuery("upsert_variant", start, err)
	if err != nil {
		return fmt.Errorf("failed to upsert variant %s/%s: %w", v.FileID, v.Variant, err)
	}
	return nil
}

// PatchVariantSize updates the byte size once the relocated artifact has
// been measured in its final location.
func (c *Catalog) PatchVariantSize(ctx context.Context, fileID string, variant mediatypes.VariantKind, size int64) error {
	start := time.Now()

	res, err := c.db.ExecContext(ctx, `
		UPDATE file_variants
		SET size_bytes = ?, updated_at = strftime('%s', 'now')
		WHERE file_id = ? AND variant = ?`,
		size, fileID, string(variant))
	recordQuery("patch_variant_size", start, err)
	if err != nil {
		return fmt.Errorf("failed to patch size for %s/%s: %w", fileID, variant, err)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: variant %s/%s", ErrNotFound, fileID, variant)
	}
	return nil
}

// VariantsForFile returns all variant rows for a file.
func (c *Catalog) VariantsForFile(ctx context.Context, fileID string) ([]FileVariant, error) {
	start := time.Now()

	rows, err := c.db.QueryContext(ctx, `
		SELECT file_id, variant, mime_type, extension, size_bytes, metadata, created_at, updated_at
		FROM file_variants WHERE file_id = ? ORDER BY variant`, fileID)
	recordQuery("variants_for_file", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list variants for %s: %w", fileID, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("failed to close variant rows: %v", err)
		}
	}()

	var variants []FileVariant
	for rows.Next() {
		var v FileVariant
		var metaJSON string
		var createdAt, updatedAt int64
		if err := rows.Scan(&v.FileID, &v.Variant, &v.MimeType, &v.Extension, &v.SizeBytes, &metaJSON, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metaJSON), &v.Metadata); err != nil {
			logging.Warn("Corrupt metadata for variant %s/%s: %v", v.FileID, v.Variant, err)
			v.Metadata = map[string]any{}
		}
		v.CreatedAt = time.Unix(createdAt, 0)
		v.UpdatedAt = time.Unix(updatedAt, 0)
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// DeleteVariants removes all variant rows for a file, leaving the file row
// in place. Used when a failed pipeline must leave no partial variants.
func (c *Catalog) DeleteVariants(ctx context.Context, fileID string) error {
	start := time.Now()

	_, err := c.db.ExecContext(ctx, "DELETE FROM file_variants WHERE file_id = ?", fileID)
	recordQuery("delete_variants", start, err)
	if err != nil {
		return fmt.Errorf("failed to delete variants for %s: %w", fileID, err)
	}
	return nil
}
