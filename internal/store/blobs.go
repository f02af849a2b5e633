package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"statsvault/internal/blobstore"
	"statsvault/internal/models"
)

// BlobTable stores payloads in the same database as the registry.
type BlobTable struct {
	store    *Store
	maxBytes int64
}

var _ blobstore.Store = (*BlobTable)(nil)

// Blobs returns the database-backed payload store with a size cap.
func (s *Store) Blobs(maxBytes int64) *BlobTable {
	if maxBytes <= 0 {
		maxBytes = blobstore.DefaultMaxPayloadBytes
	}
	return &BlobTable{store: s, maxBytes: maxBytes}
}

// Put inserts or replaces the payload for an existing entry.
func (t *BlobTable) Put(ctx context.Context, id string, payload []byte) error {
	if err := blobstore.CheckSize(payload, t.maxBytes); err != nil {
		return err
	}
	if payload == nil {
		payload = []byte{}
	}
	_, err := t.store.db.ExecContext(ctx, `
		INSERT INTO blobs (id, payload, size_bytes, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  payload = excluded.payload,
		  size_bytes = excluded.size_bytes,
		  checksum = excluded.checksum,
		  updated_at = excluded.updated_at
	`, id, payload, len(payload), blobstore.Checksum(payload), formatTime(time.Now()))
	if isForeignKeyConstraint(err) {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return err
}

// Get returns the verified payload for id.
func (t *BlobTable) Get(ctx context.Context, id string) ([]byte, bool, error) {
	var (
		payload  []byte
		checksum string
	)
	err := t.store.db.QueryRowContext(ctx, "SELECT payload, checksum FROM blobs WHERE id = ?", id).Scan(&payload, &checksum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := blobstore.VerifyChecksum(payload, checksum); err != nil {
		return nil, false, fmt.Errorf("%w: %s", err, id)
	}
	return payload, true, nil
}

// Exists reports whether a payload row is present for id.
func (t *BlobTable) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := t.store.db.QueryRowContext(ctx, "SELECT 1 FROM blobs WHERE id = ? LIMIT 1", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the payload for id. Missing payloads are ignored.
func (t *BlobTable) Delete(ctx context.Context, id string) error {
	_, err := t.store.db.ExecContext(ctx, "DELETE FROM blobs WHERE id = ?", id)
	return err
}

// Info returns payload metadata without reading the payload bytes.
func (t *BlobTable) Info(ctx context.Context, id string) (*models.Blob, error) {
	var (
		blob      models.Blob
		updatedAt string
	)
	err := t.store.db.QueryRowContext(ctx, "SELECT id, size_bytes, checksum, updated_at FROM blobs WHERE id = ?", id).
		Scan(&blob.ID, &blob.SizeBytes, &blob.Checksum, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if blob.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &blob, nil
}

func isForeignKeyConstraint(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
