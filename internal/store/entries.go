package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"statsvault/internal/models"
)

// SeedEntry is one identifier to provision when loading a registry snapshot.
type SeedEntry struct {
	ID     string
	Budget int64
}

// LookupEntry returns an entry by id, or nil when the id is unknown.
func (s *Store) LookupEntry(ctx context.Context, id string) (*models.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM entries WHERE id = ?
	`, id)
	return scanEntry(row)
}

// DecrementEntry atomically consumes one unit of an entry's budget and
// returns the remaining count. A non-empty tokenDigest is recorded in the
// fetch audit trail within the same transaction.
func (s *Store) DecrementEntry(ctx context.Context, id, tokenDigest string, now time.Time) (remaining int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ts := formatTime(now)
	err = tx.QueryRowContext(ctx, `
		UPDATE entries
		SET remaining = remaining - 1, updated_at = ?, last_fetched_at = ?
		WHERE id = ? AND remaining > 0
		RETURNING remaining
	`, ts, ts, id).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		var current int64
		lookupErr := tx.QueryRowContext(ctx, "SELECT remaining FROM entries WHERE id = ?", id).Scan(&current)
		switch {
		case errors.Is(lookupErr, sql.ErrNoRows):
			err = fmt.Errorf("entry %s: %w", id, ErrNotFound)
		case lookupErr != nil:
			err = lookupErr
		default:
			err = fmt.Errorf("entry %s: %w", id, ErrExhausted)
		}
		return 0, err
	}
	if err != nil {
		return 0, err
	}

	if tokenDigest != "" {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO fetch_audit (entry_id, token_digest, remaining_after, fetched_at)
			VALUES (?, ?, ?, ?)
		`, id, tokenDigest, remaining, ts)
		if err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return remaining, nil
}

// InsertEntry provisions a new identifier with a full budget.
func (s *Store) InsertEntry(ctx context.Context, id string, budget int64, now time.Time) (*models.Entry, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("entry id is required")
	}
	if budget <= 0 {
		return nil, fmt.Errorf("budget must be > 0")
	}

	ts := formatTime(now)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (id, remaining, budget, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, budget, budget, ts, ts)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("entry %s: %w", id, ErrAlreadyExists)
	}

	return &models.Entry{
		ID:        id,
		Remaining: budget,
		Budget:    budget,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// DeleteEntry removes an entry together with its payload and audit rows.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return nil
}

// ResetEntry re-arms an entry's budget. A non-positive budget restores the
// budget the entry was provisioned with.
func (s *Store) ResetEntry(ctx context.Context, id string, budget int64, now time.Time) (int64, error) {
	var (
		remaining int64
		err       error
	)
	if budget <= 0 {
		err = s.db.QueryRowContext(ctx, `
			UPDATE entries SET remaining = budget, updated_at = ?
			WHERE id = ?
			RETURNING remaining
		`, formatTime(now), id).Scan(&remaining)
	} else {
		err = s.db.QueryRowContext(ctx, `
			UPDATE entries SET remaining = ?, budget = ?, updated_at = ?
			WHERE id = ?
			RETURNING remaining
		`, budget, budget, formatTime(now), id).Scan(&remaining)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// ListEntries returns every entry ordered by id.
func (s *Store) ListEntries(ctx context.Context) ([]models.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM entries ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// SeedEntries inserts snapshot entries that are not yet registered. Existing
// entries keep their counters so a restart never re-arms spent budgets.
func (s *Store) SeedEntries(ctx context.Context, seeds []SeedEntry, now time.Time) (inserted int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (id, remaining, budget, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	ts := formatTime(now)
	for _, seed := range seeds {
		id := strings.TrimSpace(seed.ID)
		if id == "" {
			err = fmt.Errorf("seed entry id is required")
			return 0, err
		}
		if seed.Budget <= 0 {
			err = fmt.Errorf("seed entry %s: budget must be > 0", id)
			return 0, err
		}
		res, execErr := stmt.ExecContext(ctx, id, seed.Budget, seed.Budget, ts, ts)
		if execErr != nil {
			err = execErr
			return 0, err
		}
		affected, raErr := res.RowsAffected()
		if raErr != nil {
			err = raErr
			return 0, err
		}
		inserted += int(affected)
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func scanEntry(scanner interface {
	Scan(dest ...any) error
}) (*models.Entry, error) {
	var (
		entry                models.Entry
		createdAt, updatedAt string
		lastFetchedAt        sql.NullString
	)
	err := scanner.Scan(&entry.ID, &entry.Remaining, &entry.Budget, &createdAt, &updatedAt, &lastFetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if entry.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("entry %s created_at: %w", entry.ID, err)
	}
	if entry.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("entry %s updated_at: %w", entry.ID, err)
	}
	if entry.LastFetchedAt, err = parseNullTime(lastFetchedAt); err != nil {
		return nil, fmt.Errorf("entry %s last_fetched_at: %w", entry.ID, err)
	}
	return &entry, nil
}
