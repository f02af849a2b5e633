package store

import (
	"context"
	"time"
)

const defaultAuditLimit = 20

// FetchAudit is one recorded successful fetch.
type FetchAudit struct {
	EntryID        string    `json:"entry_id"`
	TokenDigest    string    `json:"token_digest"`
	RemainingAfter int64     `json:"remaining_after"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// ListFetches returns the most recent fetches for an entry, newest first.
func (s *Store) ListFetches(ctx context.Context, id string, limit int) ([]FetchAudit, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, token_digest, remaining_after, fetched_at
		FROM fetch_audit
		WHERE entry_id = ?
		ORDER BY seq DESC
		LIMIT ?
	`, id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []FetchAudit{}
	for rows.Next() {
		var (
			rec       FetchAudit
			fetchedAt string
		)
		if err := rows.Scan(&rec.EntryID, &rec.TokenDigest, &rec.RemainingAfter, &fetchedAt); err != nil {
			return nil, err
		}
		if rec.FetchedAt, err = parseTime(fetchedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
