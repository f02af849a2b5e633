package store

import "context"

// StoreInfo summarizes registry state for operators.
type StoreInfo struct {
	SchemaVersion    int `json:"schema_version"`
	TotalEntries     int `json:"total_entries"`
	ExhaustedEntries int `json:"exhausted_entries"`
	StoredPayloads   int `json:"stored_payloads"`
}

// StoreInfo returns schema version and entry counts.
func (s *Store) StoreInfo(ctx context.Context) (StoreInfo, error) {
	var info StoreInfo
	version, err := currentVersion(s.db)
	if err != nil {
		return info, err
	}
	info.SchemaVersion = version

	err = s.db.QueryRowContext(ctx, `
		SELECT
		  COUNT(*),
		  COALESCE(SUM(CASE WHEN remaining = 0 THEN 1 ELSE 0 END), 0),
		  (SELECT COUNT(*) FROM blobs)
		FROM entries
	`).Scan(&info.TotalEntries, &info.ExhaustedEntries, &info.StoredPayloads)
	if err != nil {
		return info, err
	}
	return info, nil
}
