package models

import "time"

// Entry is one access-limited identifier and its remaining fetch budget.
type Entry struct {
	ID            string     `json:"id"`
	Remaining     int64      `json:"remaining"`
	Budget        int64      `json:"budget"`
	HasPayload    bool       `json:"has_payload"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastFetchedAt *time.Time `json:"last_fetched_at,omitempty"`
}

// Exhausted reports whether the entry has no fetches left.
func (e Entry) Exhausted() bool {
	return e.Remaining <= 0
}
