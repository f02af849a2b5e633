package models

import "time"

// Blob describes a stored payload without carrying its bytes.
type Blob struct {
	ID        string    `json:"id"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
