package blobstore

import (
	"context"
	"errors"
	"fmt"
)

// DefaultMaxPayloadBytes matches the ingress cap of the HTTP layer.
const DefaultMaxPayloadBytes int64 = 16 * 1024

var (
	ErrTooLarge = errors.New("payload exceeds size limit")
	ErrCorrupt  = errors.New("stored payload failed checksum verification")
)

// Store is the durable id -> payload mapping used by the vault coordinator.
// Callers serialize operations on the same id; implementations must not hold
// a store-wide lock across calls for different ids.
type Store interface {
	Put(ctx context.Context, id string, payload []byte) error
	// Get returns the payload and true, or nil and false when no payload exists.
	Get(ctx context.Context, id string) ([]byte, bool, error)
	// Exists reports whether a payload is stored without reading it.
	Exists(ctx context.Context, id string) (bool, error)
	// Delete removes the payload. Missing payloads are ignored.
	Delete(ctx context.Context, id string) error
}

// CheckSize rejects payloads larger than maxBytes. A non-positive limit
// falls back to DefaultMaxPayloadBytes.
func CheckSize(payload []byte, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPayloadBytes
	}
	if int64(len(payload)) > maxBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(payload), maxBytes)
	}
	return nil
}
