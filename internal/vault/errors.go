package vault

import (
	"errors"
	"fmt"

	"statsvault/internal/blobstore"
	"statsvault/internal/store"
)

var (
	// ErrUnsupportedCommand is returned by ParseCommand for unknown admin commands.
	ErrUnsupportedCommand = errors.New("unsupported command")
	// ErrInvalidToken is returned when a fetch carries no token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidID is returned for admin arguments that cannot name an entry.
	ErrInvalidID = errors.New("invalid id")
	// ErrNoPayload means the id exists but nothing has been pushed to it yet.
	ErrNoPayload = fmt.Errorf("no payload stored: %w", store.ErrNotFound)
)

// Outcome classifies an operation result for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoPayload):
		return "no_payload"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrExhausted):
		return "exhausted"
	case errors.Is(err, store.ErrAlreadyExists):
		return "conflict"
	case errors.Is(err, blobstore.ErrTooLarge):
		return "too_large"
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrInvalidID), errors.Is(err, ErrUnsupportedCommand):
		return "invalid"
	default:
		return "error"
	}
}
