package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument    = 1000
	ErrCodeInvalidJSON        = 1001
	ErrCodeRequestTooLarge    = 1002
	ErrCodeInvalidToken       = 1003
	ErrCodeInvalidID          = 1004
	ErrCodeUnsupportedCommand = 1005
	ErrCodeMissingRequired    = 1009

	// Domain state (2xxx)
	ErrCodeEntryNotFound   = 2001
	ErrCodePayloadNotFound = 2002
	ErrCodeEntryExists     = 2101
	ErrCodeConflict        = 2102
	ErrCodeExhausted       = 2201

	// Auth & limits (3xxx)
	ErrCodeUnauthorized      = 3001
	ErrCodeForbidden         = 3002
	ErrCodeResourceExhausted = 3003

	// Internal/system (4xxx)
	ErrCodeInternal       = 4001
	ErrCodeStoreFailure   = 4002
	ErrCodePayloadCorrupt = 4003
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 401:
		return ErrCodeUnauthorized
	case 403:
		return ErrCodeForbidden
	case 404:
		return ErrCodeEntryNotFound
	case 409:
		return ErrCodeConflict
	case 410:
		return ErrCodeExhausted
	case 413:
		return ErrCodeRequestTooLarge
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	default:
		return 0
	}
}
