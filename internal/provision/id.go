package provision

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

const (
	idMaxAttempts = 20
	maxIDLength   = 128
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// NewID returns a random UUIDv4 identifier, retrying on collisions reported
// by exists. Entropy failures are returned as errors.
func NewID(exists func(string) (bool, error)) (string, error) {
	for i := 0; i < idMaxAttempts; i++ {
		u, err := uuid.NewRandom()
		if err != nil {
			return "", fmt.Errorf("read entropy: %w", err)
		}
		id := u.String()
		if exists == nil {
			return id, nil
		}
		taken, err := exists(id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("unable to generate unique id")
}

// ValidateID checks that an identifier is safe to use in URLs and file names.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("id too long")
	}
	if !idPattern.MatchString(id) || id == "." || id == ".." {
		return fmt.Errorf("invalid id %q", id)
	}
	return nil
}
