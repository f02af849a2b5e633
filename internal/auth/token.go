package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	minTokenLength   = 16
	generatedTokenNB = 24
)

// ValidateToken checks minimal admin token requirements.
func ValidateToken(token string) error {
	if len(strings.TrimSpace(token)) < minTokenLength {
		return fmt.Errorf("admin token must be at least %d characters", minTokenLength)
	}
	return nil
}

// HashToken hashes an admin token for storage in config.
func HashToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if err := ValidateToken(token); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyToken verifies a presented token against a bcrypt hash.
func VerifyToken(tokenHash, candidate string) bool {
	if strings.TrimSpace(tokenHash) == "" || candidate == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(tokenHash)), []byte(candidate)) == nil
}

// ValidateTokenHash reports whether value looks like a bcrypt hash.
func ValidateTokenHash(value string) error {
	if _, err := bcrypt.Cost([]byte(strings.TrimSpace(value))); err != nil {
		return fmt.Errorf("invalid admin token hash: %w", err)
	}
	return nil
}

// GenerateToken returns a random hex admin token.
func GenerateToken() (string, error) {
	b := make([]byte, generatedTokenNB)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
