package blobstore

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Keys for BLAKE3 keyed hashing, ASCII domain names zero-padded to 32 bytes.
var (
	payloadDomainKey = [32]byte{
		's', 't', 'a', 't', 's', 'v', 'a', 'u', 'l', 't', '.', 'p', 'a', 'y', 'l', 'o',
		'a', 'd', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
	tokenDomainKey = [32]byte{
		's', 't', 'a', 't', 's', 'v', 'a', 'u', 'l', 't', '.', 't', 'o', 'k', 'e', 'n',
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// Checksum returns the hex BLAKE3 payload-domain digest of payload.
func Checksum(payload []byte) string {
	return keyedHex(payloadDomainKey, payload)
}

// TokenDigest returns the hex BLAKE3 token-domain digest of a fetch token.
// Tokens may carry client key material, so only the digest is persisted.
func TokenDigest(token string) string {
	return keyedHex(tokenDomainKey, []byte(token))
}

// VerifyChecksum reports ErrCorrupt when payload does not match want.
func VerifyChecksum(payload []byte, want string) error {
	if Checksum(payload) != want {
		return ErrCorrupt
	}
	return nil
}

func keyedHex(key [32]byte, data []byte) string {
	// NewKeyed only fails on a key that is not 32 bytes.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("blobstore: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil))
}
