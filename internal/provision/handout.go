package provision

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"
)

// SealHandout encrypts the snapshot's identifiers, one per line, to the
// given age X25519 recipients. The result is ASCII-armored.
func SealHandout(s *Snapshot, recipientKeys []string) ([]byte, error) {
	if s == nil || len(s.Entries) == 0 {
		return nil, fmt.Errorf("snapshot has no entries")
	}
	if len(recipientKeys) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}

	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	var out bytes.Buffer
	armorWriter := armor.NewWriter(&out)
	writer, err := age.Encrypt(armorWriter, recipients...)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	for _, id := range s.IDs() {
		if _, err := io.WriteString(writer, id+"\n"); err != nil {
			return nil, fmt.Errorf("writing handout: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	if err := armorWriter.Close(); err != nil {
		return nil, fmt.Errorf("finalizing armor: %w", err)
	}
	return out.Bytes(), nil
}

// OpenHandout decrypts a sealed handout with an AGE-SECRET-KEY-1 identity
// and returns the identifiers it contains.
func OpenHandout(sealed []byte, identityKey string) ([]string, error) {
	identity, err := age.ParseX25519Identity(strings.TrimSpace(identityKey))
	if err != nil {
		return nil, fmt.Errorf("parsing identity: %w", err)
	}
	reader, err := age.Decrypt(armor.NewReader(bytes.NewReader(sealed)), identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting handout: %w", err)
	}

	var ids []string
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading handout: %w", err)
	}
	return ids, nil
}
