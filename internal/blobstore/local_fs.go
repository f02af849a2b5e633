package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const checksumHexLength = 64

// LocalFS stores one payload file per id in a local directory tree.
// Each file holds the hex payload checksum, a newline, then the payload.
type LocalFS struct {
	root     string
	maxBytes int64
}

var _ Store = (*LocalFS)(nil)

// NewLocalFS creates a local payload store rooted at root.
func NewLocalFS(root string, maxBytes int64) (*LocalFS, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("local blob root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, "tmp"), 0o700); err != nil {
		return nil, err
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPayloadBytes
	}
	return &LocalFS{root: abs, maxBytes: maxBytes}, nil
}

// Put writes payload to a temp file, syncs it, and renames it into place.
func (f *LocalFS) Put(ctx context.Context, id string, payload []byte) error {
	if f == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := CheckSize(payload, f.maxBytes); err != nil {
		return err
	}
	dst, err := f.pathFromID(id)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Join(f.root, "tmp"), "put-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	var buf bytes.Buffer
	buf.Grow(checksumHexLength + 1 + len(payload))
	buf.WriteString(Checksum(payload))
	buf.WriteByte('\n')
	buf.Write(payload)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return syncDir(filepath.Dir(dst))
}

// Get reads and verifies the payload stored for id.
func (f *LocalFS) Get(ctx context.Context, id string) ([]byte, bool, error) {
	if f == nil {
		return nil, false, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	path, err := f.pathFromID(id)
	if err != nil {
		return nil, false, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if len(raw) < checksumHexLength+1 || raw[checksumHexLength] != '\n' {
		return nil, false, fmt.Errorf("%w: %s: malformed header", ErrCorrupt, id)
	}
	payload := raw[checksumHexLength+1:]
	if err := VerifyChecksum(payload, string(raw[:checksumHexLength])); err != nil {
		return nil, false, fmt.Errorf("%w: %s", err, id)
	}
	return payload, true, nil
}

// Exists reports whether a payload file is present for id.
func (f *LocalFS) Exists(ctx context.Context, id string) (bool, error) {
	if f == nil {
		return false, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path, err := f.pathFromID(id)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes the payload file. Missing files are ignored.
func (f *LocalFS) Delete(ctx context.Context, id string) error {
	if f == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := f.pathFromID(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// pathFromID maps id to <root>/<shard>/<id>. The shard is the first two
// characters, lowercased; one-character ids get a trailing underscore.
func (f *LocalFS) pathFromID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || id[0] == '.' || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("invalid blob id %q", id)
	}
	shard := id
	if len(shard) < 2 {
		shard += "_"
	}
	return filepath.Join(f.root, strings.ToLower(shard[0:2]), id), nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return err
	}
	return nil
}
