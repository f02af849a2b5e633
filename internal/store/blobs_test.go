package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"statsvault/internal/blobstore"
)

func TestBlobTablePutGetDelete(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	blobs := st.Blobs(0)

	if _, err := st.InsertEntry(ctx, "b1", 1, time.Now()); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, ok, err := blobs.Get(ctx, "b1"); err != nil || ok {
		t.Fatalf("expected no payload yet, ok=%v err=%v", ok, err)
	}

	if err := blobs.Put(ctx, "b1", []byte("first")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := blobs.Put(ctx, "b1", []byte("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	payload, ok, err := blobs.Get(ctx, "b1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(payload) != "second" {
		t.Fatalf("expected second, got %q", payload)
	}

	info, err := blobs.Info(ctx, "b1")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info == nil || info.SizeBytes != 6 || info.Checksum != blobstore.Checksum([]byte("second")) {
		t.Fatalf("unexpected blob info: %#v", info)
	}

	if err := blobs.Delete(ctx, "b1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := blobs.Delete(ctx, "b1"); err != nil {
		t.Fatalf("delete missing should be noop: %v", err)
	}
	if ok, err := blobs.Exists(ctx, "b1"); err != nil || ok {
		t.Fatalf("expected payload gone, ok=%v err=%v", ok, err)
	}
}

func TestBlobTableRequiresEntry(t *testing.T) {
	st := testStore(t)
	err := st.Blobs(0).Put(context.Background(), "ghost", []byte("x"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBlobTableTooLarge(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	if _, err := st.InsertEntry(ctx, "big", 1, time.Now()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := st.Blobs(4).Put(ctx, "big", []byte("hello"))
	if !errors.Is(err, blobstore.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestBlobTableDetectsCorruption(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	if _, err := st.InsertEntry(ctx, "rot", 1, time.Now()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := st.Blobs(0).Put(ctx, "rot", []byte("payload")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := st.db.Exec("UPDATE blobs SET payload = ? WHERE id = ?", []byte("tampered"), "rot"); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	_, _, err := st.Blobs(0).Get(ctx, "rot")
	if !errors.Is(err, blobstore.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}
