package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"statsvault/internal/blobstore"
)

// testStore creates a temporary store for testing.
func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestInsertAndLookupEntry(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	if _, err := st.InsertEntry(ctx, "id-1", 3, now); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := st.LookupEntry(ctx, "id-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got == nil {
		t.Fatal("expected entry, got nil")
	}
	if got.Remaining != 3 || got.Budget != 3 {
		t.Fatalf("expected remaining=3 budget=3, got %d/%d", got.Remaining, got.Budget)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("expected created_at %v, got %v", now, got.CreatedAt)
	}
	if got.LastFetchedAt != nil {
		t.Fatalf("expected no last_fetched_at, got %v", got.LastFetchedAt)
	}

	missing, err := st.LookupEntry(ctx, "nope")
	if err != nil {
		t.Fatalf("lookup missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown id, got %#v", missing)
	}
}

func TestInsertEntryDuplicate(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if _, err := st.InsertEntry(ctx, "dup", 1, time.Now()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, err := st.InsertEntry(ctx, "dup", 5, time.Now())
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	got, err := st.LookupEntry(ctx, "dup")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Budget != 1 {
		t.Fatalf("duplicate insert must not change budget, got %d", got.Budget)
	}
}

func TestInsertEntryValidation(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if _, err := st.InsertEntry(ctx, " ", 1, time.Now()); err == nil {
		t.Fatal("expected error for empty id")
	}
	if _, err := st.InsertEntry(ctx, "x", 0, time.Now()); err == nil {
		t.Fatal("expected error for zero budget")
	}
}

func TestDecrementEntry(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if _, err := st.InsertEntry(ctx, "dec", 2, time.Now()); err != nil {
		t.Fatalf("insert: %v", err)
	}

	remaining, err := st.DecrementEntry(ctx, "dec", blobstore.TokenDigest("t1"), time.Now())
	if err != nil {
		t.Fatalf("first decrement: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("expected 1 remaining, got %d", remaining)
	}

	remaining, err = st.DecrementEntry(ctx, "dec", blobstore.TokenDigest("t2"), time.Now())
	if err != nil {
		t.Fatalf("second decrement: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected 0 remaining, got %d", remaining)
	}

	_, err = st.DecrementEntry(ctx, "dec", blobstore.TokenDigest("t3"), time.Now())
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}

	_, err = st.DecrementEntry(ctx, "missing", "", time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	got, err := st.LookupEntry(ctx, "dec")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Remaining != 0 {
		t.Fatalf("remaining must not go negative, got %d", got.Remaining)
	}
	if got.LastFetchedAt == nil {
		t.Fatal("expected last_fetched_at to be set")
	}

	fetches, err := st.ListFetches(ctx, "dec", 0)
	if err != nil {
		t.Fatalf("list fetches: %v", err)
	}
	if len(fetches) != 2 {
		t.Fatalf("expected 2 audit rows, got %d", len(fetches))
	}
	if fetches[0].RemainingAfter != 0 || fetches[1].RemainingAfter != 1 {
		t.Fatalf("expected newest first, got %#v", fetches)
	}
	if fetches[0].TokenDigest != blobstore.TokenDigest("t2") {
		t.Fatalf("unexpected token digest %q", fetches[0].TokenDigest)
	}
}

func TestDecrementEntryConcurrent(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	const budget = 5
	const workers = 20

	if _, err := st.InsertEntry(ctx, "race", budget, time.Now()); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		exhausted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.DecrementEntry(ctx, "race", "", time.Now())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrExhausted):
				exhausted++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != budget {
		t.Fatalf("expected %d successes, got %d", budget, successes)
	}
	if exhausted != workers-budget {
		t.Fatalf("expected %d exhausted, got %d", workers-budget, exhausted)
	}
}

func TestResetEntry(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if _, err := st.InsertEntry(ctx, "rst", 2, time.Now()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := st.DecrementEntry(ctx, "rst", "", time.Now()); err != nil {
			t.Fatalf("decrement %d: %v", i, err)
		}
	}

	remaining, err := st.ResetEntry(ctx, "rst", 0, time.Now())
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if remaining != 2 {
		t.Fatalf("expected reset to provisioned budget 2, got %d", remaining)
	}

	remaining, err = st.ResetEntry(ctx, "rst", 7, time.Now())
	if err != nil {
		t.Fatalf("reset with budget: %v", err)
	}
	if remaining != 7 {
		t.Fatalf("expected 7, got %d", remaining)
	}
	got, err := st.LookupEntry(ctx, "rst")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Budget != 7 {
		t.Fatalf("expected budget 7, got %d", got.Budget)
	}

	_, err = st.ResetEntry(ctx, "missing", 0, time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteEntryCascades(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	blobs := st.Blobs(0)

	if _, err := st.InsertEntry(ctx, "del", 1, time.Now()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := blobs.Put(ctx, "del", []byte("payload")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := st.DecrementEntry(ctx, "del", "digest", time.Now()); err != nil {
		t.Fatalf("decrement: %v", err)
	}

	if err := st.DeleteEntry(ctx, "del"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, err := blobs.Exists(ctx, "del"); err != nil || ok {
		t.Fatalf("expected payload removed with entry, ok=%v err=%v", ok, err)
	}
	fetches, err := st.ListFetches(ctx, "del", 0)
	if err != nil {
		t.Fatalf("list fetches: %v", err)
	}
	if len(fetches) != 0 {
		t.Fatalf("expected audit rows removed, got %d", len(fetches))
	}

	err = st.DeleteEntry(ctx, "del")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestListEntriesOrdered(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		if _, err := st.InsertEntry(ctx, id, 1, time.Now()); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	entries, err := st.ListEntries(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"a", "b", "c"} {
		if entries[i].ID != want {
			t.Fatalf("entry %d: expected %s, got %s", i, want, entries[i].ID)
		}
	}
}

func TestSeedEntriesKeepsCounters(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	seeds := []SeedEntry{{ID: "s1", Budget: 2}, {ID: "s2", Budget: 2}}

	inserted, err := st.SeedEntries(ctx, seeds, time.Now())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("expected 2 inserted, got %d", inserted)
	}

	if _, err := st.DecrementEntry(ctx, "s1", "", time.Now()); err != nil {
		t.Fatalf("decrement: %v", err)
	}

	inserted, err = st.SeedEntries(ctx, append(seeds, SeedEntry{ID: "s3", Budget: 4}), time.Now())
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if inserted != 1 {
		t.Fatalf("expected only the new entry inserted, got %d", inserted)
	}

	got, err := st.LookupEntry(ctx, "s1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Remaining != 1 {
		t.Fatalf("reseed must not re-arm spent budget, got %d", got.Remaining)
	}

	if _, err := st.SeedEntries(ctx, []SeedEntry{{ID: "bad", Budget: 0}}, time.Now()); err == nil {
		t.Fatal("expected error for zero budget seed")
	}
	if missing, _ := st.LookupEntry(ctx, "bad"); missing != nil {
		t.Fatal("failed seed must roll back")
	}
}

func TestStoreInfo(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if _, err := st.InsertEntry(ctx, "i1", 1, time.Now()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := st.InsertEntry(ctx, "i2", 1, time.Now()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := st.Blobs(0).Put(ctx, "i1", []byte("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := st.DecrementEntry(ctx, "i1", "", time.Now()); err != nil {
		t.Fatalf("decrement: %v", err)
	}

	info, err := st.StoreInfo(ctx)
	if err != nil {
		t.Fatalf("store info: %v", err)
	}
	if info.SchemaVersion != 2 {
		t.Fatalf("expected schema version 2, got %d", info.SchemaVersion)
	}
	if info.TotalEntries != 2 || info.ExhaustedEntries != 1 || info.StoredPayloads != 1 {
		t.Fatalf("unexpected info: %#v", info)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	st, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := st.InsertEntry(ctx, "p", 3, time.Now()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := st.Blobs(0).Put(ctx, "p", []byte("durable")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := st.DecrementEntry(ctx, "p", "", time.Now()); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()

	got, err := st.LookupEntry(ctx, "p")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got == nil || got.Remaining != 2 {
		t.Fatalf("expected remaining 2 after reopen, got %#v", got)
	}
	payload, ok, err := st.Blobs(0).Get(ctx, "p")
	if err != nil || !ok {
		t.Fatalf("get after reopen: ok=%v err=%v", ok, err)
	}
	if string(payload) != "durable" {
		t.Fatalf("expected durable, got %q", payload)
	}
}

func TestOpenLocksStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	_, err = Open(path)
	if !errors.Is(err, ErrStoreLocked) {
		t.Fatalf("expected ErrStoreLocked, got %v", err)
	}
}

func TestOpenMemory(t *testing.T) {
	st, err := Open(MemoryPath)
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	defer st.Close()

	if _, err := st.InsertEntry(context.Background(), "m", 1, time.Now()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := st.LookupEntry(context.Background(), "m")
	if err != nil || got == nil {
		t.Fatalf("lookup: %#v %v", got, err)
	}
}
