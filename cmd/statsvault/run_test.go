package main

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"statsvault/internal/api"
	"statsvault/internal/config"
	"statsvault/internal/provision"
	"statsvault/internal/store"
)

func testRunConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "vault.db")
	cfg.APIURL = "http://" + freeLoopbackAddr(t)
	return cfg
}

func freeLoopbackAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatalf("close listener: %v", err)
	}
	return addr
}

func writeTestSnapshot(t *testing.T, n int, budget int64) (string, *provision.Snapshot) {
	t.Helper()
	snapshot, err := provision.Generate(n, budget)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "snapshot.toml")
	if err := provision.WriteFile(path, snapshot); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	return path, snapshot
}

func TestSeedRegistryKeepsCounters(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "vault.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	snapshot := &provision.Snapshot{
		Version: provision.SnapshotVersion,
		Budget:  5,
		Entries: []provision.SnapshotEntry{{ID: "hello"}, {ID: "custom", Budget: 2}},
	}
	inserted, err := seedRegistry(ctx, st, snapshot)
	if err != nil || inserted != 2 {
		t.Fatalf("seed: inserted=%d err=%v", inserted, err)
	}

	custom, err := st.LookupEntry(ctx, "custom")
	if err != nil || custom == nil || custom.Budget != 2 {
		t.Fatalf("expected per-entry budget 2, got %+v (err %v)", custom, err)
	}
	if _, err := st.DecrementEntry(ctx, "hello", "", time.Now().UTC()); err != nil {
		t.Fatalf("decrement: %v", err)
	}

	inserted, err = seedRegistry(ctx, st, snapshot)
	if err != nil || inserted != 0 {
		t.Fatalf("reseed: inserted=%d err=%v", inserted, err)
	}
	hello, err := st.LookupEntry(ctx, "hello")
	if err != nil || hello == nil || hello.Remaining != 4 {
		t.Fatalf("expected counter to survive reseed, got %+v (err %v)", hello, err)
	}
}

func TestOpenBlobStoreBackends(t *testing.T) {
	cfg := testRunConfig(t)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	if _, err := openBlobStore(cfg, st); err != nil {
		t.Fatalf("sqlite backend: %v", err)
	}

	cfg.Blobs.Backend = "fs"
	if _, err := openBlobStore(cfg, st); err != nil {
		t.Fatalf("fs backend: %v", err)
	}

	cfg.Blobs.Backend = "s3"
	if _, err := openBlobStore(cfg, st); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

// serveUntilHealthy runs the server until /health answers, then cancels it
// and returns the shutdown error.
func serveUntilHealthy(t *testing.T, cfg config.Config, opts runOptions) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- runServer(ctx, cfg, opts)
	}()

	client := api.NewClient(cfg.APIURL)
	deadline := time.Now().Add(10 * time.Second)
	for {
		select {
		case err := <-done:
			t.Fatalf("server exited before serving: %v", err)
		default:
		}
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		err := client.Ping(pingCtx)
		pingCancel()
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never became healthy: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
		return nil
	}
}

func TestRunServerSeedsAndShutsDown(t *testing.T) {
	cfg := testRunConfig(t)
	snapshotPath, snapshot := writeTestSnapshot(t, 3, 4)

	if err := serveUntilHealthy(t, cfg, runOptions{snapshot: snapshotPath}); err != nil {
		t.Fatalf("run server: %v", err)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer st.Close()
	entries, err := st.ListEntries(context.Background())
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != len(snapshot.Entries) {
		t.Fatalf("expected %d seeded entries, got %d", len(snapshot.Entries), len(entries))
	}
}

func TestRunServerDatabaseFlagOverridesConfig(t *testing.T) {
	cfg := testRunConfig(t)
	snapshotPath, _ := writeTestSnapshot(t, 1, 1)
	override := filepath.Join(t.TempDir(), "override.db")

	if err := serveUntilHealthy(t, cfg, runOptions{snapshot: snapshotPath, db: override}); err != nil {
		t.Fatalf("run server: %v", err)
	}

	st, err := store.Open(override)
	if err != nil {
		t.Fatalf("open override store: %v", err)
	}
	defer st.Close()
	entries, err := st.ListEntries(context.Background())
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected override db to be seeded, got %d entries (err %v)", len(entries), err)
	}

	if _, err := os.Stat(cfg.DBPath); !os.IsNotExist(err) {
		t.Fatalf("expected configured db to stay untouched, stat err: %v", err)
	}
}

func TestRunServerCancelledBeforeSeeding(t *testing.T) {
	cfg := testRunConfig(t)
	snapshotPath, _ := writeTestSnapshot(t, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := runServer(ctx, cfg, runOptions{snapshot: snapshotPath})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestProvisionBudget(t *testing.T) {
	snapshot := &provision.Snapshot{Budget: 7}

	cfg := config.Default()
	if got := provisionBudget(cfg, snapshot); got != 7 {
		t.Fatalf("expected snapshot budget 7, got %d", got)
	}
	if got := provisionBudget(cfg, &provision.Snapshot{}); got != config.DefaultBudget {
		t.Fatalf("expected config default for budgetless snapshot, got %d", got)
	}

	path := filepath.Join(t.TempDir(), config.ConfigFileName)
	if err := config.SetKey(path, "vault.default_budget", "3"); err != nil {
		t.Fatalf("set key: %v", err)
	}
	t.Setenv("STATSVAULT_CONFIG_DIR", filepath.Dir(path))
	loaded, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if got := provisionBudget(*loaded, snapshot); got != 3 {
		t.Fatalf("expected explicit config budget 3, got %d", got)
	}
}

func TestRunRequiresSnapshotFlag(t *testing.T) {
	cfg := config.Default()
	root := newRootCmd(&cfg)
	root.SetArgs([]string{"run"})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), `"config"`) {
		t.Fatalf("expected required --config error, got %v", err)
	}
}

func TestRunServerFailsFast(t *testing.T) {
	cfg := testRunConfig(t)
	snapshotPath, _ := writeTestSnapshot(t, 1, 1)
	ctx := context.Background()

	if err := runServer(ctx, cfg, runOptions{snapshot: filepath.Join(t.TempDir(), "missing.toml")}); err == nil {
		t.Fatal("expected error for missing snapshot")
	}

	bad := cfg
	bad.Server.AdminTokenHash = "not-a-bcrypt-hash"
	if err := runServer(ctx, bad, runOptions{snapshot: snapshotPath}); err == nil {
		t.Fatal("expected error for invalid admin token hash")
	}

	held, err := store.Open(cfg.DBPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer held.Close()
	if err := runServer(ctx, cfg, runOptions{snapshot: snapshotPath}); err == nil {
		t.Fatal("expected error while another handle holds the store lock")
	}
}
