package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	internalauth "statsvault/internal/auth"
	"statsvault/internal/blobstore"
	"statsvault/internal/config"
	"statsvault/internal/provision"
	"statsvault/internal/server"
	"statsvault/internal/store"
	"statsvault/internal/vault"
)

const metricsSyncInterval = time.Minute

type runOptions struct {
	snapshot string
	db       string
}

func newRunCmd(cfg *config.Config) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Seed the registry from a snapshot and serve the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, *cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.snapshot, "config", "c", "", "registry snapshot to seed from (required)")
	cmd.Flags().StringVarP(&opts.db, "database", "d", "", "database path (default: db_path from config)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runServer(ctx context.Context, cfg config.Config, opts runOptions) error {
	logger := slog.Default().With("component", "server")

	if db := strings.TrimSpace(opts.db); db != "" {
		cfg.DBPath = db
	}
	if cfg.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	addr, err := server.ListenAddr(cfg.APIURL)
	if err != nil {
		return err
	}
	if cfg.Server.AdminTokenHash != "" {
		if err := internalauth.ValidateTokenHash(cfg.Server.AdminTokenHash); err != nil {
			return err
		}
	}

	snapshot, err := provision.Load(opts.snapshot)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	logger.Info("opening database", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	seeded, err := seedRegistry(ctx, st, snapshot)
	if err != nil {
		return err
	}
	logger.Info("seeded registry", "snapshot", opts.snapshot, "entries", len(snapshot.Entries), "inserted", seeded)

	blobs, err := openBlobStore(cfg, st)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	coord, err := vault.NewCoordinator(st, blobs, vault.Options{
		DefaultBudget:   provisionBudget(cfg, snapshot),
		MaxPayloadBytes: cfg.Vault.MaxPayloadBytes,
		PushPolicy:      vault.PushPolicy(cfg.Vault.PushPolicy),
		PurgeOnExhaust:  cfg.Vault.PurgeOnExhaust,
		Registerer:      registry,
	})
	if err != nil {
		return err
	}
	if err := coord.SyncMetrics(ctx); err != nil {
		return fmt.Errorf("sync metrics: %w", err)
	}

	srv := server.New(addr, coord, server.Options{
		Info:            st,
		DBPath:          cfg.DBPath,
		BlobBackend:     cfg.Blobs.Backend,
		MaxPayloadBytes: cfg.Vault.MaxPayloadBytes,
		AdminTokenHash:  cfg.Server.AdminTokenHash,
		TLSCertFile:     cfg.Server.TLSCertFile,
		TLSKeyFile:      cfg.Server.TLSKeyFile,
		Gatherer:        registry,
		Logger:          logger,
	})
	if cfg.Server.AdminTokenHash == "" {
		logger.Warn("admin routes disabled; set server.admin_token_hash to enable them")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	g.Go(func() error {
		syncMetricsPeriodically(gctx, coord, logger)
		return nil
	})
	return g.Wait()
}

// seedRegistry inserts snapshot entries that are not yet in the registry.
// Existing entries keep their counters across restarts.
func seedRegistry(ctx context.Context, st *store.Store, snapshot *provision.Snapshot) (int, error) {
	seeds := make([]store.SeedEntry, 0, len(snapshot.Entries))
	for _, entry := range snapshot.Entries {
		seeds = append(seeds, store.SeedEntry{ID: entry.ID, Budget: snapshot.EntryBudget(entry)})
	}
	inserted, err := st.SeedEntries(ctx, seeds, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("seed registry: %w", err)
	}
	return inserted, nil
}

// provisionBudget is the budget for ids added through admin provision. The
// snapshot budget applies unless vault.default_budget is set in a config file.
func provisionBudget(cfg config.Config, snapshot *provision.Snapshot) int64 {
	if cfg.IsSetInFile("vault.default_budget") || snapshot == nil || snapshot.Budget <= 0 {
		return cfg.Vault.DefaultBudget
	}
	return snapshot.Budget
}

func openBlobStore(cfg config.Config, st *store.Store) (blobstore.Store, error) {
	switch cfg.Blobs.Backend {
	case "", "sqlite":
		return st.Blobs(cfg.Vault.MaxPayloadBytes), nil
	case "fs":
		root := cfg.BlobRoot()
		slog.Default().With("component", "server").Info("using filesystem blob store", "root", root)
		fs, err := blobstore.NewLocalFS(root, cfg.Vault.MaxPayloadBytes)
		if err != nil {
			return nil, fmt.Errorf("open blob store: %w", err)
		}
		return fs, nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Blobs.Backend)
	}
}

func syncMetricsPeriodically(ctx context.Context, coord *vault.Coordinator, logger *slog.Logger) {
	ticker := time.NewTicker(metricsSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := coord.SyncMetrics(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("sync metrics failed", "error", err)
			}
		}
	}
}
