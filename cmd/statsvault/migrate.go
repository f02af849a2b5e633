package main

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"statsvault/internal/config"
	"statsvault/internal/store"

	_ "modernc.org/sqlite"
)

func newMigrateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		dryRun bool
		dbPath string
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run or inspect database schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfg.DBPath
			if strings.TrimSpace(dbPath) != "" {
				path = dbPath
			}

			if !dryRun {
				// Opening the store applies pending migrations.
				st, err := store.Open(path)
				if err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				if err := st.Close(); err != nil {
					return err
				}
			}

			plan, err := migrationStatus(path)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(plan)
			}
			return writeMigrationStatus(plan, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show pending migrations without applying")
	cmd.Flags().StringVarP(&dbPath, "database", "d", "", "database path (default: db_path from config)")
	return cmd
}

func migrationStatus(path string) (*store.MigrationStatus, error) {
	db, err := openRawDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	plan, err := store.MigrationPlan(db)
	if err != nil {
		return nil, fmt.Errorf("inspect migrations: %w", err)
	}
	return plan, nil
}

func writeMigrationStatus(plan *store.MigrationStatus, dryRun bool) error {
	if !dryRun {
		return writePlain("Migrations applied successfully (schema version %d).\n", plan.CurrentVersion)
	}
	if err := writePlain("Current version: %d\nAvailable version: %d\n", plan.CurrentVersion, plan.AvailableVersion); err != nil {
		return err
	}
	if len(plan.Pending) == 0 {
		return writePlain("No pending migrations.\n")
	}
	if err := writePlain("Pending migrations: %d\n", len(plan.Pending)); err != nil {
		return err
	}
	for _, m := range plan.Pending {
		if err := writePlain("  %d: %s\n", m.Version, m.Description); err != nil {
			return err
		}
	}
	return nil
}

func openRawDB(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}
	u := url.URL{Scheme: "file", Path: path}
	return sql.Open("sqlite", u.String())
}
