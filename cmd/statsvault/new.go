package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"statsvault/internal/provision"
	"statsvault/internal/vault"
)

const handoutSuffix = ".age"

type newOptions struct {
	count      int
	budget     int64
	file       string
	recipients []string
	force      bool
}

func newNewCmd(jsonOutput *bool) *cobra.Command {
	opts := newOptions{}

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Generate a registry snapshot with fresh identifiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := runNew(opts)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(result)
			}
			if err := writePlain("wrote %d identifiers (budget %d) to %s\n", result.Count, result.Budget, result.Path); err != nil {
				return err
			}
			if result.HandoutPath != "" {
				return writePlain("sealed identifiers for %d recipient(s) in %s\n", len(opts.recipients), result.HandoutPath)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.count, "number", "n", 0, "number of identifiers to generate (required)")
	cmd.Flags().Int64VarP(&opts.budget, "budget", "b", vault.DefaultBudget, "fetch budget per identifier")
	cmd.Flags().StringVarP(&opts.file, "file", "f", provision.DefaultSnapshotPath, "snapshot path (.toml, .yaml or .json)")
	cmd.Flags().StringSliceVar(&opts.recipients, "recipient", nil, "age recipient to seal the identifier list for (repeatable)")
	cmd.Flags().BoolVar(&opts.force, "force", false, "overwrite an existing snapshot")
	_ = cmd.MarkFlagRequired("number")
	return cmd
}

type newResult struct {
	Path        string `json:"path"`
	HandoutPath string `json:"handout_path,omitempty"`
	Count       int    `json:"count"`
	Budget      int64  `json:"budget"`
}

func runNew(opts newOptions) (newResult, error) {
	path := strings.TrimSpace(opts.file)
	if path == "" {
		return newResult{}, fmt.Errorf("--file must not be empty")
	}
	if !opts.force {
		if _, err := os.Stat(path); err == nil {
			return newResult{}, fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	snapshot, err := provision.Generate(opts.count, opts.budget)
	if err != nil {
		return newResult{}, err
	}
	if err := provision.WriteFile(path, snapshot); err != nil {
		return newResult{}, err
	}
	result := newResult{Path: path, Count: len(snapshot.Entries), Budget: snapshot.Budget}

	if len(opts.recipients) > 0 {
		sealed, err := provision.SealHandout(snapshot, opts.recipients)
		if err != nil {
			return newResult{}, err
		}
		result.HandoutPath = path + handoutSuffix
		if err := os.WriteFile(result.HandoutPath, sealed, 0o600); err != nil {
			return newResult{}, fmt.Errorf("write handout: %w", err)
		}
	}

	slog.Default().With("component", "provision").Info("generated snapshot",
		"path", path, "count", result.Count, "budget", result.Budget)
	return result, nil
}
