package main

import (
	"github.com/spf13/cobra"

	"statsvault/internal/api"
	"statsvault/internal/config"
	"statsvault/internal/format"
)

func newInfoCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show registry and server info",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				resp, err := client.GetInfo(cmd.Context())
				if err != nil {
					return err
				}

				if *jsonOutput {
					return writeJSON(resp)
				}

				_ = writePlain("db_path: %s\n", resp.DBPath)
				_ = writePlain("schema_version: %d\n", resp.SchemaVersion)
				_ = writePlain("total_entries: %d\n", resp.TotalEntries)
				_ = writePlain("exhausted_entries: %d\n", resp.ExhaustedEntries)
				_ = writePlain("stored_payloads: %d\n", resp.StoredPayloads)
				_ = writePlain("push_policy: %s\n", resp.PushPolicy)
				_ = writePlain("blob_backend: %s\n", resp.BlobBackend)
				_ = writePlain("max_payload_bytes: %d\n", resp.MaxPayloadBytes)
				return writePlain("started_at: %s\n", format.Time(resp.StartedAt))
			})
		},
	}
	return cmd
}
