package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"statsvault/internal/api"
	internalauth "statsvault/internal/auth"
	"statsvault/internal/config"
	"statsvault/internal/vault"
)

func newAdminCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative commands",
	}

	cmd.AddCommand(
		newAdminVaultCmd(cfg, jsonOutput, vault.CommandReset, "reset <id>", "Restore the fetch budget of one identifier", requireExactlyArgs(1, "id is required")),
		newAdminVaultCmd(cfg, jsonOutput, vault.CommandRevoke, "revoke <id>", "Remove one identifier and its payload", requireExactlyArgs(1, "id is required")),
		newAdminVaultCmd(cfg, jsonOutput, vault.CommandInspect, "inspect [id|all]", "Show budget state for one or all identifiers", cobra.MaximumNArgs(1)),
		newAdminVaultCmd(cfg, jsonOutput, vault.CommandProvision, "provision [id]", "Register a new identifier at the default budget", cobra.MaximumNArgs(1)),
		newAdminHashTokenCmd(jsonOutput),
	)
	return cmd
}

func newAdminVaultCmd(cfg *config.Config, jsonOutput *bool, command vault.Command, use, short string, args cobra.PositionalArgs) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := ""
			if len(args) > 0 {
				arg = strings.TrimSpace(args[0])
			}

			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				resp, err := client.Admin(cmd.Context(), command.String(), arg)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				if resp.Revoked {
					return writePlain("revoked %s\n", arg)
				}
				return writeEntries(resp.Entries)
			})
		},
	}
}

func newAdminHashTokenCmd(jsonOutput *bool) *cobra.Command {
	var (
		tokenStdin bool
		generate   bool
	)

	cmd := &cobra.Command{
		Use:   "hash-token",
		Short: "Print a bcrypt hash of an admin token for server.admin_token_hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := adminTokenInput(cmd.InOrStdin(), tokenStdin, generate)
			if err != nil {
				return err
			}
			hash, err := internalauth.HashToken(token)
			if err != nil {
				return err
			}

			if *jsonOutput {
				out := map[string]string{"hash": hash}
				if generate {
					out["token"] = token
				}
				return writeJSON(out)
			}
			if generate {
				if err := writePlain("token: %s\n", token); err != nil {
					return err
				}
			}
			return writePlain("hash: %s\n", hash)
		},
	}

	cmd.Flags().BoolVar(&tokenStdin, "token-stdin", false, "read the token from stdin")
	cmd.Flags().BoolVar(&generate, "generate", false, "generate a random token and print it with its hash")
	return cmd
}

func adminTokenInput(stdin io.Reader, fromStdin, generate bool) (string, error) {
	switch {
	case fromStdin && generate:
		return "", fmt.Errorf("--token-stdin and --generate are mutually exclusive")
	case generate:
		return internalauth.GenerateToken()
	case fromStdin:
		if stdin == nil {
			stdin = os.Stdin
		}
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return "", err
		}
		token := strings.TrimSpace(string(raw))
		if err := internalauth.ValidateToken(token); err != nil {
			return "", err
		}
		return token, nil
	default:
		return "", fmt.Errorf("one of --token-stdin or --generate is required")
	}
}
