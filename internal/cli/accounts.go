package cli

import (
	"encoding/json"
	"io"

	"academy-ledger-service/internal/config"
	"academy-ledger-service/pkg/logger"
	"github.com/spf13/cobra"
)

// NewAccountsCmd groups account administration subcommands.
func NewAccountsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage learner XP accounts",
	}
	cmd.AddCommand(newOpenAccountCmd(configPath))
	return cmd
}

func newOpenAccountCmd(configPath *string) *cobra.Command {
	var userID, name string
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open a zero-balance account for a learner (no-op if it exists)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.LoadWithEnv(*configPath)
			if err != nil {
				return err
			}
			d, err := newDeps(ctx, cfg, logger.New(cfg.Env))
			if err != nil {
				return err
			}
			defer d.Close()

			account, err := d.service.OpenAccount(ctx, userID, name)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), account)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
