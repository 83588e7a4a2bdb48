package cli

import (
	"fmt"

	"academy-ledger-service/internal/config"
	"academy-ledger-service/internal/domain"
	"academy-ledger-service/pkg/logger"
	"github.com/spf13/cobra"
)

// NewLedgerCmd groups XP ledger maintenance subcommands.
func NewLedgerCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and adjust the XP ledger",
	}
	cmd.AddCommand(newVerifyLedgerCmd(configPath))
	cmd.AddCommand(newAdjustLedgerCmd(configPath))
	return cmd
}

func newVerifyLedgerCmd(configPath *string) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Replay a user's ledger and compare it with the stored balance",
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

			report, err := d.service.VerifyLedger(ctx, userID)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.Valid {
				return fmt.Errorf("ledger for %s is inconsistent: %s", userID, report.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newAdjustLedgerCmd(configPath *string) *cobra.Command {
	var (
		userID   string
		amount   int
		activity string
		reason   string
	)
	cmd := &cobra.Command{
		Use:   "adjust",
		Short: "Apply a bonus or penalty to a user's balance",
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

			entry, err := d.service.AdjustXP(ctx, userID, amount, domain.ActivityType(activity), reason)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entry)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().IntVar(&amount, "amount", 0, "XP amount; penalties are always deducted")
	cmd.Flags().StringVar(&activity, "activity", string(domain.ActivityBonus), "bonus, penalty, signup_bonus or blog_poll_answered")
	cmd.Flags().StringVar(&reason, "reason", "", "description recorded on the ledger entry")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}
