package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"academy-ledger-service/internal/config"
	"academy-ledger-service/internal/domain"
	"academy-ledger-service/pkg/logger"
	"github.com/spf13/cobra"
)

// NewQuizzesCmd groups quiz content subcommands.
func NewQuizzesCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quizzes",
		Short: "Manage quiz definitions",
	}
	cmd.AddCommand(newPublishQuizCmd(configPath))
	return cmd
}

func newPublishQuizCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Store a quiz definition from a JSON file and evict its cached copy",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var quiz domain.Quiz
			if err := json.Unmarshal(raw, &quiz); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}

			cfg, err := config.LoadWithEnv(*configPath)
			if err != nil {
				return err
			}
			d, err := newDeps(ctx, cfg, logger.New(cfg.Env))
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.service.PublishQuiz(ctx, quiz); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"id": quiz.ID, "questions": len(quiz.Questions)})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to the quiz JSON")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
