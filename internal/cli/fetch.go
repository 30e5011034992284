package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gokatarajesh/timed-quiz/internal/config"
	"github.com/gokatarajesh/timed-quiz/internal/logging"
	"github.com/gokatarajesh/timed-quiz/internal/question"
	"github.com/gokatarajesh/timed-quiz/internal/question/external"
)

func newFetchCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch one normalized question batch from the provider and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, err := config.Load(ctx)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cmd.Flags().Changed("count") {
				count = cfg.Quiz.QuestionCount
			}

			logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Name, cfg.Env, cfg.LogLevel)
			return fetchBatch(ctx, cmd, cfg, count, logger)
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "number of questions (defaults to QUIZ_QUESTION_COUNT)")
	return cmd
}

func fetchBatch(ctx context.Context, cmd *cobra.Command, cfg *config.App, count int, logger zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Questions.FetchTimeout)
	defer cancel()

	source := question.NewSource(
		external.NewOpenTDBClient(cfg.Questions.BaseURL, nil),
		nil,
		question.Options{
			Category:     cfg.Questions.Category,
			Difficulty:   cfg.Questions.Difficulty,
			Type:         cfg.Questions.Type,
			MaxRetries:   cfg.Questions.MaxRetries,
			RetryDelay:   cfg.Questions.RetryDelay,
			FetchTimeout: cfg.Questions.FetchTimeout,
		},
		nil,
		logger,
	)

	qs, err := source.Fetch(ctx, count)
	if err != nil {
		return fmt.Errorf("%s: %w", question.Kind(err), err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(qs)
}
