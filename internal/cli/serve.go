package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gokatarajesh/timed-quiz/internal/app"
	"github.com/gokatarajesh/timed-quiz/internal/config"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the quiz API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cfg, err := config.Load(bootCtx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	instance, err := app.New(bootCtx, cfg)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}

	return instance.Run(ctx)
}
