// Package cli wires the command-line entry points.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultEnvFile = "configs/.env"

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "quiz",
		Short:         "Timed multiple-choice quiz service backed by the Open Trivia DB",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(envFile, cmd.Flags().Changed("env-file"))
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "dotenv file to load before reading configuration (skipped in production)")
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newFetchCmd())
	return cmd
}

// loadEnvFile loads path into the environment. A missing default file is not
// an error; a missing file named explicitly is.
func loadEnvFile(path string, explicit bool) error {
	if os.Getenv("APP_ENV") == "production" && !explicit {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
