package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taskflow/internal/config"
	"taskflow/internal/logger"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

func main() {
	var cfg config.Config

	root := &cobra.Command{
		Use:           "taskflow",
		Short:         "Personal task manager with an HTTP API and a Telegram bot",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return codeError(2, "config: %s", err)
			}
			if _, err := logger.Init(loaded.Log); err != nil {
				return codeError(2, "logger: %s", err)
			}
			cfg = loaded
			return nil
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and, when TELEGRAM_TOKEN is set, the bot",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Create the demo account when the database has no users",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSeed(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "delete-user <username>",
			Short: "Delete an account together with all of its tasks",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDeleteUser(cmd.Context(), cfg, args[0])
			},
		},
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
