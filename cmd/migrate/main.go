package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ecovision/internal/config"
	"ecovision/internal/migrations"
	"ecovision/pkg/logging"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply or roll back the EcoVision database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRunner(func(r *migrations.Runner) error {
					return r.Up(cmd.Context())
				})
			},
		},
		downCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRunner(func(r *migrations.Runner) error {
					v, dirty, err := r.Version()
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", v, dirty)
					return nil
				})
			},
		},
	)

	return root
}

func downCommand() *cobra.Command {
	var steps int
	var all bool

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if all {
				steps = 0
			} else if steps < 1 {
				return fmt.Errorf("--steps must be at least 1, or pass --all")
			}
			return withRunner(func(r *migrations.Runner) error {
				return r.Down(cmd.Context(), steps)
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.Flags().BoolVar(&all, "all", false, "roll back every migration, dropping the schema")

	return cmd
}

func withRunner(fn func(*migrations.Runner) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := logging.NewStructuredLogger("ecovision-migrate", "1.0.0", cfg.LogLevel())
	defer logger.Sync()

	runner, err := migrations.Open(cfg.DatabaseConfig().DSN(), logger)
	if err != nil {
		return err
	}
	defer runner.Close()

	return fn(runner)
}
