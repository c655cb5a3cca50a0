package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"ecovision/internal/config"
	"ecovision/internal/migrations"
	"ecovision/internal/repository"
	"ecovision/internal/services"
	"ecovision/pkg/database"
	"ecovision/pkg/logging"
	"ecovision/pkg/metrics"
)

const maxPrintedErrors = 10

type options struct {
	file      string
	batchSize int
	migrate   bool
	reset     bool
}

func main() {
	var opts options

	cmd := &cobra.Command{
		Use:           "seeder",
		Short:         "Load a locations/metrics/climate_data seed document into PostgreSQL",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.file, "file", "", "seed JSON file (default: SEED_FILE)")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "observations per insert batch (default: SEED_BATCH_SIZE)")
	cmd.Flags().BoolVar(&opts.migrate, "migrate", false, "apply pending migrations before seeding")
	cmd.Flags().BoolVar(&opts.reset, "reset", false, "truncate existing locations, metrics and climate data first")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Seeding failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if opts.file == "" {
		opts.file = cfg.Seed.File
	}
	if opts.file == "" {
		return fmt.Errorf("no seed file: pass --file or set SEED_FILE")
	}
	if opts.batchSize <= 0 {
		opts.batchSize = cfg.Seed.BatchSize
	}

	logger := logging.NewStructuredLogger("ecovision-seeder", "1.0.0", cfg.LogLevel())
	defer logger.Sync()

	logger.Info(ctx, "[SEEDER_START] Starting seed", logging.Fields{
		"seed_file":  opts.file,
		"batch_size": opts.batchSize,
		"migrate":    opts.migrate,
		"reset":      opts.reset,
	})

	metricsCollector := metrics.NewCollector("ecovision_seeder", prometheus.NewRegistry())

	dbConfig := cfg.DatabaseConfig()
	if opts.migrate {
		runner, err := migrations.Open(dbConfig.DSN(), logger)
		if err != nil {
			return err
		}
		err = runner.Up(ctx)
		runner.Close()
		if err != nil {
			return err
		}
	}

	db, err := database.NewPostgresDB(dbConfig, logger, metricsCollector)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	seeder := services.NewSeedService(repository.NewClimateRepository(db, logger, metricsCollector), logger, metricsCollector)
	if opts.reset {
		if err := seeder.Reset(ctx); err != nil {
			return err
		}
	}
	result, err := seeder.Seed(ctx, opts.file, opts.batchSize)
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

func printResult(result *services.SeedResult) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("SEED COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Locations:          %d\n", result.LocationsCreated)
	fmt.Printf("Metrics:            %d\n", result.MetricsCreated)
	fmt.Printf("Total Records:      %d\n", result.TotalRecords)
	fmt.Printf("Successful Records: %d\n", result.SuccessfulRecords)
	fmt.Printf("Failed Records:     %d\n", result.FailedRecords)
	fmt.Printf("Duration:           %v\n", result.Duration)
	if secs := result.Duration.Seconds(); secs > 0 {
		fmt.Printf("Records/Second:     %.2f\n", float64(result.SuccessfulRecords)/secs)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i == maxPrintedErrors {
				fmt.Printf("  ... and %d more errors\n", len(result.Errors)-maxPrintedErrors)
				break
			}
			fmt.Printf("  - %s\n", errMsg)
		}
	}
}
