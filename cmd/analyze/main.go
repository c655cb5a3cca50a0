package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ecovision/internal/analytics"
	"ecovision/internal/config"
	"ecovision/internal/models"
	"ecovision/internal/repository"
	"ecovision/internal/services"
	"ecovision/pkg/logging"
)

// filterFlags mirrors the API query parameters
type filterFlags struct {
	file             string
	locationID       int64
	startDate        string
	endDate          string
	metric           string
	qualityThreshold string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Analysis failed: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var flags filterFlags

	root := &cobra.Command{
		Use:           "analyze",
		Short:         "Run summary and trend analytics over a seed file without a database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.file, "file", "", "seed JSON file (default: SEED_FILE)")
	root.PersistentFlags().Int64Var(&flags.locationID, "location-id", 0, "only this location")
	root.PersistentFlags().StringVar(&flags.startDate, "start-date", "", "inclusive start date (YYYY-MM-DD)")
	root.PersistentFlags().StringVar(&flags.endDate, "end-date", "", "inclusive end date (YYYY-MM-DD)")
	root.PersistentFlags().StringVar(&flags.metric, "metric", "", "metric name, case-insensitive")
	root.PersistentFlags().StringVar(&flags.qualityThreshold, "quality-threshold", "", "minimum quality label")

	var page, limit int
	summary := &cobra.Command{
		Use:   "summary",
		Short: "Quality-weighted statistics per metric",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := loadRecords(cmd, flags)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), models.Paginate(analytics.Summarize(records), page, limit))
		},
	}
	summary.Flags().IntVar(&page, "page", models.DefaultPage, "page number, 1-based")
	summary.Flags().IntVar(&limit, "limit", models.DefaultPerPage, "metrics per page")

	trends := &cobra.Command{
		Use:   "trends",
		Short: "Trend, anomaly and seasonality analysis per metric",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := loadRecords(cmd, flags)
			if err != nil {
				return err
			}

			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			opts, err := cfg.AnalyzerOptions()
			if err != nil {
				return err
			}

			results, err := analytics.NewAnalyzer(opts...).Analyze(cmd.Context(), records)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), results)
		},
	}

	root.AddCommand(summary, trends)
	return root
}

// loadRecords decodes the seed file and applies the filter flags
func loadRecords(cmd *cobra.Command, flags filterFlags) ([]models.ClimateRecord, error) {
	ctx := cmd.Context()
	logger := logging.NewStructuredLogger("ecovision-analyze", "1.0.0", logging.WarnLevel)
	logger.SetOutput(cmd.ErrOrStderr())

	if flags.file == "" {
		flags.file = os.Getenv("SEED_FILE")
	}
	if flags.file == "" {
		return nil, fmt.Errorf("no seed file: pass --file or set SEED_FILE")
	}

	filter, err := buildFilter(cmd, flags)
	if err != nil {
		return nil, err
	}

	seed, err := services.LoadSeedFile(flags.file)
	if err != nil {
		return nil, err
	}

	records, errs := seed.Records()
	for _, e := range errs {
		logger.Warn(ctx, "[ANALYZE_SKIP] Skipping seed entry", logging.Fields{"error": e.Error()})
	}

	return filter.Apply(records), nil
}

func buildFilter(cmd *cobra.Command, flags filterFlags) (*repository.ClimateFilter, error) {
	var params repository.FilterParams
	set := cmd.Flags().Changed

	if set("location-id") {
		params.LocationID = &flags.locationID
	}
	if set("start-date") {
		t, err := parseDateFlag("start-date", flags.startDate)
		if err != nil {
			return nil, err
		}
		params.StartDate = &t
	}
	if set("end-date") {
		t, err := parseDateFlag("end-date", flags.endDate)
		if err != nil {
			return nil, err
		}
		params.EndDate = &t
	}
	if set("metric") {
		params.MetricName = &flags.metric
	}
	if set("quality-threshold") {
		params.QualityThreshold = &flags.qualityThreshold
	}

	return repository.BuildFilter(params)
}

func parseDateFlag(name, value string) (time.Time, error) {
	d, err := models.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q, expected YYYY-MM-DD", name, value)
	}
	return d.Time, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
