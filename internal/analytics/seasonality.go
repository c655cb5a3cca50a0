package analytics

import (
	"fmt"
	"strings"
	"time"

	"ecovision/internal/models"
)

// SeasonalityDetector reports the seasonal pattern of one metric series.
// Implementations return ErrInsufficientData when the series cannot support
// a verdict.
type SeasonalityDetector interface {
	Detect(series []models.ClimateRecord) (*models.Seasonality, error)
}

// SeasonMap assigns calendar months to named season buckets.
type SeasonMap map[string][]time.Month

const (
	SeasonMappingMeteorological = "meteorological"
	SeasonMappingLegacy         = "legacy"
)

// MeteorologicalSeasons is the conventional northern-hemisphere DJF/MAM/JJA/SON mapping.
var MeteorologicalSeasons = SeasonMap{
	"winter": {time.December, time.January, time.February},
	"spring": {time.March, time.April, time.May},
	"summer": {time.June, time.July, time.August},
	"fall":   {time.September, time.October, time.November},
}

// LegacySeasons maps each season to a single month, matching the responses of
// the first version of the API.
var LegacySeasons = SeasonMap{
	"winter": {time.January},
	"spring": {time.February},
	"summer": {time.March},
	"fall":   {time.April},
}

// SeasonMapFor resolves a configured mapping name.
func SeasonMapFor(name string) (SeasonMap, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SeasonMappingMeteorological:
		return MeteorologicalSeasons, nil
	case SeasonMappingLegacy:
		return LegacySeasons, nil
	default:
		return nil, fmt.Errorf("unknown season mapping %q", name)
	}
}

const (
	seasonTrendIncreasing = "increasing"
	seasonTrendStable     = "stable"
)

// MonthlyPatternDetector averages values per calendar month and folds the
// monthly means into season buckets. It does not test whether the pattern is
// statistically significant: Detected, Period and Confidence are fixed and
// only MinMonths gates the verdict.
// TODO: replace with a seasonal decomposition test once per-month sample
// counts are large enough to support one.
type MonthlyPatternDetector struct {
	Seasons       SeasonMap
	WarmThreshold float64
	MinMonths     int
	Period        string
	Confidence    float64
}

// NewMonthlyPatternDetector returns a detector with the API's default
// heuristics: yearly period, confidence 0.92, warm above 15.
func NewMonthlyPatternDetector(seasons SeasonMap) *MonthlyPatternDetector {
	if seasons == nil {
		seasons = MeteorologicalSeasons
	}
	return &MonthlyPatternDetector{
		Seasons:       seasons,
		WarmThreshold: 15,
		Period:        "yearly",
		Confidence:    0.92,
	}
}

// Detect implements SeasonalityDetector.
func (d *MonthlyPatternDetector) Detect(series []models.ClimateRecord) (*models.Seasonality, error) {
	if len(series) == 0 {
		return nil, ErrInsufficientData
	}

	sums := make(map[time.Month]float64)
	counts := make(map[time.Month]int)
	for _, rec := range series {
		m := rec.Date.Month()
		sums[m] += rec.Value
		counts[m]++
	}

	if len(counts) < d.MinMonths {
		return nil, fmt.Errorf("%w: %d distinct months, need %d", ErrInsufficientData, len(counts), d.MinMonths)
	}

	monthly := make(map[time.Month]float64, len(counts))
	for m, n := range counts {
		monthly[m] = sums[m] / float64(n)
	}

	pattern := make(map[string]models.SeasonPattern)
	for season, months := range d.Seasons {
		var total float64
		var present int
		for _, m := range months {
			if avg, ok := monthly[m]; ok {
				total += avg
				present++
			}
		}
		if present == 0 {
			continue
		}

		avg := total / float64(present)
		trend := seasonTrendStable
		if avg > d.WarmThreshold {
			trend = seasonTrendIncreasing
		}
		pattern[season] = models.SeasonPattern{Avg: avg, Trend: trend}
	}

	return &models.Seasonality{
		Detected:   true,
		Period:     d.Period,
		Confidence: d.Confidence,
		Pattern:    pattern,
	}, nil
}
