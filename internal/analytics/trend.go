package analytics

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"ecovision/internal/models"
)

// ErrInsufficientData is returned when a series is too short for an analysis.
var ErrInsufficientData = errors.New("insufficient data")

const (
	defaultPrecision   = 2
	defaultConcurrency = 4
	anomalySigmas      = 2.0
)

// Regression is an ordinary least squares fit of value on series index.
type Regression struct {
	Slope     float64
	Intercept float64
	RSquared  float64
}

// Fit regresses values on their zero-based position. At least two points are
// required. A constant series has R² 0.
func Fit(values []float64) (Regression, error) {
	if len(values) < 2 {
		return Regression{}, ErrInsufficientData
	}

	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}

	intercept, slope := stat.LinearRegression(xs, values, nil, false)
	reg := Regression{Slope: slope, Intercept: intercept}

	if stat.Variance(values, nil) > 0 {
		reg.RSquared = stat.RSquared(xs, values, nil, intercept, slope)
	}

	return reg, nil
}

// Anomalies returns the indexes of values lying at or beyond mean + 2σ
// (population σ), together with σ. Only the upper tail is flagged and a
// series with zero spread has no anomalies.
func Anomalies(values []float64) ([]int, float64, error) {
	if len(values) == 0 {
		return nil, 0, ErrInsufficientData
	}

	mean, std := stat.PopMeanStdDev(values, nil)
	idx := []int{}
	if std == 0 {
		return idx, 0, nil
	}

	for i, v := range values {
		if v-mean >= anomalySigmas*std {
			idx = append(idx, i)
		}
	}

	return idx, std, nil
}

// Analyzer computes per-metric trend, anomaly and seasonality results.
type Analyzer struct {
	detector    SeasonalityDetector
	precision   int
	concurrency int
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithDetector replaces the default MonthlyPatternDetector.
func WithDetector(d SeasonalityDetector) Option {
	return func(a *Analyzer) { a.detector = d }
}

// WithPrecision sets the decimal places reported for rate, confidence,
// deviation and season averages. A negative value disables rounding.
func WithPrecision(digits int) Option {
	return func(a *Analyzer) { a.precision = digits }
}

// WithConcurrency bounds how many metrics are analysed in parallel.
func WithConcurrency(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// NewAnalyzer creates an analyzer with meteorological seasons and two
// decimal places unless overridden.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		detector:    NewMonthlyPatternDetector(MeteorologicalSeasons),
		precision:   defaultPrecision,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze returns a TrendResult per metric name. A metric whose series is too
// short for one analysis still gets the others; the only error is ctx
// cancellation.
func (a *Analyzer) Analyze(ctx context.Context, records []models.ClimateRecord) (map[string]models.TrendResult, error) {
	groups := groupByMetric(records)
	results := make(map[string]models.TrendResult, len(groups))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for _, grp := range groups {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			res := a.analyzeSeries(grp)

			mu.Lock()
			results[grp.name] = res
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func (a *Analyzer) analyzeSeries(grp *metricGroup) models.TrendResult {
	series := make([]models.ClimateRecord, len(grp.records))
	copy(series, grp.records)
	sort.SliceStable(series, func(i, j int) bool {
		if !series[i].Date.Equal(series[j].Date.Time) {
			return series[i].Date.Before(series[j].Date.Time)
		}
		return series[i].ID < series[j].ID
	})

	values := make([]float64, len(series))
	for i, rec := range series {
		values[i] = rec.Value
	}

	result := models.TrendResult{
		MetricName:   grp.name,
		Unit:         grp.unit,
		Observations: len(series),
	}

	if reg, err := Fit(values); err == nil {
		dir := models.DirectionDecreasing
		if reg.Slope > 0 {
			dir = models.DirectionIncreasing
		}
		rate := a.round(reg.Slope)
		confidence := a.round(reg.RSquared)
		result.Direction = &dir
		result.Rate = &rate
		result.Confidence = &confidence
	} else {
		result.Unavailable = append(result.Unavailable, models.AnalysisTrend)
	}

	if idx, std, err := Anomalies(values); err == nil {
		result.Anomalies = make([]models.Anomaly, 0, len(idx))
		for _, i := range idx {
			result.Anomalies = append(result.Anomalies, models.Anomaly{
				Date:      series[i].Date,
				Value:     series[i].Value,
				Deviation: a.round(std),
				Quality:   series[i].Quality,
			})
		}
	} else {
		result.Unavailable = append(result.Unavailable, models.AnalysisAnomalies)
	}

	if a.detector != nil {
		if season, err := a.detector.Detect(series); err == nil && season != nil {
			for name, p := range season.Pattern {
				p.Avg = a.round(p.Avg)
				season.Pattern[name] = p
			}
			result.Seasonality = season
		} else {
			result.Unavailable = append(result.Unavailable, models.AnalysisSeasonality)
		}
	} else {
		result.Unavailable = append(result.Unavailable, models.AnalysisSeasonality)
	}

	return result
}

func (a *Analyzer) round(v float64) float64 {
	if a.precision < 0 {
		return v
	}
	scale := math.Pow(10, float64(a.precision))
	return math.Round(v*scale) / scale
}
