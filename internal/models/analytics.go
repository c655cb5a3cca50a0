package models

// QualityDistribution holds the fraction of observations carrying each label
type QualityDistribution struct {
	Poor         float64 `json:"poor"`
	Questionable float64 `json:"questionable"`
	Good         float64 `json:"good"`
	Excellent    float64 `json:"excellent"`
}

// Sum returns the total of all fractions (1.0 for any non-empty group)
func (d QualityDistribution) Sum() float64 {
	return d.Poor + d.Questionable + d.Good + d.Excellent
}

// SummaryResult holds quality-weighted statistics for one metric.
// Nil pointers mean the statistic is undefined and are rendered as JSON null.
type SummaryResult struct {
	Name                string               `json:"name"`
	Min                 *float64             `json:"min"`
	Max                 *float64             `json:"max"`
	Avg                 *float64             `json:"avg"`
	WeightedAvg         *float64             `json:"weighted_avg"`
	Unit                string               `json:"unit"`
	Count               int                  `json:"count"`
	QualityDistribution *QualityDistribution `json:"quality_distribution"`
}

// Direction of a fitted trend line
type Direction string

const (
	DirectionIncreasing Direction = "increasing"
	DirectionDecreasing Direction = "decreasing"
)

// Analysis names reported in TrendResult.Unavailable
const (
	AnalysisTrend       = "trend"
	AnalysisAnomalies   = "anomalies"
	AnalysisSeasonality = "seasonality"
)

// Anomaly is an observation above mean + 2 standard deviations
type Anomaly struct {
	Date      Date    `json:"date"`
	Value     float64 `json:"value"`
	Deviation float64 `json:"deviation"`
	Quality   Quality `json:"quality"`
}

// SeasonPattern summarises one season bucket
type SeasonPattern struct {
	Avg   float64 `json:"avg"`
	Trend string  `json:"trend"`
}

// Seasonality is the output of a seasonality detector
type Seasonality struct {
	Detected   bool                     `json:"detected"`
	Period     string                   `json:"period"`
	Confidence float64                  `json:"confidence"`
	Pattern    map[string]SeasonPattern `json:"pattern"`
}

// TrendResult is the trend analysis for one metric. Analyses that could not
// run are nil and listed in Unavailable.
type TrendResult struct {
	MetricName   string       `json:"metric_name"`
	Unit         string       `json:"unit"`
	Observations int          `json:"observations"`
	Direction    *Direction   `json:"direction"`
	Rate         *float64     `json:"rate"`
	Confidence   *float64     `json:"confidence"`
	Anomalies    []Anomaly    `json:"anomalies"`
	Seasonality  *Seasonality `json:"seasonality"`
	Unavailable  []string     `json:"unavailable,omitempty"`
}
