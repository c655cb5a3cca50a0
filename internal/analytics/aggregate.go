// Package analytics derives quality-weighted summaries and trend analyses
// from climate records. Everything here is pure computation over rows that
// have already been fetched and filtered.
package analytics

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"ecovision/internal/models"
)

// metricGroup is the slice of records sharing one metric name
type metricGroup struct {
	name    string
	unit    string
	records []models.ClimateRecord
}

// groupByMetric partitions records by metric name, ordered by name. Summary
// and trend results are both keyed by name, so records of distinct metric
// ids carrying the same name form a single series. Record order inside a
// group is preserved.
func groupByMetric(records []models.ClimateRecord) []*metricGroup {
	index := make(map[string]*metricGroup)
	var groups []*metricGroup

	for _, rec := range records {
		g, ok := index[rec.MetricName]
		if !ok {
			g = &metricGroup{name: rec.MetricName, unit: rec.Unit}
			index[rec.MetricName] = g
			groups = append(groups, g)
		}
		g.records = append(g.records, rec)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].name < groups[j].name
	})

	return groups
}

// weightFor returns the canonical weight of the record's label, falling back
// to the stored column for labels the table does not know.
func weightFor(rec models.ClimateRecord) float64 {
	if w, err := models.WeightOf(rec.Quality); err == nil {
		return w
	}
	return rec.QualityWeight
}

// Summarize returns one SummaryResult per metric present in records, ordered
// by metric name. An empty input yields an empty, non-nil slice.
func Summarize(records []models.ClimateRecord) []models.SummaryResult {
	groups := groupByMetric(records)
	results := make([]models.SummaryResult, 0, len(groups))

	for _, g := range groups {
		results = append(results, summarizeGroup(g))
	}

	return results
}

func summarizeGroup(g *metricGroup) models.SummaryResult {
	result := models.SummaryResult{
		Name:  g.name,
		Unit:  g.unit,
		Count: len(g.records),
	}

	if len(g.records) == 0 {
		return result
	}

	values := make([]float64, len(g.records))
	weights := make([]float64, len(g.records))
	counts := make(map[models.Quality]int, 4)

	for i, rec := range g.records {
		values[i] = rec.Value
		weights[i] = weightFor(rec)
		counts[rec.Quality]++
	}

	minV := floats.Min(values)
	maxV := floats.Max(values)
	avg := stat.Mean(values, nil)
	result.Min = &minV
	result.Max = &maxV
	result.Avg = &avg

	if floats.Sum(weights) > 0 {
		wavg := stat.Mean(values, weights)
		result.WeightedAvg = &wavg
	}

	total := float64(len(g.records))
	result.QualityDistribution = &models.QualityDistribution{
		Poor:         float64(counts[models.QualityPoor]) / total,
		Questionable: float64(counts[models.QualityQuestionable]) / total,
		Good:         float64(counts[models.QualityGood]) / total,
		Excellent:    float64(counts[models.QualityExcellent]) / total,
	}

	return result
}
