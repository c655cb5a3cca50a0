package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedFile_Records(t *testing.T) {
	seed := &SeedFile{
		Locations: []SeedLocation{
			{ID: 10, Name: "Irvine", Latitude: 33.68, Longitude: -117.83},
			{Name: "Tokyo"}, // referenced by position
		},
		Metrics: []SeedMetric{
			{Name: "temperature", DisplayName: "Temperature", Unit: "celsius"},
		},
		ClimateData: []SeedClimateData{
			{LocationID: 10, MetricID: 1, Date: "2024-01-01", Value: 5, Quality: "excellent"},
			{LocationID: 2, MetricID: 1, Date: "2024-01-02", Value: 7, Quality: "Poor"},
			{LocationID: 10, MetricID: 3, Date: "2024-01-03", Value: 1, Quality: "good"},
			{LocationID: 99, MetricID: 1, Date: "2024-01-04", Value: 1, Quality: "good"},
			{LocationID: 10, MetricID: 1, Date: "2024-01-05", Value: 1, Quality: "stellar"},
		},
	}

	records, errs := seed.Records()
	require.Len(t, records, 2)
	require.Len(t, errs, 3)

	first := records[0]
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, "Irvine", first.LocationName)
	assert.Equal(t, 33.68, first.Latitude)
	assert.Equal(t, "temperature", first.MetricName)
	assert.Equal(t, "Temperature", first.MetricDisplayName)
	assert.Equal(t, "celsius", first.Unit)
	assert.Equal(t, 1.0, first.QualityWeight)

	second := records[1]
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, "Tokyo", second.LocationName)
	assert.Equal(t, QualityPoor, second.Quality)
	assert.Equal(t, 0.3, second.QualityWeight)

	assert.Contains(t, errs[0].Error(), "unknown metric_id 3")
	assert.Contains(t, errs[1].Error(), "unknown location_id 99")
	assert.True(t, errors.Is(errs[2], ErrInvalidQuality))
}

func TestSeedFile_RecordsEmpty(t *testing.T) {
	records, errs := (&SeedFile{}).Records()
	assert.Empty(t, records)
	assert.Empty(t, errs)
}
