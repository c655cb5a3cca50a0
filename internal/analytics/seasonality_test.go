package analytics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecovision/internal/models"
)

func TestMonthlyPatternDetector_JanuaryOnly(t *testing.T) {
	series := []models.ClimateRecord{
		rec(1, 1, "temperature", "2024-01-03", 4, models.QualityGood),
		rec(2, 1, "temperature", "2024-01-17", 6, models.QualityGood),
		rec(3, 1, "temperature", "2025-01-09", 8, models.QualityGood),
	}

	for name, seasons := range map[string]SeasonMap{
		SeasonMappingMeteorological: MeteorologicalSeasons,
		SeasonMappingLegacy:         LegacySeasons,
	} {
		t.Run(name, func(t *testing.T) {
			got, err := NewMonthlyPatternDetector(seasons).Detect(series)
			require.NoError(t, err)
			require.Len(t, got.Pattern, 1)
			assert.Equal(t, models.SeasonPattern{Avg: 6, Trend: "stable"}, got.Pattern["winter"])
		})
	}
}

func TestMonthlyPatternDetector_AveragesMonthlyMeans(t *testing.T) {
	// summer: June mean 10, July mean 30 -> season mean 20, not the row mean
	series := []models.ClimateRecord{
		rec(1, 1, "temperature", "2024-06-01", 10, models.QualityGood),
		rec(2, 1, "temperature", "2024-07-01", 20, models.QualityGood),
		rec(3, 1, "temperature", "2024-07-02", 30, models.QualityGood),
		rec(4, 1, "temperature", "2024-07-03", 40, models.QualityGood),
		rec(5, 1, "temperature", "2024-12-24", -2, models.QualityGood),
	}

	got, err := NewMonthlyPatternDetector(nil).Detect(series)
	require.NoError(t, err)
	assert.Equal(t, models.SeasonPattern{Avg: 20, Trend: "increasing"}, got.Pattern["summer"])
	assert.Equal(t, models.SeasonPattern{Avg: -2, Trend: "stable"}, got.Pattern["winter"])
	assert.NotContains(t, got.Pattern, "spring")
	assert.NotContains(t, got.Pattern, "fall")
}

func TestMonthlyPatternDetector_LegacyIgnoresUnmappedMonths(t *testing.T) {
	series := []models.ClimateRecord{
		rec(1, 1, "temperature", "2024-03-01", 18, models.QualityGood),
		rec(2, 1, "temperature", "2024-08-01", 35, models.QualityGood),
	}

	got, err := NewMonthlyPatternDetector(LegacySeasons).Detect(series)
	require.NoError(t, err)
	assert.Equal(t, map[string]models.SeasonPattern{
		"summer": {Avg: 18, Trend: "increasing"},
	}, got.Pattern)
}

func TestMonthlyPatternDetector_MinMonths(t *testing.T) {
	d := NewMonthlyPatternDetector(nil)
	d.MinMonths = 3

	_, err := d.Detect([]models.ClimateRecord{
		rec(1, 1, "temperature", "2024-01-01", 1, models.QualityGood),
		rec(2, 1, "temperature", "2024-02-01", 2, models.QualityGood),
	})
	assert.True(t, errors.Is(err, ErrInsufficientData))

	_, err = d.Detect(nil)
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestSeasonMapFor(t *testing.T) {
	m, err := SeasonMapFor("")
	require.NoError(t, err)
	assert.Equal(t, MeteorologicalSeasons, m)

	m, err = SeasonMapFor("Legacy")
	require.NoError(t, err)
	assert.Equal(t, LegacySeasons, m)

	_, err = SeasonMapFor("tropical")
	assert.Error(t, err)
}
