package models

import (
	"fmt"
	"time"
)

// SeedFile is the layout of the static sample_data.json seed document
type SeedFile struct {
	Locations   []SeedLocation    `json:"locations"`
	Metrics     []SeedMetric      `json:"metrics"`
	ClimateData []SeedClimateData `json:"climate_data"`
}

// SeedLocation is one entry of the "locations" array
type SeedLocation struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Region    string  `json:"region"`
}

// ToLocation converts the seed entry to a Location
func (s SeedLocation) ToLocation() *Location {
	return &Location{
		ID:        s.ID,
		Name:      s.Name,
		Country:   s.Country,
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Region:    s.Region,
	}
}

// SeedMetric is one entry of the "metrics" array
type SeedMetric struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Unit        string `json:"unit"`
	Description string `json:"description"`
}

// ToMetric converts the seed entry to a Metric
func (s SeedMetric) ToMetric() *Metric {
	return &Metric{
		ID:          s.ID,
		Name:        s.Name,
		DisplayName: s.DisplayName,
		Unit:        s.Unit,
		Description: s.Description,
	}
}

// SeedClimateData is one raw entry of the "climate_data" array.
// Date and quality arrive as free text and are validated by ToObservation.
type SeedClimateData struct {
	LocationID int64   `json:"location_id"`
	MetricID   int64   `json:"metric_id"`
	Date       string  `json:"date"`
	Value      float64 `json:"value"`
	Quality    string  `json:"quality"`
}

// ToObservation converts a raw seed entry into an Observation with its
// precomputed quality weight.
func (s SeedClimateData) ToObservation() (*Observation, error) {
	date, err := ParseDate(s.Date)
	if err != nil {
		return nil, &ValidationError{
			Field:   "date",
			Value:   s.Date,
			Message: "invalid date format, expected YYYY-MM-DD",
		}
	}

	if s.LocationID <= 0 || s.MetricID <= 0 {
		return nil, &ValidationError{
			Field:   "location_id/metric_id",
			Value:   "",
			Message: "location_id and metric_id must be positive",
		}
	}

	obs := &Observation{
		LocationID: s.LocationID,
		MetricID:   s.MetricID,
		Date:       date,
		Value:      s.Value,
		Quality:    Quality(s.Quality),
		CreatedAt:  time.Now().UTC(),
	}

	if err := obs.ApplyQualityWeight(); err != nil {
		return nil, err
	}

	return obs, nil
}

// Records joins the seed climate_data entries with their seed locations and
// metrics, using the ids declared in the file. Entries that fail conversion
// or reference unknown ids are returned as errors and skipped.
func (f *SeedFile) Records() ([]ClimateRecord, []error) {
	locations := make(map[int64]SeedLocation, len(f.Locations))
	for i, l := range f.Locations {
		id := l.ID
		if id == 0 {
			id = int64(i + 1)
		}
		locations[id] = l
	}

	metrics := make(map[int64]SeedMetric, len(f.Metrics))
	for i, m := range f.Metrics {
		id := m.ID
		if id == 0 {
			id = int64(i + 1)
		}
		metrics[id] = m
	}

	records := make([]ClimateRecord, 0, len(f.ClimateData))
	var errs []error

	for i, raw := range f.ClimateData {
		obs, err := raw.ToObservation()
		if err != nil {
			errs = append(errs, fmt.Errorf("climate_data[%d]: %w", i, err))
			continue
		}

		loc, ok := locations[obs.LocationID]
		if !ok {
			errs = append(errs, fmt.Errorf("climate_data[%d]: unknown location_id %d", i, obs.LocationID))
			continue
		}
		metric, ok := metrics[obs.MetricID]
		if !ok {
			errs = append(errs, fmt.Errorf("climate_data[%d]: unknown metric_id %d", i, obs.MetricID))
			continue
		}

		records = append(records, ClimateRecord{
			ID:                int64(i + 1),
			LocationID:        obs.LocationID,
			LocationName:      loc.Name,
			Latitude:          loc.Latitude,
			Longitude:         loc.Longitude,
			MetricID:          obs.MetricID,
			MetricName:        metric.Name,
			MetricDisplayName: metric.DisplayName,
			Unit:              metric.Unit,
			Date:              obs.Date,
			Value:             obs.Value,
			Quality:           obs.Quality,
			QualityWeight:     obs.QualityWeight,
		})
	}

	return records, errs
}
