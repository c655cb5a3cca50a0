package models

import (
	"time"
)

// Location is a place where climate observations are recorded
type Location struct {
	ID        int64   `json:"id" db:"id"`
	Name      string  `json:"name" db:"name" validate:"required,max=255"`
	Country   string  `json:"country" db:"country" validate:"max=255"`
	Latitude  float64 `json:"latitude" db:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" db:"longitude" validate:"gte=-180,lte=180"`
	Region    string  `json:"region" db:"region" validate:"max=255"`
}

// Metric describes a measured quantity such as temperature or precipitation
type Metric struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name" validate:"required,max=100"`
	DisplayName string `json:"display_name" db:"display_name" validate:"max=255"`
	Unit        string `json:"unit" db:"unit" validate:"required,max=50"`
	Description string `json:"description" db:"description"`
}

// Observation is a single immutable climate reading.
// QualityWeight is derived from Quality when the row is written.
type Observation struct {
	ID            int64     `json:"id" db:"id"`
	LocationID    int64     `json:"location_id" db:"location_id" validate:"required,gt=0"`
	MetricID      int64     `json:"metric_id" db:"metric_id" validate:"required,gt=0"`
	Date          Date      `json:"date" db:"date"`
	Value         float64   `json:"value" db:"value"`
	Quality       Quality   `json:"quality" db:"quality" validate:"required,quality"`
	QualityWeight float64   `json:"quality_weight" db:"quality_weight"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// ApplyQualityWeight normalises the label and fills QualityWeight.
func (o *Observation) ApplyQualityWeight() error {
	q, err := ParseQuality(string(o.Quality))
	if err != nil {
		return err
	}
	w, _ := WeightOf(q)
	o.Quality = q
	o.QualityWeight = w
	return nil
}

// ClimateRecord is an observation joined with its metric and location.
// It is the row unit consumed by the summary and trend analytics.
type ClimateRecord struct {
	ID                int64   `json:"id" db:"id"`
	LocationID        int64   `json:"location_id" db:"location_id"`
	LocationName      string  `json:"location_name" db:"location_name"`
	Latitude          float64 `json:"latitude" db:"latitude"`
	Longitude         float64 `json:"longitude" db:"longitude"`
	MetricID          int64   `json:"metric_id" db:"metric_id"`
	MetricName        string  `json:"metric_name" db:"metric_name"`
	MetricDisplayName string  `json:"metric" db:"metric_display_name"`
	Unit              string  `json:"unit" db:"unit"`
	Date              Date    `json:"date" db:"date"`
	Value             float64 `json:"value" db:"value"`
	Quality           Quality `json:"quality" db:"quality"`
	QualityWeight     float64 `json:"quality_weight" db:"quality_weight"`
}

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
