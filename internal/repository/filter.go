package repository

import (
	"fmt"
	"strings"
	"time"

	"ecovision/internal/models"
)

// FilterParams holds the optional query parameters shared by the listing,
// summary and trend endpoints. A nil field imposes no constraint.
type FilterParams struct {
	LocationID       *int64
	StartDate        *time.Time
	EndDate          *time.Time
	MetricName       *string
	QualityThreshold *string
}

// ClimateFilter is a validated, immutable row predicate. It renders as a SQL
// fragment via Where and evaluates the same predicate in memory via Matches.
type ClimateFilter struct {
	locationID *int64
	startDate  *models.Date
	endDate    *models.Date
	metricName *string
	threshold  *models.Quality
	minWeight  float64
}

// BuildFilter validates params and returns the predicate they describe.
func BuildFilter(params FilterParams) (*ClimateFilter, error) {
	f := &ClimateFilter{}

	if params.LocationID != nil {
		id := *params.LocationID
		f.locationID = &id
	}

	if params.StartDate != nil {
		d := models.NewDate(*params.StartDate)
		f.startDate = &d
	}

	if params.EndDate != nil {
		d := models.NewDate(*params.EndDate)
		f.endDate = &d
	}

	if f.startDate != nil && f.endDate != nil && f.startDate.After(f.endDate.Time) {
		return nil, &models.ValidationError{
			Field:   "start_date",
			Value:   f.startDate.String(),
			Message: fmt.Sprintf("start_date %s is after end_date %s", f.startDate, f.endDate),
		}
	}

	if params.MetricName != nil {
		name := strings.TrimSpace(*params.MetricName)
		if name != "" {
			f.metricName = &name
		}
	}

	if params.QualityThreshold != nil {
		q, err := models.ParseQuality(*params.QualityThreshold)
		if err != nil {
			return nil, err
		}
		w, _ := models.WeightOf(q)
		f.threshold = &q
		f.minWeight = w
	}

	return f, nil
}

// Where renders the predicate as " AND ..." conditions over the aliases
// cd (climate_data), m (metrics) and l (locations). Placeholders start at
// startArg; next is the first unused placeholder number.
func (f *ClimateFilter) Where(startArg int) (clause string, args []interface{}, next int) {
	var sb strings.Builder
	args = []interface{}{}
	argNum := startArg

	if f == nil {
		return "", args, argNum
	}

	if f.locationID != nil {
		sb.WriteString(fmt.Sprintf(" AND cd.location_id = $%d", argNum))
		args = append(args, *f.locationID)
		argNum++
	}

	if f.startDate != nil {
		sb.WriteString(fmt.Sprintf(" AND cd.date >= $%d", argNum))
		args = append(args, f.startDate.Time)
		argNum++
	}

	if f.endDate != nil {
		sb.WriteString(fmt.Sprintf(" AND cd.date <= $%d", argNum))
		args = append(args, f.endDate.Time)
		argNum++
	}

	if f.metricName != nil {
		sb.WriteString(fmt.Sprintf(" AND LOWER(m.name) = LOWER($%d)", argNum))
		args = append(args, *f.metricName)
		argNum++
	}

	if f.threshold != nil {
		sb.WriteString(fmt.Sprintf(" AND cd.quality_weight >= $%d", argNum))
		args = append(args, f.minWeight)
		argNum++
	}

	return sb.String(), args, argNum
}

// Matches reports whether rec satisfies the predicate.
func (f *ClimateFilter) Matches(rec models.ClimateRecord) bool {
	if f == nil {
		return true
	}

	if f.locationID != nil && rec.LocationID != *f.locationID {
		return false
	}

	if f.startDate != nil && rec.Date.Before(f.startDate.Time) {
		return false
	}

	if f.endDate != nil && rec.Date.After(f.endDate.Time) {
		return false
	}

	if f.metricName != nil && !strings.EqualFold(rec.MetricName, *f.metricName) {
		return false
	}

	if f.threshold != nil {
		ok, err := models.MeetsThreshold(rec.Quality, *f.threshold)
		if err != nil || !ok {
			return false
		}
	}

	return true
}

// Apply returns the records of recs that satisfy the predicate.
func (f *ClimateFilter) Apply(recs []models.ClimateRecord) []models.ClimateRecord {
	out := make([]models.ClimateRecord, 0, len(recs))
	for _, rec := range recs {
		if f.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// Key is a stable, normalized rendering of the predicate used as a cache key.
func (f *ClimateFilter) Key() string {
	if f == nil {
		return "all"
	}

	parts := make([]string, 0, 5)
	if f.locationID != nil {
		parts = append(parts, fmt.Sprintf("loc=%d", *f.locationID))
	}
	if f.startDate != nil {
		parts = append(parts, "from="+f.startDate.String())
	}
	if f.endDate != nil {
		parts = append(parts, "to="+f.endDate.String())
	}
	if f.metricName != nil {
		parts = append(parts, "metric="+strings.ToLower(*f.metricName))
	}
	if f.threshold != nil {
		parts = append(parts, "q="+string(*f.threshold))
	}

	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, ",")
}
