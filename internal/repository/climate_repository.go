package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"ecovision/internal/models"
	"ecovision/pkg/database"
	"ecovision/pkg/logging"
	"ecovision/pkg/metrics"
)

const (
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
)

// ClimateRepository provides data access for locations, metrics and
// climate observations
type ClimateRepository interface {
	// Reference data
	CreateLocation(ctx context.Context, loc *models.Location) error
	ListLocations(ctx context.Context) ([]*models.Location, error)
	CreateMetric(ctx context.Context, metric *models.Metric) error
	ListMetrics(ctx context.Context) ([]*models.Metric, error)
	GetMetricByName(ctx context.Context, name string) (*models.Metric, error)

	// Observation operations
	CreateObservation(ctx context.Context, obs *models.Observation) error
	CreateObservationsBatch(ctx context.Context, observations []*models.Observation) error

	// ListRecords returns one page of joined records and the total match count.
	ListRecords(ctx context.Context, filter *ClimateFilter, limit, offset int) ([]models.ClimateRecord, int, error)
	// SelectRecords returns every matching record ordered by metric, date and id.
	SelectRecords(ctx context.Context, filter *ClimateFilter) ([]models.ClimateRecord, error)

	// Utility operations
	// Reset removes every observation, metric and location and restarts ids.
	Reset(ctx context.Context) error
	HealthCheck(ctx context.Context) error
}

const recordSelect = `
	SELECT cd.id, cd.location_id, l.name AS location_name, l.latitude, l.longitude,
	       cd.metric_id, m.name AS metric_name, m.display_name AS metric_display_name, m.unit,
	       cd.date, cd.value, cd.quality, cd.quality_weight
	FROM climate_data cd
	JOIN locations l ON l.id = cd.location_id
	JOIN metrics m ON m.id = cd.metric_id
	WHERE 1=1`

const insertObservation = `
	INSERT INTO climate_data (location_id, metric_id, date, value, quality, quality_weight, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id`

// climateRepository implements ClimateRepository
type climateRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewClimateRepository creates a new climate repository
func NewClimateRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) ClimateRepository {
	return &climateRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// CreateLocation inserts a location and fills its ID
func (r *climateRepository) CreateLocation(ctx context.Context, loc *models.Location) error {
	query := `
		INSERT INTO locations (name, country, latitude, longitude, region)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.db.GetContext(ctx, "insert_location", &loc.ID, query,
		loc.Name,
		loc.Country,
		loc.Latitude,
		loc.Longitude,
		loc.Region,
	)
	if err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_CREATE_LOCATION] Location created", logging.Fields{
		"location_id": loc.ID,
		"name":        loc.Name,
	})

	return nil
}

// ListLocations returns all locations ordered by ID
func (r *climateRepository) ListLocations(ctx context.Context) ([]*models.Location, error) {
	query := `
		SELECT id, name, country, latitude, longitude, region
		FROM locations
		ORDER BY id
	`

	locations := []*models.Location{}
	if err := r.db.SelectContext(ctx, "list_locations", &locations, query); err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}

	return locations, nil
}

// CreateMetric inserts a metric and fills its ID
func (r *climateRepository) CreateMetric(ctx context.Context, metric *models.Metric) error {
	query := `
		INSERT INTO metrics (name, display_name, unit, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.db.GetContext(ctx, "insert_metric", &metric.ID, query,
		metric.Name,
		metric.DisplayName,
		metric.Unit,
		metric.Description,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return &ConflictError{Resource: "metric", Field: "name", Value: metric.Name}
		}
		return fmt.Errorf("failed to create metric: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_CREATE_METRIC] Metric created", logging.Fields{
		"metric_id": metric.ID,
		"name":      metric.Name,
	})

	return nil
}

// ListMetrics returns all metrics ordered by ID
func (r *climateRepository) ListMetrics(ctx context.Context) ([]*models.Metric, error) {
	query := `
		SELECT id, name, display_name, unit, description
		FROM metrics
		ORDER BY id
	`

	metricList := []*models.Metric{}
	if err := r.db.SelectContext(ctx, "list_metrics", &metricList, query); err != nil {
		return nil, fmt.Errorf("failed to list metrics: %w", err)
	}

	return metricList, nil
}

// GetMetricByName looks a metric up by case-insensitive name
func (r *climateRepository) GetMetricByName(ctx context.Context, name string) (*models.Metric, error) {
	query := `
		SELECT id, name, display_name, unit, description
		FROM metrics
		WHERE LOWER(name) = LOWER($1)
	`

	var metric models.Metric
	err := r.db.GetContext(ctx, "get_metric_by_name", &metric, query, name)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{
			Resource: "metric",
			ID:       name,
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get metric: %w", err)
	}

	return &metric, nil
}

// CreateObservation validates the quality label, stores the derived weight
// and fills the observation ID
func (r *climateRepository) CreateObservation(ctx context.Context, obs *models.Observation) error {
	if err := obs.ApplyQualityWeight(); err != nil {
		return err
	}
	if obs.CreatedAt.IsZero() {
		obs.CreatedAt = time.Now().UTC()
	}

	err := r.db.GetContext(ctx, "insert_observation", &obs.ID, insertObservation,
		obs.LocationID,
		obs.MetricID,
		obs.Date,
		obs.Value,
		obs.Quality,
		obs.QualityWeight,
		obs.CreatedAt,
	)
	if err != nil {
		if nf := foreignKeyNotFound(err, obs); nf != nil {
			return nf
		}
		return fmt.Errorf("failed to create observation: %w", err)
	}

	return nil
}

// CreateObservationsBatch creates multiple observations in a single transaction
func (r *climateRepository) CreateObservationsBatch(ctx context.Context, observations []*models.Observation) error {
	if len(observations) == 0 {
		return nil
	}

	for _, obs := range observations {
		if err := obs.ApplyQualityWeight(); err != nil {
			return err
		}
		if obs.CreatedAt.IsZero() {
			obs.CreatedAt = time.Now().UTC()
		}
	}

	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.metrics.SeedBatchSize.Observe(float64(len(observations)))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch insert completed", logging.Fields{
			"count":       len(observations),
			"duration_ms": duration.Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertObservation)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, obs := range observations {
		err := stmt.QueryRowContext(ctx,
			obs.LocationID,
			obs.MetricID,
			obs.Date,
			obs.Value,
			obs.Quality,
			obs.QualityWeight,
			obs.CreatedAt,
		).Scan(&obs.ID)
		if err != nil {
			if nf := foreignKeyNotFound(err, obs); nf != nil {
				return nf
			}
			return fmt.Errorf("failed to insert observation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListRecords retrieves joined records with filtering and pagination
func (r *climateRepository) ListRecords(ctx context.Context, filter *ClimateFilter, limit, offset int) ([]models.ClimateRecord, int, error) {
	where, args, argNum := filter.Where(1)
	query := recordSelect + where

	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS count_query"
	var totalCount int
	if err := r.db.GetContext(ctx, "count_records", &totalCount, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count climate records: %w", err)
	}

	query += " ORDER BY cd.date, cd.id"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, limit, offset)

	records := []models.ClimateRecord{}
	if err := r.db.SelectContext(ctx, "list_records", &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list climate records: %w", err)
	}

	return records, totalCount, nil
}

// SelectRecords retrieves every record matching filter for analytics
func (r *climateRepository) SelectRecords(ctx context.Context, filter *ClimateFilter) ([]models.ClimateRecord, error) {
	where, args, _ := filter.Where(1)
	query := recordSelect + where + " ORDER BY m.name, cd.metric_id, cd.date, cd.id"

	records := []models.ClimateRecord{}
	if err := r.db.SelectContext(ctx, "select_records", &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select climate records: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_SELECT_RECORDS] Records selected", logging.Fields{
		"filter": filter.Key(),
		"count":  len(records),
	})

	return records, nil
}

// Reset truncates all three tables
func (r *climateRepository) Reset(ctx context.Context) error {
	query := `TRUNCATE climate_data, metrics, locations RESTART IDENTITY`

	if _, err := r.db.ExecContext(ctx, "truncate_all", query); err != nil {
		return fmt.Errorf("failed to reset climate data: %w", err)
	}

	r.logger.Info(ctx, "[REPO_RESET] All climate tables truncated", logging.Fields{})
	return nil
}

// HealthCheck performs a repository health check
func (r *climateRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// foreignKeyNotFound maps a foreign key violation to the missing parent row.
func foreignKeyNotFound(err error, obs *models.Observation) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqForeignKeyViolation {
		return nil
	}

	if strings.Contains(pqErr.Constraint, "metric") {
		return &NotFoundError{Resource: "metric", ID: fmt.Sprintf("%d", obs.MetricID)}
	}
	return &NotFoundError{Resource: "location", ID: fmt.Sprintf("%d", obs.LocationID)}
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}

// ConflictError reports a write rejected by a uniqueness rule
type ConflictError struct {
	Resource string
	Field    string
	Value    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", e.Resource, e.Field, e.Value)
}

func (e *ConflictError) IsTransient() bool {
	return false
}
