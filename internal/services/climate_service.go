package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"ecovision/internal/models"
	"ecovision/internal/repository"
	"ecovision/pkg/logging"
	"ecovision/pkg/metrics"
)

// ClimateService handles climate data listing and creation
type ClimateService struct {
	repo     repository.ClimateRepository
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
	validate *validator.Validate
}

// NewClimateService creates a new climate service
func NewClimateService(repo repository.ClimateRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ClimateService {
	return &ClimateService{
		repo:     repo,
		logger:   logger,
		metrics:  metricsCollector,
		validate: newValidator(),
	}
}

// newValidator reports fields by their JSON name and registers the
// "quality" tag used on Observation.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("quality", func(fl validator.FieldLevel) bool {
		_, err := models.ParseQuality(fl.Field().String())
		return err == nil
	})
	return v
}

// ListRecords returns one page of joined climate records
func (s *ClimateService) ListRecords(ctx context.Context, filter *repository.ClimateFilter, page, perPage int) (*models.Paginated[models.ClimateRecord], error) {
	page, perPage = models.NormalizePage(page, perPage)

	records, total, err := s.repo.ListRecords(ctx, filter, perPage, models.Offset(page, perPage))
	if err != nil {
		return nil, err
	}

	return &models.Paginated[models.ClimateRecord]{
		Data: records,
		Meta: models.PaginationMeta{
			Count:   total,
			Page:    page,
			PerPage: perPage,
		},
	}, nil
}

// ListLocations returns all locations
func (s *ClimateService) ListLocations(ctx context.Context) ([]*models.Location, error) {
	return s.repo.ListLocations(ctx)
}

// ListMetrics returns all metrics
func (s *ClimateService) ListMetrics(ctx context.Context) ([]*models.Metric, error) {
	return s.repo.ListMetrics(ctx)
}

// CreateLocation validates and stores a location
func (s *ClimateService) CreateLocation(ctx context.Context, loc *models.Location) error {
	loc.Name = strings.TrimSpace(loc.Name)
	if err := s.check(loc); err != nil {
		return err
	}
	return s.repo.CreateLocation(ctx, loc)
}

// CreateMetric validates and stores a metric
func (s *ClimateService) CreateMetric(ctx context.Context, metric *models.Metric) error {
	metric.Name = strings.TrimSpace(metric.Name)
	if err := s.check(metric); err != nil {
		return err
	}
	return s.repo.CreateMetric(ctx, metric)
}

// CreateObservation validates an observation, derives its quality weight
// and stores it
func (s *ClimateService) CreateObservation(ctx context.Context, obs *models.Observation) error {
	if obs.Date.IsZero() {
		return &models.ValidationError{
			Field:   "date",
			Value:   "",
			Message: "date is required",
		}
	}

	if err := s.check(obs); err != nil {
		return err
	}

	if err := obs.ApplyQualityWeight(); err != nil {
		return err
	}

	if err := s.repo.CreateObservation(ctx, obs); err != nil {
		return err
	}

	s.logger.Info(ctx, "[CLIMATE_CREATE] Observation stored", logging.Fields{
		"id":          obs.ID,
		"location_id": obs.LocationID,
		"metric_id":   obs.MetricID,
		"date":        obs.Date.String(),
		"quality":     string(obs.Quality),
	})

	return nil
}

// HealthCheck checks the backing store
func (s *ClimateService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}

// check runs struct validation and converts the first failure to a
// ValidationError. Bad quality labels surface as InvalidQualityError.
func (s *ClimateService) check(v interface{}) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validation failed: %w", err)
	}

	fe := verrs[0]
	if fe.Tag() == "quality" {
		return &models.InvalidQualityError{Value: fmt.Sprintf("%v", fe.Value())}
	}

	field := fe.Field()
	return &models.ValidationError{
		Field:   field,
		Value:   fmt.Sprintf("%v", fe.Value()),
		Message: fmt.Sprintf("%s failed %q validation", field, fe.Tag()),
	}
}
