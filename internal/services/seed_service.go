package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"ecovision/internal/models"
	"ecovision/internal/repository"
	"ecovision/pkg/logging"
	"ecovision/pkg/metrics"
)

const defaultSeedBatchSize = 500

// SeedService loads the static seed document into the store
type SeedService struct {
	repo    repository.ClimateRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// SeedResult contains seeding statistics
type SeedResult struct {
	LocationsCreated  int
	MetricsCreated    int
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	Duration          time.Duration
	Errors            []string
}

// NewSeedService creates a new seed service
func NewSeedService(repo repository.ClimateRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *SeedService {
	return &SeedService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// LoadSeedFile reads and decodes a seed document
func LoadSeedFile(path string) (*models.SeedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	return DecodeSeed(f)
}

// DecodeSeed decodes a seed document from r
func DecodeSeed(r io.Reader) (*models.SeedFile, error) {
	var seed models.SeedFile
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return nil, fmt.Errorf("failed to decode seed file: %w", err)
	}
	return &seed, nil
}

// Reset empties the store so a following seed starts from fresh ids
func (s *SeedService) Reset(ctx context.Context) error {
	if err := s.repo.Reset(ctx); err != nil {
		return err
	}
	s.logger.Info(ctx, "[SEED_RESET] Existing climate data removed", logging.Fields{
		"stage": "RESET",
	})
	return nil
}

// Seed loads path and inserts its locations, metrics and climate data.
// Seed ids are remapped to the ids assigned by the store.
func (s *SeedService) Seed(ctx context.Context, path string, batchSize int) (*SeedResult, error) {
	s.logger.Info(ctx, "[SEED_START] Starting seed", logging.Fields{
		"seed_file":  path,
		"batch_size": batchSize,
		"stage":      "INITIALIZATION",
	})

	seed, err := LoadSeedFile(path)
	if err != nil {
		return nil, err
	}

	return s.SeedFile(ctx, seed, batchSize)
}

// SeedFile inserts an already decoded seed document
func (s *SeedService) SeedFile(ctx context.Context, seed *models.SeedFile, batchSize int) (*SeedResult, error) {
	startTime := time.Now()
	if batchSize <= 0 {
		batchSize = defaultSeedBatchSize
	}

	result := &SeedResult{
		Errors: make([]string, 0),
	}

	locationIDs := make(map[int64]int64, len(seed.Locations))
	for i, sl := range seed.Locations {
		loc := sl.ToLocation()
		if err := s.repo.CreateLocation(ctx, loc); err != nil {
			s.metrics.RecordSeed("location", "failed", 1)
			return nil, fmt.Errorf("failed to seed location %q: %w", sl.Name, err)
		}
		locationIDs[seedID(sl.ID, i)] = loc.ID
		result.LocationsCreated++
	}
	s.metrics.RecordSeed("location", "created", result.LocationsCreated)

	metricIDs := make(map[int64]int64, len(seed.Metrics))
	for i, sm := range seed.Metrics {
		metric := sm.ToMetric()
		if err := s.repo.CreateMetric(ctx, metric); err != nil {
			s.metrics.RecordSeed("metric", "failed", 1)
			return nil, fmt.Errorf("failed to seed metric %q: %w", sm.Name, err)
		}
		metricIDs[seedID(sm.ID, i)] = metric.ID
		result.MetricsCreated++
	}
	s.metrics.RecordSeed("metric", "created", result.MetricsCreated)

	s.logger.Info(ctx, "[SEED_REFERENCE_DATA] Locations and metrics created", logging.Fields{
		"locations": result.LocationsCreated,
		"metrics":   result.MetricsCreated,
		"stage":     "REFERENCE_DATA",
	})

	batch := make([]*models.Observation, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.repo.CreateObservationsBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to insert batch: %w", err)
		}
		result.SuccessfulRecords += len(batch)
		s.metrics.RecordSeed("climate_data", "created", len(batch))
		batch = batch[:0]
		return nil
	}

	for i, raw := range seed.ClimateData {
		result.TotalRecords++

		obs, err := raw.ToObservation()
		if err != nil {
			result.FailedRecords++
			result.Errors = append(result.Errors, fmt.Sprintf("climate_data[%d]: %v", i, err))
			s.metrics.RecordSeed("climate_data", "invalid", 1)
			continue
		}

		if id, ok := locationIDs[obs.LocationID]; ok {
			obs.LocationID = id
		}
		if id, ok := metricIDs[obs.MetricID]; ok {
			obs.MetricID = id
		}

		batch = append(batch, obs)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}

	result.Duration = time.Since(startTime)

	s.logger.Info(ctx, "[SEED_COMPLETE] Seed completed", logging.Fields{
		"locations":          result.LocationsCreated,
		"metrics":            result.MetricsCreated,
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
		"stage":              "COMPLETE",
	})

	return result, nil
}

// seedID is the id an entry is referenced by: its declared id, or its
// 1-based position when the file omits ids.
func seedID(declared int64, index int) int64 {
	if declared > 0 {
		return declared
	}
	return int64(index + 1)
}
