package repository

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecovision/internal/models"
	"ecovision/pkg/database"
	"ecovision/pkg/logging"
	"ecovision/pkg/metrics"
)

var recordColumns = []string{
	"id", "location_id", "location_name", "latitude", "longitude",
	"metric_id", "metric_name", "metric_display_name", "unit",
	"date", "value", "quality", "quality_weight",
}

func newTestRepository(t *testing.T) (ClimateRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logging.NewStructuredLogger("test", "0.0.0", logging.ErrorLevel)
	logger.SetOutput(io.Discard)
	collector := metrics.NewCollector("test", prometheus.NewRegistry())

	pg := database.Wrap(sqlx.NewDb(db, "postgres"), &database.Config{}, logger, collector)
	return NewClimateRepository(pg, logger, collector), mock
}

func TestClimateRepository_CreateLocation(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO locations")).
		WithArgs("Irvine", "USA", 33.68, -117.83, "California").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	loc := &models.Location{Name: "Irvine", Country: "USA", Latitude: 33.68, Longitude: -117.83, Region: "California"}
	require.NoError(t, repo.CreateLocation(context.Background(), loc))
	assert.Equal(t, int64(7), loc.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClimateRepository_ListMetrics(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM metrics")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "display_name", "unit", "description"}).
			AddRow(1, "temperature", "Temperature", "celsius", "Air temperature").
			AddRow(2, "precipitation", "Precipitation", "mm", "Daily rainfall"))

	got, err := repo.ListMetrics(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "precipitation", got[1].Name)
	assert.Equal(t, "mm", got[1].Unit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClimateRepository_GetMetricByNameNotFound(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(name) = LOWER($1)")).
		WithArgs("wind").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "display_name", "unit", "description"}))

	_, err := repo.GetMetricByName(context.Background(), "wind")
	require.Error(t, err)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "metric", nf.Resource)
	assert.False(t, nf.IsTransient())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClimateRepository_CreateObservation(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO climate_data")).
		WithArgs(int64(1), int64(2), sqlmock.AnyArg(), 21.5, "excellent", 1.0, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	obs := &models.Observation{
		LocationID: 1,
		MetricID:   2,
		Date:       models.MustDate("2024-05-01"),
		Value:      21.5,
		Quality:    "Excellent",
	}
	require.NoError(t, repo.CreateObservation(context.Background(), obs))
	assert.Equal(t, int64(42), obs.ID)
	assert.Equal(t, 1.0, obs.QualityWeight)
	assert.Equal(t, models.QualityExcellent, obs.Quality)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClimateRepository_CreateObservationRejectsBadQuality(t *testing.T) {
	repo, mock := newTestRepository(t)

	obs := &models.Observation{LocationID: 1, MetricID: 1, Date: models.MustDate("2024-05-01"), Quality: "fine"}
	err := repo.CreateObservation(context.Background(), obs)
	assert.True(t, errors.Is(err, models.ErrInvalidQuality))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClimateRepository_CreateObservationUnknownLocation(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO climate_data")).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "climate_data_location_id_fkey"})

	obs := &models.Observation{LocationID: 99, MetricID: 1, Date: models.MustDate("2024-05-01"), Quality: "good"}
	err := repo.CreateObservation(context.Background(), obs)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "location", nf.Resource)
	assert.Equal(t, "99", nf.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClimateRepository_CreateObservationsBatch(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO climate_data"))
	prep.ExpectQuery().
		WithArgs(int64(1), int64(1), sqlmock.AnyArg(), 5.0, "excellent", 1.0, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	prep.ExpectQuery().
		WithArgs(int64(1), int64(1), sqlmock.AnyArg(), 7.0, "poor", 0.3, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectCommit()

	batch := []*models.Observation{
		{LocationID: 1, MetricID: 1, Date: models.MustDate("2024-01-01"), Value: 5, Quality: "excellent"},
		{LocationID: 1, MetricID: 1, Date: models.MustDate("2024-01-02"), Value: 7, Quality: "poor"},
	}
	require.NoError(t, repo.CreateObservationsBatch(context.Background(), batch))
	assert.Equal(t, int64(1), batch[0].ID)
	assert.Equal(t, int64(2), batch[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClimateRepository_CreateObservationsBatchRollsBack(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO climate_data"))
	prep.ExpectQuery().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	batch := []*models.Observation{
		{LocationID: 1, MetricID: 1, Date: models.MustDate("2024-01-01"), Value: 5, Quality: "good"},
	}
	err := repo.CreateObservationsBatch(context.Background(), batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert observation")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClimateRepository_ListRecords(t *testing.T) {
	repo, mock := newTestRepository(t)

	filter, err := BuildFilter(FilterParams{MetricName: ptr("temperature")})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM (")).
		WithArgs("temperature").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	mock.ExpectQuery(regexp.QuoteMeta("AND LOWER(m.name) = LOWER($1) ORDER BY cd.date, cd.id LIMIT $2 OFFSET $3")).
		WithArgs("temperature", 2, 10).
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow(11, 1, "Irvine", 33.68, -117.83, 1, "temperature", "Temperature", "celsius",
				time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), 14.2, "good", 0.8).
			AddRow(12, 1, "Irvine", 33.68, -117.83, 1, "temperature", "Temperature", "celsius",
				time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC), 15.1, "excellent", 1.0))

	records, total, err := repo.ListRecords(context.Background(), filter, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	require.Len(t, records, 2)
	assert.Equal(t, "2024-01-11", records[0].Date.String())
	assert.Equal(t, models.QualityGood, records[0].Quality)
	assert.Equal(t, "Temperature", records[1].MetricDisplayName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClimateRepository_SelectRecords(t *testing.T) {
	repo, mock := newTestRepository(t)

	filter, err := BuildFilter(FilterParams{
		LocationID:       ptr(int64(1)),
		QualityThreshold: ptr("questionable"),
	})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("AND cd.location_id = $1 AND cd.quality_weight >= $2 ORDER BY m.name, cd.metric_id, cd.date, cd.id")).
		WithArgs(int64(1), 0.5).
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow(1, 1, "Irvine", 33.68, -117.83, 1, "temperature", "Temperature", "celsius",
				time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 5.0, "excellent", 1.0))

	records, err := repo.SelectRecords(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Irvine", records[0].LocationName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClimateRepository_SelectRecordsError(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM climate_data cd")).WillReturnError(errors.New("connection reset"))

	_, err := repo.SelectRecords(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to select climate records")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClimateRepository_CreateMetricDuplicateName(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO metrics")).
		WithArgs("Temperature", "Temperature", "celsius", "").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "metrics_name_key"})

	err := repo.CreateMetric(context.Background(), &models.Metric{Name: "Temperature", DisplayName: "Temperature", Unit: "celsius"})

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "metric", conflict.Resource)
	assert.Equal(t, "Temperature", conflict.Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClimateRepository_Reset(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectExec(regexp.QuoteMeta("TRUNCATE climate_data, metrics, locations RESTART IDENTITY")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, repo.Reset(context.Background()))

	mock.ExpectExec(regexp.QuoteMeta("TRUNCATE")).WillReturnError(errors.New("permission denied"))
	err := repo.Reset(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reset climate data")

	assert.NoError(t, mock.ExpectationsWereMet())
}
