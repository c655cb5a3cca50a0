package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"ecovision/internal/models"
	"ecovision/internal/repository"
	"ecovision/pkg/logging"
	"ecovision/pkg/metrics"
)

const (
	pathClimate        = "/api/v1/climate"
	pathSummary        = "/api/v1/summary"
	pathTrends         = "/api/v1/trends"
	pathLocations      = "/api/v1/locations"
	pathMetrics        = "/api/v1/metrics"
	pathCreateLocation = "/api/v1/create_location"
	pathCreateMetric   = "/api/v1/create_metric"
	pathCreateClimate  = "/api/v1/create_climate"
	pathHealth         = "/health"
)

// maxBodyBytes caps POST payloads
const maxBodyBytes = 1 << 20

// ClimateService is the listing and CRUD surface used by the handler
type ClimateService interface {
	ListRecords(ctx context.Context, filter *repository.ClimateFilter, page, perPage int) (*models.Paginated[models.ClimateRecord], error)
	ListLocations(ctx context.Context) ([]*models.Location, error)
	ListMetrics(ctx context.Context) ([]*models.Metric, error)
	CreateLocation(ctx context.Context, loc *models.Location) error
	CreateMetric(ctx context.Context, metric *models.Metric) error
	CreateObservation(ctx context.Context, obs *models.Observation) error
	HealthCheck(ctx context.Context) error
}

// SummaryService produces paged per-metric summaries
type SummaryService interface {
	Summary(ctx context.Context, filter *repository.ClimateFilter, page, perPage int) (*models.Paginated[models.SummaryResult], error)
}

// TrendService produces per-metric trend analyses
type TrendService interface {
	Trends(ctx context.Context, filter *repository.ClimateFilter) (map[string]models.TrendResult, error)
}

// ClimateHandler handles the climate API endpoints
type ClimateHandler struct {
	climate ClimateService
	summary SummaryService
	trends  TrendService
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// NewClimateHandler creates a new climate handler
func NewClimateHandler(
	climate ClimateService,
	summary SummaryService,
	trends TrendService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *ClimateHandler {
	return &ClimateHandler{
		climate: climate,
		summary: summary,
		trends:  trends,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// RegisterRoutes registers all climate API routes
func (h *ClimateHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc(pathClimate, h.GetClimate).Methods(http.MethodGet)
	router.HandleFunc(pathSummary, h.GetSummary).Methods(http.MethodGet)
	router.HandleFunc(pathTrends, h.GetTrends).Methods(http.MethodGet)
	router.HandleFunc(pathLocations, h.GetLocations).Methods(http.MethodGet)
	router.HandleFunc(pathMetrics, h.GetMetrics).Methods(http.MethodGet)
	router.HandleFunc(pathCreateLocation, h.CreateLocation).Methods(http.MethodPost)
	router.HandleFunc(pathCreateMetric, h.CreateMetric).Methods(http.MethodPost)
	router.HandleFunc(pathCreateClimate, h.CreateClimate).Methods(http.MethodPost)
	router.HandleFunc(pathHealth, h.HealthCheck).Methods(http.MethodGet)
}

// GetClimate handles GET /api/v1/climate
func (h *ClimateHandler) GetClimate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe(pathClimate, time.Now())

	query := r.URL.Query()
	filter, err := parseFilter(query)
	if err != nil {
		h.fail(w, r, pathClimate, err)
		return
	}
	page, limit, err := parsePage(query)
	if err != nil {
		h.fail(w, r, pathClimate, err)
		return
	}

	result, err := h.climate.ListRecords(ctx, filter, page, limit)
	if err != nil {
		h.fail(w, r, pathClimate, err)
		return
	}

	h.ok(w, r, pathClimate, result, http.StatusOK)
}

// GetSummary handles GET /api/v1/summary
func (h *ClimateHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe(pathSummary, time.Now())

	query := r.URL.Query()
	filter, err := parseFilter(query)
	if err != nil {
		h.fail(w, r, pathSummary, err)
		return
	}
	page, limit, err := parsePage(query)
	if err != nil {
		h.fail(w, r, pathSummary, err)
		return
	}

	result, err := h.summary.Summary(ctx, filter, page, limit)
	if err != nil {
		h.fail(w, r, pathSummary, err)
		return
	}

	h.ok(w, r, pathSummary, result, http.StatusOK)
}

// GetTrends handles GET /api/v1/trends
func (h *ClimateHandler) GetTrends(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe(pathTrends, time.Now())

	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		h.fail(w, r, pathTrends, err)
		return
	}

	result, err := h.trends.Trends(ctx, filter)
	if err != nil {
		h.fail(w, r, pathTrends, err)
		return
	}

	h.ok(w, r, pathTrends, result, http.StatusOK)
}

// GetLocations handles GET /api/v1/locations
func (h *ClimateHandler) GetLocations(w http.ResponseWriter, r *http.Request) {
	defer h.observe(pathLocations, time.Now())

	locations, err := h.climate.ListLocations(r.Context())
	if err != nil {
		h.fail(w, r, pathLocations, err)
		return
	}

	h.ok(w, r, pathLocations, map[string]interface{}{"data": locations}, http.StatusOK)
}

// GetMetrics handles GET /api/v1/metrics
func (h *ClimateHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	defer h.observe(pathMetrics, time.Now())

	list, err := h.climate.ListMetrics(r.Context())
	if err != nil {
		h.fail(w, r, pathMetrics, err)
		return
	}

	h.ok(w, r, pathMetrics, map[string]interface{}{"data": list}, http.StatusOK)
}

// CreateLocation handles POST /api/v1/create_location
func (h *ClimateHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	defer h.observe(pathCreateLocation, time.Now())

	var loc models.Location
	if err := decodeBody(w, r, &loc); err != nil {
		h.fail(w, r, pathCreateLocation, err)
		return
	}
	loc.ID = 0

	if err := h.climate.CreateLocation(r.Context(), &loc); err != nil {
		h.fail(w, r, pathCreateLocation, err)
		return
	}

	h.ok(w, r, pathCreateLocation, loc, http.StatusCreated)
}

// CreateMetric handles POST /api/v1/create_metric
func (h *ClimateHandler) CreateMetric(w http.ResponseWriter, r *http.Request) {
	defer h.observe(pathCreateMetric, time.Now())

	var metric models.Metric
	if err := decodeBody(w, r, &metric); err != nil {
		h.fail(w, r, pathCreateMetric, err)
		return
	}
	metric.ID = 0

	if err := h.climate.CreateMetric(r.Context(), &metric); err != nil {
		h.fail(w, r, pathCreateMetric, err)
		return
	}

	h.ok(w, r, pathCreateMetric, metric, http.StatusCreated)
}

// CreateClimate handles POST /api/v1/create_climate
func (h *ClimateHandler) CreateClimate(w http.ResponseWriter, r *http.Request) {
	defer h.observe(pathCreateClimate, time.Now())

	var obs models.Observation
	if err := decodeBody(w, r, &obs); err != nil {
		h.fail(w, r, pathCreateClimate, err)
		return
	}
	obs.ID = 0

	if err := h.climate.CreateObservation(r.Context(), &obs); err != nil {
		h.fail(w, r, pathCreateClimate, err)
		return
	}

	h.ok(w, r, pathCreateClimate, obs, http.StatusCreated)
}

// HealthCheck handles GET /health
func (h *ClimateHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.climate.HealthCheck(ctx); err != nil {
		h.logger.Error(ctx, "[HEALTH_CHECK_FAILED] Database unreachable", logging.Fields{}, err)
		status["status"] = "unhealthy"
		h.metrics.RecordAPIRequest(pathHealth, r.Method, strconv.Itoa(http.StatusServiceUnavailable))
		h.sendJSON(w, status, http.StatusServiceUnavailable)
		return
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

// parseFilter reads the shared filter query parameters. Malformed values
// are reported as validation errors and empty values count as absent,
// except quality_threshold which must name a label when present.
func parseFilter(query url.Values) (*repository.ClimateFilter, error) {
	var params repository.FilterParams

	if v := query.Get("location_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, &models.ValidationError{
				Field:   "location_id",
				Value:   v,
				Message: "invalid location_id, expected integer",
			}
		}
		params.LocationID = &id
	}

	for _, p := range []struct {
		name string
		dest **time.Time
	}{
		{"start_date", &params.StartDate},
		{"end_date", &params.EndDate},
	} {
		v := query.Get(p.name)
		if v == "" {
			continue
		}
		d, err := models.ParseDate(v)
		if err != nil {
			return nil, &models.ValidationError{
				Field:   p.name,
				Value:   v,
				Message: "invalid " + p.name + " format, expected YYYY-MM-DD",
			}
		}
		t := d.Time
		*p.dest = &t
	}

	if v := query.Get("metric"); v != "" {
		params.MetricName = &v
	}
	if query.Has("quality_threshold") {
		v := query.Get("quality_threshold")
		params.QualityThreshold = &v
	}

	return repository.BuildFilter(params)
}

// parsePage reads page and limit. Absent values take the defaults and
// out-of-range values are clamped; non-integers are rejected.
func parsePage(query url.Values) (int, int, error) {
	page, limit := models.DefaultPage, models.DefaultPerPage

	for _, p := range []struct {
		name string
		dest *int
	}{
		{"page", &page},
		{"limit", &limit},
	} {
		v := query.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, &models.ValidationError{
				Field:   p.name,
				Value:   v,
				Message: "invalid " + p.name + ", expected integer",
			}
		}
		*p.dest = n
	}

	page, limit = models.NormalizePage(page, limit)
	return page, limit, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dest); err != nil {
		return &models.ValidationError{
			Field:   "body",
			Message: "invalid request body: " + err.Error(),
		}
	}
	return nil
}

// statusFor maps a service error to its HTTP status and metric label
func statusFor(err error) (int, string) {
	var (
		validation *models.ValidationError
		notFound   *repository.NotFoundError
		conflict   *repository.ConflictError
	)
	switch {
	case errors.Is(err, models.ErrInvalidQuality):
		return http.StatusBadRequest, "invalid_quality"
	case errors.As(err, &validation):
		return http.StatusBadRequest, "validation_error"
	case errors.As(err, &notFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &conflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (h *ClimateHandler) fail(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	status, kind := statusFor(err)
	h.metrics.RecordAPIError(kind, endpoint)

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error(r.Context(), "[API_ERROR] Request failed", logging.Fields{
			"endpoint": endpoint,
			"method":   r.Method,
			"query":    r.URL.RawQuery,
		}, err)
		message = "internal server error"
	}

	h.sendError(w, r, endpoint, message, status)
}

func (h *ClimateHandler) ok(w http.ResponseWriter, r *http.Request, endpoint string, data interface{}, statusCode int) {
	h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(statusCode))
	h.sendJSON(w, data, statusCode)
}

func (h *ClimateHandler) observe(endpoint string, start time.Time) {
	h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// sendJSON sends a JSON response
func (h *ClimateHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn(context.Background(), "[API_ENCODE_ERROR] Failed to write response", logging.Fields{
			"error": err.Error(),
		})
	}
}

// sendError sends an error response
func (h *ClimateHandler) sendError(w http.ResponseWriter, r *http.Request, endpoint, message string, statusCode int) {
	h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}
