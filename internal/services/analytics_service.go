package services

import (
	"context"
	"time"

	"ecovision/internal/analytics"
	"ecovision/internal/cache"
	"ecovision/internal/models"
	"ecovision/internal/repository"
	"ecovision/pkg/logging"
	"ecovision/pkg/metrics"
)

// SummaryService computes quality-weighted per-metric summaries
type SummaryService struct {
	repo    repository.ClimateRepository
	cache   cache.Cache
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewSummaryService creates a new summary service. A nil cache disables caching.
func NewSummaryService(repo repository.ClimateRepository, c cache.Cache, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *SummaryService {
	if c == nil {
		c = cache.Noop{}
	}
	return &SummaryService{
		repo:    repo,
		cache:   c,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Summary returns one page of metric summaries for the rows matching filter.
// Pagination applies to metrics, which are ordered by name.
func (s *SummaryService) Summary(ctx context.Context, filter *repository.ClimateFilter, page, perPage int) (*models.Paginated[models.SummaryResult], error) {
	page, perPage = models.NormalizePage(page, perPage)
	key := cache.Key(cache.KindSummary, filter.Key(), page, perPage)

	var cached models.Paginated[models.SummaryResult]
	if hit := lookup(ctx, s.cache, s.logger, key, &cached); hit {
		return &cached, nil
	}

	timer := s.metrics.NewTimer(s.metrics.AnalyticsDuration.WithLabelValues("summary"))
	records, err := s.repo.SelectRecords(ctx, filter)
	if err != nil {
		return nil, err
	}

	results := analytics.Summarize(records)
	paged := models.Paginate(results, page, perPage)
	duration := timer.ObserveDuration()
	s.metrics.AnalyticsRows.WithLabelValues("summary").Observe(float64(len(records)))

	s.logger.Debug(ctx, "[SUMMARY_COMPUTED] Summary computed", logging.Fields{
		"filter":      filter.Key(),
		"rows":        len(records),
		"metrics":     len(results),
		"duration_ms": duration.Milliseconds(),
	})

	store(ctx, s.cache, s.logger, key, paged)
	return &paged, nil
}

// TrendService computes per-metric trend, anomaly and seasonality analyses
type TrendService struct {
	repo     repository.ClimateRepository
	analyzer *analytics.Analyzer
	cache    cache.Cache
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

// NewTrendService creates a new trend service. A nil cache disables caching.
func NewTrendService(repo repository.ClimateRepository, analyzer *analytics.Analyzer, c cache.Cache, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *TrendService {
	if c == nil {
		c = cache.Noop{}
	}
	if analyzer == nil {
		analyzer = analytics.NewAnalyzer()
	}
	return &TrendService{
		repo:     repo,
		analyzer: analyzer,
		cache:    c,
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// Trends returns a TrendResult per metric name for the rows matching filter
func (s *TrendService) Trends(ctx context.Context, filter *repository.ClimateFilter) (map[string]models.TrendResult, error) {
	key := cache.Key(cache.KindTrends, filter.Key())

	cached := map[string]models.TrendResult{}
	if hit := lookup(ctx, s.cache, s.logger, key, &cached); hit {
		return cached, nil
	}

	start := time.Now()
	records, err := s.repo.SelectRecords(ctx, filter)
	if err != nil {
		return nil, err
	}

	results, err := s.analyzer.Analyze(ctx, records)
	if err != nil {
		return nil, err
	}

	duration := time.Since(start)
	s.metrics.AnalyticsDuration.WithLabelValues("trends").Observe(duration.Seconds())
	s.metrics.AnalyticsRows.WithLabelValues("trends").Observe(float64(len(records)))

	for name, res := range results {
		metricLog := s.logger.WithFields(logging.Fields{
			"component": "trends",
			"metric":    name,
		})

		if n := len(res.Anomalies); n > 0 {
			s.metrics.AnomaliesDetected.Add(float64(n))
			metricLog.Info(ctx, "[TREND_ANOMALIES] Anomalous observations detected", logging.Fields{
				"anomalies":    n,
				"observations": res.Observations,
			})
		}
		for _, analysis := range res.Unavailable {
			s.metrics.UnavailableResults.WithLabelValues(analysis).Inc()
		}
		if len(res.Unavailable) > 0 {
			metricLog.Debug(ctx, "[TREND_PARTIAL] Analyses skipped for insufficient data", logging.Fields{
				"unavailable":  res.Unavailable,
				"observations": res.Observations,
			})
		}
	}

	s.logger.Debug(ctx, "[TRENDS_COMPUTED] Trends computed", logging.Fields{
		"filter":      filter.Key(),
		"rows":        len(records),
		"metrics":     len(results),
		"duration_ms": duration.Milliseconds(),
	})

	store(ctx, s.cache, s.logger, key, results)
	return results, nil
}

// lookup reads key from c. Cache failures are logged and treated as a miss.
func lookup(ctx context.Context, c cache.Cache, logger *logging.StructuredLogger, key string, dest interface{}) bool {
	hit, err := c.Get(ctx, key, dest)
	if err != nil {
		logger.Warn(ctx, "[CACHE_GET_ERROR] Cache lookup failed, computing", logging.Fields{
			"key":   key,
			"error": err.Error(),
		})
		return false
	}
	return hit
}

// store writes value under key. Failures are logged only.
func store(ctx context.Context, c cache.Cache, logger *logging.StructuredLogger, key string, value interface{}) {
	if err := c.Set(ctx, key, value); err != nil {
		logger.Warn(ctx, "[CACHE_SET_ERROR] Cache store failed", logging.Fields{
			"key":   key,
			"error": err.Error(),
		})
	}
}
