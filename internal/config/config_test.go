package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecovision/internal/analytics"
	"ecovision/internal/models"
	"ecovision/pkg/logging"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, EnvLocal, cfg.Environment)
	assert.False(t, cfg.IsDev())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "ecovision", cfg.Database.Database)
	assert.Empty(t, cfg.Redis.Address)
	assert.Equal(t, 5*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, logging.InfoLevel, cfg.LogLevel())
	assert.Equal(t, 4, cfg.Analytics.Concurrency)
	assert.Equal(t, analytics.SeasonMappingMeteorological, cfg.Analytics.SeasonMapping)
	assert.Equal(t, 2, cfg.Analytics.Precision)
	assert.Equal(t, 500, cfg.Seed.BatchSize)
	assert.True(t, cfg.Seed.Reset)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "eco")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "climate")
	t.Setenv("REDIS_ADDRESS", "redis:6379")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ANALYTICS_SEASON_MAPPING", "legacy")
	t.Setenv("ANALYTICS_PRECISION", "-1")
	t.Setenv("SEED_FILE", "data/sample_data.json")
	t.Setenv("SEED_DROP_ON_SHUTDOWN", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsDev())
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, logging.DebugLevel, cfg.LogLevel())
	assert.Equal(t, "data/sample_data.json", cfg.Seed.File)
	assert.True(t, cfg.Seed.DropOnShutdown)

	db := cfg.DatabaseConfig()
	assert.Equal(t, "host=db port=5432 user=eco password=secret dbname=climate sslmode=disable", db.DSN())
	assert.Equal(t, 30*time.Second, db.ConnectTimeout)

	cc := cfg.CacheConfig()
	assert.Equal(t, "redis:6379", cc.Address)
	assert.Equal(t, 90*time.Second, cc.TTL)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		stage string
	}{
		{"unknown environment", map[string]string{"APP_ENV": "qa"}, "validation"},
		{"port out of range", map[string]string{"SERVER_PORT": "70000"}, "validation"},
		{"port not a number", map[string]string{"SERVER_PORT": "http"}, "parsing"},
		{"bad season mapping", map[string]string{"ANALYTICS_SEASON_MAPPING": "tropical"}, "validation"},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}, "validation"},
		{"zero concurrency", map[string]string{"ANALYTICS_CONCURRENCY": "0"}, "validation"},
		{"idle above open", map[string]string{"DB_MAX_OPEN_CONNS": "2", "DB_MAX_IDLE_CONNS": "5"}, "validation"},
		{"drop outside dev", map[string]string{"APP_ENV": "prod", "SEED_DROP_ON_SHUTDOWN": "true"}, "validation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.stage, cfgErr.Stage)
		})
	}
}

func TestAnalyzerOptions(t *testing.T) {
	t.Setenv("ANALYTICS_SEASON_MAPPING", "legacy")
	t.Setenv("ANALYTICS_PRECISION", "-1")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	opts, err := cfg.AnalyzerOptions()
	require.NoError(t, err)
	a := analytics.NewAnalyzer(opts...)

	// February belongs to spring under the legacy mapping
	recs := []models.ClimateRecord{
		{ID: 1, MetricID: 1, MetricName: "temperature", Date: models.MustDate("2024-02-01"), Value: 1, Quality: models.QualityGood},
		{ID: 2, MetricID: 1, MetricName: "temperature", Date: models.MustDate("2024-02-02"), Value: 2, Quality: models.QualityGood},
		{ID: 3, MetricID: 1, MetricName: "temperature", Date: models.MustDate("2024-02-03"), Value: 4, Quality: models.QualityGood},
	}
	results, err := a.Analyze(t.Context(), recs)
	require.NoError(t, err)

	res := results["temperature"]
	require.NotNil(t, res.Seasonality)
	assert.Contains(t, res.Seasonality.Pattern, "spring")
	assert.NotContains(t, res.Seasonality.Pattern, "winter")
	require.NotNil(t, res.Rate)
	assert.InDelta(t, 1.5, *res.Rate, 1e-9)
}

func TestAnalyzerOptions_UnknownMapping(t *testing.T) {
	cfg := &Config{Analytics: AnalyticsConfig{SeasonMapping: "tropical"}}
	_, err := cfg.AnalyzerOptions()
	assert.Error(t, err)
}
