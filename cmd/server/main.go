package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ecovision/internal/analytics"
	"ecovision/internal/cache"
	"ecovision/internal/config"
	"ecovision/internal/handlers"
	"ecovision/internal/migrations"
	"ecovision/internal/repository"
	"ecovision/internal/services"
	"ecovision/pkg/database"
	"ecovision/pkg/logging"
	"ecovision/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("ecovision-api", version, cfg.LogLevel())
	defer logger.Sync()

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting EcoVision API server", logging.Fields{
		"version":     version,
		"environment": cfg.Environment,
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"db_host":     cfg.Database.Host,
		"db_name":     cfg.Database.Database,
		"cache":       cfg.Redis.Address != "",
	})

	// Metrics registry shared by the collector and /metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricsCollector := metrics.NewCollector("ecovision", registry)

	dbConfig := cfg.DatabaseConfig()
	db, err := database.NewPostgresDB(dbConfig, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate || cfg.IsDev() {
		if err := migrate(ctx, dbConfig.DSN(), logger, func(r *migrations.Runner) error { return r.Up(ctx) }); err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to apply migrations", logging.Fields{}, err)
		}
	}

	analyticsCache, err := cache.New(cfg.CacheConfig(), logger, metricsCollector)
	if err != nil {
		logger.Warn(ctx, "[CACHE_DISABLED] Redis unavailable, serving analytics uncached", logging.Fields{
			"address": cfg.Redis.Address,
			"error":   err.Error(),
		})
		analyticsCache = cache.Noop{}
	}
	defer analyticsCache.Close()

	analyzerOpts, err := cfg.AnalyzerOptions()
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Invalid analytics configuration", logging.Fields{}, err)
	}

	// Initialize repository and services
	climateRepo := repository.NewClimateRepository(db, logger, metricsCollector)
	climateService := services.NewClimateService(climateRepo, logger, metricsCollector)
	summaryService := services.NewSummaryService(climateRepo, analyticsCache, logger, metricsCollector)
	trendService := services.NewTrendService(climateRepo, analytics.NewAnalyzer(analyzerOpts...), analyticsCache, logger, metricsCollector)

	if cfg.IsDev() && cfg.Seed.File != "" {
		seeder := services.NewSeedService(climateRepo, logger, metricsCollector)
		if err := seedDev(ctx, seeder, cfg.Seed); err != nil {
			logger.Error(ctx, "[SEED_ERROR] Dev seed failed, continuing with existing data", logging.Fields{
				"seed_file": cfg.Seed.File,
			}, err)
		}
	}

	climateHandler := handlers.NewClimateHandler(climateService, summaryService, trendService, logger, metricsCollector)
	router := handlers.NewRouter(climateHandler, handlers.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	if cfg.Seed.DropOnShutdown {
		if err := migrate(ctx, dbConfig.DSN(), logger, func(r *migrations.Runner) error { return r.Down(ctx, 0) }); err != nil {
			logger.Error(ctx, "[SHUTDOWN_ERROR] Failed to drop schema", logging.Fields{}, err)
		}
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}

// migrate runs fn on a migration runner with its own connection
func migrate(ctx context.Context, dsn string, logger *logging.StructuredLogger, fn func(*migrations.Runner) error) error {
	runner, err := migrations.Open(dsn, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := runner.Close(); err != nil {
			logger.Warn(ctx, "[MIGRATE_CLOSE] Failed to close migration runner", logging.Fields{"error": err.Error()})
		}
	}()
	return fn(runner)
}

// seedDev loads the configured seed file, emptying the store first when
// cfg.Reset is set so restarts do not collide with already seeded metrics.
func seedDev(ctx context.Context, seeder *services.SeedService, cfg config.SeedConfig) error {
	if cfg.Reset {
		if err := seeder.Reset(ctx); err != nil {
			return err
		}
	}
	_, err := seeder.Seed(ctx, cfg.File, cfg.BatchSize)
	return err
}
