package main

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/noahdhickman/Quodsi-API-sub001/internal/handler"
	mid "github.com/noahdhickman/Quodsi-API-sub001/internal/middleware"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/model"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/repository"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/service"
	"github.com/noahdhickman/Quodsi-API-sub001/pkg/cache"
	"github.com/noahdhickman/Quodsi-API-sub001/pkg/config"
	"github.com/noahdhickman/Quodsi-API-sub001/pkg/database"
	"github.com/noahdhickman/Quodsi-API-sub001/pkg/jwtutil"
	"github.com/noahdhickman/Quodsi-API-sub001/pkg/logger"
	"github.com/noahdhickman/Quodsi-API-sub001/pkg/validate"
	"github.com/noahdhickman/Quodsi-API-sub001/prometheus"
)

func main() {
	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       appConfig.Log.Level,
		Environment: appConfig.Server.Env,
		ServiceName: appConfig.ServiceName,
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting simulation-service", appConfig.LogConfig()...)

	// Initialize JWT utility
	jwtutil.Initialize(&appConfig.JWT)
	log.Info("JWT utility initialized")

	// Initialize Prometheus metrics
	prometheus.InitMetrics(appConfig)
	log.Info("Prometheus metrics initialized",
		zap.String("metrics_prefix", appConfig.Metrics.Prefix))

	// Initialize repositories
	var (
		models    repository.ModelRepository
		analyses  repository.AnalysisRepository
		scenarios repository.ScenarioRepository
	)
	if appConfig.DB.Enabled {
		db, err := database.InitDB(&appConfig.DB)
		if err != nil {
			log.Fatal("Failed to initialize database", zap.Error(err))
		}
		if err := database.MigrateModels(
			&model.SimulationModel{},
			&model.Analysis{},
			&model.Scenario{},
		); err != nil {
			log.Fatal("Failed to run migrations", zap.Error(err))
		}
		models = repository.NewGormModelRepository(db)
		analyses = repository.NewGormAnalysisRepository(db)
		scenarios = repository.NewGormScenarioRepository(db)
		log.Info("Database connection established")
	} else {
		models = repository.NewMemoryModelRepository()
		analyses = repository.NewMemoryAnalysisRepository()
		scenarios = repository.NewMemoryScenarioRepository()
		log.Warn("Database disabled, using in-memory repositories")
	}

	// Initialize the optional statistics cache
	var kv cache.KVStore
	if appConfig.Cache.Enabled {
		redisKV := cache.NewRedisKVStore(&appConfig.Cache)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisKV.Ping(ctx); err != nil {
			log.Warn("Redis unreachable, statistics caching disabled", zap.Error(err))
		} else {
			kv = redisKV
			log.Info("Statistics cache enabled", zap.String("addr", appConfig.Cache.Addr))
		}
		cancel()
	}

	// Initialize services
	modelSvc := service.NewModelService(models, log)
	analysisSvc := service.NewAnalysisService(analyses, models, log)
	scenarioSvc := service.NewScenarioService(scenarios, analyses, log)
	lifecycleSvc := service.NewLifecycleService(scenarios, analyses, models, clock.New(), log)
	statsSvc := service.NewStatsService(models, analyses, scenarios, kv, appConfig.Cache.StatsTTL, log)

	// Initialize handlers
	modelHandler := handler.NewModelHandler(modelSvc)
	analysisHandler := handler.NewAnalysisHandler(analysisSvc)
	scenarioHandler := handler.NewScenarioHandler(scenarioSvc)
	lifecycleHandler := handler.NewLifecycleHandler(lifecycleSvc)
	statsHandler := handler.NewStatsHandler(statsSvc)

	// Initialize Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validate.New()

	// Middleware
	e.Use(middleware.Recover())
	e.Use(mid.RequestIDMiddleware)
	e.Use(mid.LoggingMiddleware)
	e.Use(mid.MetricsMiddleware)

	// Metrics endpoint
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Health check endpoint
	e.GET("/health", handler.Health)

	// Model API routes - Apply auth middleware to validate JWT and extract tenant ID
	modelAPI := e.Group("/api/models", mid.AuthMiddleware)
	modelAPI.GET("", modelHandler.List)
	modelAPI.GET("/:id", modelHandler.Get)
	modelAPI.POST("", modelHandler.Create)
	modelAPI.PUT("/:id", modelHandler.Update)
	modelAPI.DELETE("/:id", modelHandler.Delete)
	modelAPI.POST("/:id/copy", modelHandler.Copy)

	// Analysis API routes
	analysisAPI := e.Group("/api/analyses", mid.AuthMiddleware)
	analysisAPI.GET("", analysisHandler.List)
	analysisAPI.GET("/:id", analysisHandler.Get)
	analysisAPI.POST("", analysisHandler.Create)
	analysisAPI.PUT("/:id", analysisHandler.Update)
	analysisAPI.DELETE("/:id", analysisHandler.Delete)
	analysisAPI.POST("/:id/copy", analysisHandler.Copy)

	// Scenario API routes, including the execution lifecycle
	scenarioAPI := e.Group("/api/scenarios", mid.AuthMiddleware)
	scenarioAPI.GET("", scenarioHandler.List)
	scenarioAPI.GET("/:id", scenarioHandler.Get)
	scenarioAPI.POST("", scenarioHandler.Create)
	scenarioAPI.POST("/bulk", scenarioHandler.BulkCreate)
	scenarioAPI.PUT("/:id", scenarioHandler.Update)
	scenarioAPI.DELETE("/:id", scenarioHandler.Delete)
	scenarioAPI.POST("/:id/copy", scenarioHandler.Copy)
	scenarioAPI.POST("/:id/prepare", lifecycleHandler.Prepare)
	scenarioAPI.POST("/:id/start", lifecycleHandler.Start)
	scenarioAPI.POST("/:id/progress", lifecycleHandler.Progress)
	scenarioAPI.POST("/:id/complete", lifecycleHandler.Complete)
	scenarioAPI.POST("/:id/cancel", lifecycleHandler.Cancel)
	scenarioAPI.GET("/:id/status", lifecycleHandler.Status)

	// Statistics API routes
	statsAPI := e.Group("/api/statistics", mid.AuthMiddleware)
	statsAPI.GET("/summary", statsHandler.Summary)

	// Start server
	port := appConfig.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Server error", zap.Error(err))
	}
}
