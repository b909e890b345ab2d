package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/campus-routine-api/api/swagger"
	"github.com/noah-isme/campus-routine-api/internal/handler"
	"github.com/noah-isme/campus-routine-api/internal/middleware"
	"github.com/noah-isme/campus-routine-api/internal/repository"
	"github.com/noah-isme/campus-routine-api/internal/service"
	"github.com/noah-isme/campus-routine-api/migrations"
	"github.com/noah-isme/campus-routine-api/pkg/cache"
	"github.com/noah-isme/campus-routine-api/pkg/config"
	"github.com/noah-isme/campus-routine-api/pkg/database"
	"github.com/noah-isme/campus-routine-api/pkg/jobs"
	"github.com/noah-isme/campus-routine-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-routine-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-routine-api/pkg/middleware/requestid"
	"github.com/noah-isme/campus-routine-api/pkg/storage"
)

// @title Campus Routine API
// @version 1.0.0
// @description Weekly class routine with conflict-checked edits, bulk import and utilization reports
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		applied, err := migrations.Up(db.DB)
		if err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
		logr.Info("migrations applied", zap.Strings("files", applied))
	}

	metrics := service.NewMetricsService()
	cacheRepo, closeCache, err := buildCacheRepository(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to init cache", zap.Error(err))
	}
	defer closeCache() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	validate := service.NewValidator()
	detector := service.NewConflictDetector(cfg.Routine.MaxDurationMinutes, cfg.Routine.MinGapMinutes)
	routineRepo := repository.NewScheduleEntryRepository(db)
	routineSvc := service.NewRoutineService(service.RoutineServiceParams{
		Repo:      routineRepo,
		Detector:  detector,
		Validator: validate,
		Cache:     cacheSvc,
		Metrics:   metrics,
		Layout:    service.NewGridLayout(cfg.Routine.GridRooms, cfg.Routine.GridTimeSlots),
		Logger:    logr,
	})
	importSvc := service.NewImportService(routineRepo, detector, cacheSvc, metrics, service.ImportServiceConfig{
		CrossCheck: cfg.Routine.ImportCrossCheck,
	}, logr)

	var reportJobs *service.ReportService
	if cfg.Reports.Enabled {
		queue, svc, err := buildReporting(ctx, cfg, db, routineSvc, validate, metrics, logr)
		if err != nil {
			logr.Fatal("failed to init reporting", zap.Error(err))
		}
		defer queue.Stop()
		reportJobs = svc
	}

	tokens := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiration,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics"))

	deps := routeDeps{
		APIPrefix: cfg.APIPrefix,
		Tokens:    tokens,
		Routines:  handler.NewRoutineHandler(routineSvc),
		Imports:   handler.NewImportHandler(importSvc, service.TemplateCSV, cfg.Routine.ImportMaxBytes),
		Metrics:   handler.NewMetricsHandler(metrics, db),
		Audit:     repository.NewAuditRepository(db),
		Logger:    logr,
	}
	if reportJobs != nil {
		deps.Reports = handler.NewReportHandler(routineSvc, reportJobs)
	} else {
		deps.Reports = handler.NewReportHandler(routineSvc, nil)
	}
	registerRoutes(r, deps)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("server shutdown", "error", err)
	}
	logr.Sugar().Infow("server stopped")
}

func buildCacheRepository(ctx context.Context, cfg *config.Config, logr *zap.Logger) (service.CacheRepository, func() error, error) {
	if cfg.Cache.Backend == config.CacheBackendRedis {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewRedisCacheRepository(client, logr)
		return repo, repo.Close, nil
	}
	repo := repository.NewMemoryCacheRepository(cache.NewMemory(cfg.Cache.TTL))
	return repo, repo.Close, nil
}

func buildReporting(ctx context.Context, cfg *config.Config, db *sqlx.DB, routines *service.RoutineService, validate *validator.Validate, metrics *service.MetricsService, logr *zap.Logger) (*jobs.Queue, *service.ReportService, error) {
	store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		return nil, nil, err
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exporter := service.NewExportService(routines, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr, nil, nil)

	reportRepo := repository.NewReportRepository(db)
	worker := service.NewReportWorker(reportRepo, exporter, cfg.Reports.WorkerRetries, logr).WithMetrics(metrics)
	queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	queue.Start(ctx)

	svc := service.NewReportService(reportRepo, queue, exporter, validate, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
	})
	svc.RecoverPendingJobs(ctx)
	svc.StartCleanup(ctx)
	return queue, svc, nil
}
