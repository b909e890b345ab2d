package main

import (
	"context"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-routine-api/internal/repository"
	"github.com/noah-isme/campus-routine-api/internal/service"
	"github.com/noah-isme/campus-routine-api/migrations"
	"github.com/noah-isme/campus-routine-api/pkg/cache"
	"github.com/noah-isme/campus-routine-api/pkg/config"
	"github.com/noah-isme/campus-routine-api/pkg/database"
	"github.com/noah-isme/campus-routine-api/pkg/logger"
)

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

	cli := commandLine{
		out: os.Stdout,
		tokens: service.NewTokenService(service.TokenConfig{
			Secret: cfg.JWT.Secret,
			Issuer: cfg.JWT.Issuer,
			Expiry: cfg.JWT.Expiration,
		}),
	}

	if needsDatabase(os.Args) {
		db, err := database.NewPostgres(context.Background(), cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect database", zap.Error(err))
		}
		defer db.Close()

		detector := service.NewConflictDetector(cfg.Routine.MaxDurationMinutes, cfg.Routine.MinGapMinutes)
		// The in-process cache belongs to the API server; only a shared Redis cache can be invalidated from here.
		var cacheSvc *service.CacheService
		if cfg.Cache.Enabled && cfg.Cache.Backend == config.CacheBackendRedis {
			client, err := cache.NewRedis(context.Background(), cfg.Redis)
			if err != nil {
				logr.Warn("redis unavailable, cached read models will expire on their own", zap.Error(err))
			} else {
				defer client.Close()
				cacheSvc = service.NewCacheService(repository.NewRedisCacheRepository(client, logr), nil, cfg.Cache.TTL, logr, true)
			}
		}
		cli.importer = service.NewImportService(repository.NewScheduleEntryRepository(db), detector, cacheSvc, nil,
			service.ImportServiceConfig{CrossCheck: cfg.Routine.ImportCrossCheck}, logr)
		cli.migrate = func() ([]string, error) { return migrations.Up(db.DB) }
	}

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logr.Error("command failed", zap.Error(err))
		}
		os.Exit(1)
	}
}
