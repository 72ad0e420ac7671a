package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/comitanigiacomo/kanso-habits/internal/adapters/cache"
	adapterHTTP "github.com/comitanigiacomo/kanso-habits/internal/adapters/handler/http"
	"github.com/comitanigiacomo/kanso-habits/internal/adapters/repository"
	"github.com/comitanigiacomo/kanso-habits/internal/config"
	"github.com/comitanigiacomo/kanso-habits/internal/core/calendar"
	"github.com/comitanigiacomo/kanso-habits/internal/core/domain"
	"github.com/comitanigiacomo/kanso-habits/internal/core/services"
	"github.com/comitanigiacomo/kanso-habits/internal/core/workers"
	"github.com/comitanigiacomo/kanso-habits/internal/logger"
)

// @title                       Kanso Habits API
// @version                     1.0
// @description                 Habit tracking with monthly progress, all-done streaks and a yearly heatmap.
// @BasePath                    /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	startTime := time.Now()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}

	if err := logger.Init(logger.Config{Debug: cfg.LogDebug, Dir: cfg.LogDir}); err != nil {
		logger.Fatal("failed to initialise logger", "err", err)
	}

	logger.Info("connecting to database", "host", cfg.DBHost, "db", cfg.DBName)

	db, err := sqlx.Connect("pgx", cfg.DSN())
	if err != nil {
		logger.Fatal("failed to connect to database", "err", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := repository.EnsureSchema(ctx, db); err != nil {
		logger.Fatal("failed to apply schema", "err", err)
	}
	logger.Info("database ready")

	var rdb *redis.Client
	if cfg.RedisHost != "" {
		rdb, err = cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("redis unavailable, running without cache and rate limiting", "err", err)
			rdb = nil
		} else {
			defer rdb.Close()
			logger.Info("redis connected", "host", cfg.RedisHost)
		}
	}

	var habitRepo domain.HabitRepository = repository.NewPostgresHabitRepository(db)
	var completionRepo domain.CompletionRepository = repository.NewPostgresCompletionRepository(db)
	userRepo := repository.NewPostgresUserRepository(db.DB)

	if cfg.LocalCachePath != "" {
		store, err := repository.OpenSQLiteStore(ctx, cfg.LocalCachePath)
		if err != nil {
			logger.Warn("local mirror disabled", "path", cfg.LocalCachePath, "err", err)
		} else {
			defer store.Close()
			habitRepo = repository.NewOfflineHabitRepository(habitRepo, store)
			completionRepo = repository.NewOfflineCompletionRepository(completionRepo, store)
			logger.Info("local mirror enabled", "path", store.Path())
		}
	}

	var summaries services.SummaryCache = services.NoopSummaryCache{}
	if rdb != nil {
		habitRepo = repository.NewCachedHabitRepository(habitRepo, rdb)
		completionRepo = repository.NewCachedCompletionRepository(completionRepo, rdb)
		summaries = cache.NewRedisSummaryCache(rdb, cache.DefaultSummaryTTL)
	}

	days := calendar.NewYearDays(cfg.Location)

	statsService := services.NewStatsService(habitRepo, completionRepo, summaries, days)

	summaryWorker := workers.NewSummaryWorker(statsService, 100)
	summaryWorker.Start(ctx)

	completionService := services.NewCompletionService(completionRepo, habitRepo, summaries, summaryWorker)
	habitService := services.NewHabitService(habitRepo, summaries)
	authService := services.NewAuthService(userRepo)
	tokenService := services.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL, userRepo)

	router := adapterHTTP.NewRouter(adapterHTTP.RouterDependencies{
		AuthHandler:   adapterHTTP.NewAuthHandler(authService, tokenService),
		HabitHandler:  adapterHTTP.NewHabitHandler(habitService),
		ChecksHandler: adapterHTTP.NewChecksHandler(completionService),
		StatsHandler:  adapterHTTP.NewStatsHandler(statsService),
		Tokens:        tokenService,
		DB:            db,
		Redis:         rdb,
		RateLimit:     cfg.RateLimit,
		StartTime:     startTime,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("kanso habits running", "addr", "http://localhost:"+cfg.Port, "tz", cfg.Location.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("stop signal received, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "err", err)
	}

	select {
	case <-summaryWorker.Done():
	case <-shutdownCtx.Done():
		logger.Warn("summary worker did not stop in time")
	}

	logger.Info("server stopped gracefully")
}
