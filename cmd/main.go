package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/academyhq/tournament-engine/config"
	"github.com/academyhq/tournament-engine/db"
	"github.com/academyhq/tournament-engine/handlers"
	"github.com/academyhq/tournament-engine/repositories"
	api "github.com/academyhq/tournament-engine/routes"
	"github.com/academyhq/tournament-engine/services"
	"github.com/academyhq/tournament-engine/workers"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	txRunner := repositories.NewTxRunner(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	enrollmentRepo := repositories.NewPostgresEnrollmentRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	rankingRepo := repositories.NewPostgresRankingRepository(dbConn)
	snapshotRepo := repositories.NewPostgresQualifierSnapshotRepository(dbConn)
	rewardRepo := repositories.NewPostgresRewardRepository(dbConn)
	logger.Info("repositories initialized")

	// The pool is built before the generation service so it can serve as the
	// service's dispatcher; the service is bound back afterwards.
	generationPool := workers.NewGenerationPool(workers.GenerationPoolConfig{
		Workers:    cfg.GenerationWorkers,
		QueueSize:  cfg.GenerationQueueSize,
		MaxRetries: cfg.GenerationMaxRetries,
	}, logger)

	generationService := services.NewGenerationService(
		txRunner, tournamentRepo, enrollmentRepo, matchRepo,
		generationPool, cfg.AsyncGenerationThreshold, logger,
	)
	generationPool.Bind(generationService)

	rankingService := services.NewRankingService(txRunner, tournamentRepo, matchRepo, rankingRepo, logger)
	resultService := services.NewResultService(txRunner, matchRepo, tournamentRepo, logger)
	stageService := services.NewStageService(txRunner, tournamentRepo, matchRepo, snapshotRepo, logger)
	rewardService := services.NewRewardService(txRunner, tournamentRepo, rankingRepo, enrollmentRepo, rewardRepo, logger)
	tournamentService := services.NewTournamentService(
		txRunner, tournamentRepo, matchRepo, rankingRepo,
		rankingService, generationService, logger,
	)
	logger.Info("services initialized")

	rootCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	poolErrors := make(chan error, 1)
	go func() {
		poolErrors <- generationPool.Run(rootCtx)
	}()
	logger.Info("generation worker pool started", slog.Int("workers", cfg.GenerationWorkers))

	go func() {
		ticker := time.NewTicker(cfg.AutoStartInterval)
		defer ticker.Stop()
		logger.Info("tournament auto-start sweep scheduled", slog.Duration("interval", cfg.AutoStartInterval))

		if err := tournamentService.AutoStartDueTournaments(rootCtx, time.Now()); err != nil {
			logger.Error("auto-start sweep: initial run failed", slog.Any("error", err))
		}
		for {
			select {
			case <-rootCtx.Done():
				return
			case <-ticker.C:
				if err := tournamentService.AutoStartDueTournaments(rootCtx, time.Now()); err != nil {
					logger.Error("auto-start sweep failed", slog.Any("error", err))
				}
			}
		}
	}()

	tournamentHandler := handlers.NewTournamentHandler(tournamentService, generationService, stageService, rankingService, logger)
	matchHandler := handlers.NewMatchHandler(resultService, logger)
	rewardHandler := handlers.NewRewardHandler(rewardService, logger)

	router := chi.NewRouter()
	api.SetupRoutes(router, tournamentHandler, matchHandler, rewardHandler)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case err := <-poolErrors:
		if err != nil {
			logger.Error("generation pool error", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		} else {
			logger.Info("server shut down gracefully")
		}
		stopWorkers()
	}
}
