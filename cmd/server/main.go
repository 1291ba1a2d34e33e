package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/ai"
	"github.com/stemsi/exstem-mock/internal/config"
	"github.com/stemsi/exstem-mock/internal/database"
	"github.com/stemsi/exstem-mock/internal/handler"
	"github.com/stemsi/exstem-mock/internal/logger"
	"github.com/stemsi/exstem-mock/internal/metrics"
	"github.com/stemsi/exstem-mock/internal/middleware"
	"github.com/stemsi/exstem-mock/internal/model"
	"github.com/stemsi/exstem-mock/internal/questionbank"
	"github.com/stemsi/exstem-mock/internal/repository"
	"github.com/stemsi/exstem-mock/internal/router"
	"github.com/stemsi/exstem-mock/internal/service"
	"github.com/stemsi/exstem-mock/internal/validator"
	"github.com/stemsi/exstem-mock/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem Mock CBT")

	// ─── Initialize Validator & Metrics ────────────────────────────────
	validator.Setup()
	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Load Question Bank ────────────────────────────────────────────
	var (
		bank *questionbank.Bank
		err  error
	)
	if cfg.QuestionBankPath != "" {
		bank, err = questionbank.Load(cfg.QuestionBankPath)
	} else {
		bank, err = questionbank.Default()
	}
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.QuestionBankPath).Msg("Failed to load question bank")
	}
	log.Info().Int("questions", bank.Len()).Msg("Question bank loaded")

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── AI Adapter ────────────────────────────────────────────────────
	gen, err := ai.NewGenerator(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.AIProvider).Msg("Failed to create AI generator")
	}
	analyzer := ai.NewAnalyzer(gen, cfg.AITimeout, log)
	if !analyzer.Online() {
		log.Warn().Msg("API_KEY not set, AI analysis runs in offline mode")
	}

	// ─── Initialize Repositories ───────────────────────────────────────
	attemptRepo := repository.NewAttemptRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	overlay := service.NewOverlayStore(rdb, cfg.OverlayTTL)
	examService, err := service.NewExamService(ctx, bank, service.ExamOptions{
		Duration:     cfg.ExamDuration,
		TickInterval: cfg.TickInterval,
		WarningTTL:   cfg.WarningTTL,
		MaxWarnings:  cfg.MaxWarnings,
	}, rdb, overlay, analyzer, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create exam service")
	}
	tokenService := service.NewTokenService(cfg)
	resultService := service.NewResultService(examService, overlay, analyzer, log)
	historyService := service.NewHistoryService(attemptRepo)
	dashboardService := service.NewDashboardService(bank, model.Candidate{
		Name:       cfg.CandidateName,
		RollNumber: cfg.CandidateRollNumber,
	}, cfg.ExamDuration)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Exam:      handler.NewExamHandler(examService, tokenService, log),
		Result:    handler.NewResultHandler(resultService, log),
		History:   handler.NewHistoryHandler(historyService, log),
		Dashboard: handler.NewDashboardHandler(dashboardService),
		WS:        handler.NewWSHandler(examService, log, cfg.AllowedOrigins),
		System:    handler.NewSystemHandler(pool, rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	flagWorker := worker.NewFlagWorker(attemptRepo, rdb, log)
	resultWorker := worker.NewResultWorker(attemptRepo, rdb, log)

	workers.Add(2)
	go func() {
		defer workers.Done()
		flagWorker.Start(workerCtx)
	}()
	go func() {
		defer workers.Done()
		resultWorker.Start(workerCtx)
	}()

	explainLimiter := middleware.NewRateLimiter(cfg.ExplainRatePerMinute, time.Minute)
	limiterStop := make(chan struct{})
	go explainLimiter.Cleanup(limiterStop)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, router.Deps{
		Tokens:         tokenService,
		Sessions:       examService,
		ExplainLimiter: explainLimiter,
	}, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	close(limiterStop)

	// 2. Stop the timer and wait for pending AI analysis to land in the overlay.
	cancel()
	examService.Close()

	// 3. Stop background workers; each flushes its buffer before returning.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
