package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vytor/promptfix/internal/api"
	"github.com/vytor/promptfix/internal/catalog"
	"github.com/vytor/promptfix/internal/cleanup"
	"github.com/vytor/promptfix/internal/clock"
	"github.com/vytor/promptfix/internal/config"
	"github.com/vytor/promptfix/internal/db"
	"github.com/vytor/promptfix/internal/evaluation"
	"github.com/vytor/promptfix/internal/events"
	"github.com/vytor/promptfix/internal/generation"
	"github.com/vytor/promptfix/internal/jobs"
	"github.com/vytor/promptfix/internal/llm"
	"github.com/vytor/promptfix/internal/logger"
	"github.com/vytor/promptfix/internal/repository"
	"github.com/vytor/promptfix/internal/repository/memory"
	"github.com/vytor/promptfix/internal/repository/redisstore"
	"github.com/vytor/promptfix/internal/repository/sqlstore"
	"github.com/vytor/promptfix/internal/services"
	"github.com/vytor/promptfix/internal/session"
	"github.com/vytor/promptfix/internal/worker"
)

func main() {
	cfg := config.Load()

	// Initialize logger
	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithFormat(logger.ParseFormat(cfg.LogFormat)),
		logger.WithColors(true),
	)
	logger.SetDefault(log)

	log.Info("===========================================")
	log.Info("PromptFix Server Starting")
	log.Info("===========================================")

	if err := cfg.Validate(); err != nil {
		log.Fatal("%v", err)
	}
	log.Info("configuration loaded")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("store_backend=%s", cfg.StoreBackend)
	log.Debug("llm_base_url=%s", cfg.LLMBaseURL)
	log.Debug("judge_model=%s generation_model=%s", cfg.JudgeModel, cfg.GenerationModel)
	log.Debug("llm_timeout=%v", cfg.LLMTimeout)
	log.Debug("session_max_age=%v sweep_interval=%v", cfg.SessionMaxAge, cfg.SweepInterval)
	log.Debug("event_worker_count=%d event_queue_size=%d", cfg.EventWorkerCount, cfg.EventQueueSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open player store
	repo, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("failed to open %s player store: %v", cfg.StoreBackend, err)
	}
	defer func() {
		log.Debug("closing player store")
		if err := closeStore.Close(); err != nil {
			log.Warn("error closing player store: %v", err)
		}
	}()

	// Load scenarios
	scenarios := catalog.Default()
	if cfg.ScenariosPath != "" {
		scenarios, err = catalog.LoadFile(ctx, cfg.ScenariosPath)
		if err != nil {
			log.Fatal("failed to load scenarios: %v", err)
		}
	}
	log.Info("loaded %d scenarios in %d categories", scenarios.Count(), len(scenarios.Categories()))

	// Model provider
	client, err := llm.NewClient(llm.Config{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Timeout: cfg.LLMTimeout,
	})
	if err != nil {
		log.Fatal("failed to create model client: %v", err)
	}

	// Event publishing
	var publisher events.Publisher = events.NewLogPublisher()
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.EventsQueue)
		if err != nil {
			log.Fatal("failed to create event publisher: %v", err)
		}
		publisher = amqpPublisher
	}
	eventPool := worker.NewPool(cfg.EventWorkerCount, cfg.EventQueueSize)
	eventPool.Start(ctx)

	// Initialize services
	clk := clock.Real()
	gameService := services.NewGameService(
		session.NewManager(repo, clk),
		repo,
		scenarios,
		generation.NewResponseGenerator(client, generation.Config{
			Model:       cfg.GenerationModel,
			Temperature: cfg.GenerationTemperature,
		}),
		evaluation.NewRoundEvaluator(client, evaluation.JudgeConfig{
			Model:       cfg.JudgeModel,
			Temperature: cfg.JudgeTemperature,
		}),
		jobs.NewWorkerQueue(eventPool, publisher),
		clk,
		services.GameConfig{
			LeaderboardSize:    cfg.LeaderboardSize,
			AllowedEmailDomain: cfg.AllowedEmailDomain,
			RoundTimeout:       roundTimeout(cfg.LLMTimeout),
		},
	)

	cleanup.NewSweeper(gameService, cfg.SweepInterval, cfg.SessionMaxAge).Start(ctx)

	srv := api.NewServer(gameService, cfg.CORSAllowedOrigins)

	// Configure HTTP server. No write timeout: round submissions wait on the
	// model and the round stream is a long-lived WebSocket.
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start HTTP server
	go func() {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	log.Info("received signal %v, initiating graceful shutdown", sig)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Debug("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error: %v", err)
	}

	// Flush queued events before stopping the sweeper and closing the broker
	log.Debug("stopping event pool")
	eventPool.Stop()
	cancel()
	if err := publisher.Close(); err != nil {
		log.Warn("error closing event publisher: %v", err)
	}

	log.Info("===========================================")
	log.Info("PromptFix Server Stopped")
	log.Info("===========================================")
}

// openStore builds the configured PlayerRepository and the closer for its
// underlying connection.
func openStore(ctx context.Context, cfg config.Config) (repository.PlayerRepository, io.Closer, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		database, err := db.Open(ctx, db.DriverPostgres, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return sqlstore.NewPlayerRepository(database), database, nil
	case config.BackendRedis:
		client, err := redisstore.Connect(ctx, redisstore.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		return redisstore.NewPlayerRepository(client, cfg.RedisKeyPrefix), client, nil
	case config.BackendMemory:
		return memory.NewPlayerRepository(), io.NopCloser(nil), nil
	default:
		database, err := db.Open(ctx, db.DriverSQLite, cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return sqlstore.NewPlayerRepository(database), database, nil
	}
}

// roundTimeout covers one generation call, the parallel judge calls and the
// store write.
func roundTimeout(llmTimeout time.Duration) time.Duration {
	if llmTimeout <= 0 {
		return 0
	}
	return 2*llmTimeout + 15*time.Second
}
