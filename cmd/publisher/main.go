package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/calebmch/orderhub/internal/broker"
	"github.com/calebmch/orderhub/internal/config"
	"github.com/calebmch/orderhub/internal/dbconfig"
	"github.com/calebmch/orderhub/internal/logging"
	"github.com/calebmch/orderhub/internal/outbox"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Setup(cfg.LogLevel)

	tuning, err := config.LoadTuning(cfg.TuningPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load tuning")
	}

	db, err := setupDatabase()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	brokerCfg := broker.DefaultConfig()
	brokerCfg.URL = cfg.NATSURL
	client, err := broker.Connect(brokerCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to NATS")
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.EnsureStreams(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure streams")
	}

	repo := outbox.NewRepository(db)
	clock := clockwork.NewRealClock()

	workerCfg := outbox.DefaultConfig()
	workerCfg.PollInterval = tuning.Outbox.PollInterval.Std()
	workerCfg.BatchSize = tuning.Outbox.BatchSize
	workerCfg.MaxAttempts = tuning.Outbox.MaxAttempts

	metrics := &outbox.LogCollector{}
	publisher := outbox.NewMetricPublisher(broker.NewEventPublisher(client), metrics.ObservePublish)

	worker := outbox.NewWorker(repo, publisher, workerCfg, clock).WithMetrics(metrics)
	if err := worker.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start outbox worker")
	}

	cleanupCfg := outbox.CleanupConfig{
		Interval:  tuning.Outbox.CleanupInterval.Std(),
		Retention: tuning.Outbox.Retention.Std(),
	}
	cleanup := outbox.NewCleanupWorker(repo, cleanupCfg, clock)
	if err := cleanup.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start outbox cleanup worker")
	}

	health := outbox.NewHealthChecker(db, client.Conn(), repo, tuning.Outbox.LagThreshold)
	go serveHealth(cfg.Port, health)

	<-ctx.Done()
	log.Info().Msg("shutting down")

	if err := worker.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to stop outbox worker")
	}
	if err := cleanup.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to stop outbox cleanup worker")
	}
}

func setupDatabase() (*sql.DB, error) {
	dbCfg, err := dbconfig.Load()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", dbCfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func serveHealth(port string, health *outbox.HealthChecker) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", health.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info().Str("addr", server.Addr).Msg("health server listening")
	if err := server.ListenAndServe(); err != nil {
		log.Error().Err(err).Msg("health server stopped")
	}
}
