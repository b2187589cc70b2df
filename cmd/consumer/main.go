package main

import (
	"context"
	"database/sql"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/calebmch/orderhub/internal/broker"
	"github.com/calebmch/orderhub/internal/config"
	"github.com/calebmch/orderhub/internal/dbconfig"
	"github.com/calebmch/orderhub/internal/dispatch"
	"github.com/calebmch/orderhub/internal/dlq"
	"github.com/calebmch/orderhub/internal/events"
	"github.com/calebmch/orderhub/internal/inbox"
	"github.com/calebmch/orderhub/internal/logging"
	"github.com/calebmch/orderhub/internal/notify"
	"github.com/calebmch/orderhub/internal/order"
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

	clock := clockwork.NewRealClock()

	dispatcher := dispatch.NewDispatcher()
	dispatcher.Register(events.TypeOrderCreated, &order.CreatedHandler{})
	dispatcher.Register(events.TypeOrderPaid, &order.PaidHandler{})
	dispatcher.Register(events.TypeOrderCancelled, &order.CancelledHandler{})

	repo := inbox.NewRepository(db)
	consumer := inbox.NewConsumer(repo, dispatcher, clock)

	cleanupCfg := inbox.CleanupConfig{
		Interval:  tuning.Inbox.CleanupInterval.Std(),
		Retention: tuning.Inbox.Retention.Std(),
	}
	cleanup := inbox.NewCleanupWorker(repo, cleanupCfg, clock)
	if err := cleanup.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start inbox cleanup worker")
	}

	go func() {
		err := client.ConsumeEvents(ctx, cfg.ConsumerName, func(ctx context.Context, d *broker.Delivery) {
			consumer.HandleDelivery(ctx, d)
		})
		if err != nil {
			log.Fatal().Err(err).Msg("inbox consumer failed")
		}
	}()

	var alerter notify.Alerter
	if cfg.AlertWebhookURL != "" {
		alerter = notify.NewWebhookAlerter(cfg.AlertWebhookURL)
	} else {
		alerter = &notify.LogAlerter{}
	}

	if cfg.DLQBatchMode {
		batcher := dlq.NewBatcher(alerter, tuning.DLQ.FlushInterval.Std(), clock)
		go batcher.Run(ctx)
		go consumeDLQ(ctx, client, cfg.DLQConsumerName, batcher.HandleDelivery)
	} else {
		single := dlq.NewConsumer(alerter)
		go consumeDLQ(ctx, client, cfg.DLQConsumerName, single.HandleDelivery)
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")

	if err := cleanup.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to stop inbox cleanup worker")
	}
}

func consumeDLQ(ctx context.Context, client *broker.Client, durable string, handle func(context.Context, dlq.Delivery)) {
	err := client.ConsumeDLQ(ctx, durable, func(ctx context.Context, d *broker.Delivery) {
		handle(ctx, d)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("dead-letter consumer failed")
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
