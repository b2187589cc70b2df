package outbox

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Store is what the publisher and cleanup workers need from the outbox
// repository.
type Store interface {
	FetchUnpublished(ctx context.Context, limit int) ([]Record, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
	DeleteDeliveredBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountPending(ctx context.Context) (int, error)
}

// Publisher delivers a single record to the broker.
type Publisher interface {
	Publish(ctx context.Context, rec Record) error
}

type Config struct {
	PollInterval  time.Duration
	BatchSize     int
	MaxAttempts   int
	RetryBaseWait time.Duration
	RetryMaxWait  time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval:  5 * time.Second,
		BatchSize:     20,
		MaxAttempts:   5,
		RetryBaseWait: 200 * time.Millisecond,
		RetryMaxWait:  5 * time.Second,
	}
}

// Worker polls pending outbox records and publishes them to the broker.
// Broker calls happen outside any open database transaction; the resulting
// state change lands in a single follow-up statement per batch.
type Worker struct {
	store     Store
	publisher Publisher
	config    Config
	clock     clockwork.Clock
	metrics   MetricsCollector

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewWorker(store Store, publisher Publisher, cfg Config, clock clockwork.Clock) *Worker {
	return &Worker{
		store:     store,
		publisher: publisher,
		config:    cfg,
		clock:     clock,
		metrics:   &NoOpMetricsCollector{},
		stopChan:  make(chan struct{}),
	}
}

// WithMetrics replaces the default no-op collector.
func (w *Worker) WithMetrics(m MetricsCollector) *Worker {
	w.metrics = m
	return w
}

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	log.Info().
		Dur("poll_interval", w.config.PollInterval).
		Int("batch_size", w.config.BatchSize).
		Int("max_attempts", w.config.MaxAttempts).
		Msg("outbox worker started")

	return nil
}

func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker not running")
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()

	log.Info().Msg("outbox worker stopped")
	return nil
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := w.clock.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	// Process immediately on start
	w.processBatch(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.Chan():
			w.processBatch(ctx)
		}
	}
}

// processBatch runs one polling pass: fetch oldest pending records,
// suppress same-hash duplicates within the batch, publish the rest under a
// per-message retry policy, then mark everything delivered in one update.
// Records whose retries exhaust stay pending for the next pass.
func (w *Worker) processBatch(ctx context.Context) {
	recs, err := w.store.FetchUnpublished(ctx, w.config.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch unpublished outbox records")
		return
	}
	if len(recs) == 0 {
		return
	}

	log.Debug().Int("count", len(recs)).Msg("processing outbox batch")

	seenHashes := make(map[string]struct{}, len(recs))
	var delivered []uuid.UUID
	for _, rec := range recs {
		if _, dup := seenHashes[rec.PayloadHash]; dup {
			log.Warn().
				Str("record_id", rec.ID.String()).
				Str("payload_hash", rec.PayloadHash).
				Msg("skipping duplicate outbox record in batch")
			delivered = append(delivered, rec.ID)
			continue
		}
		seenHashes[rec.PayloadHash] = struct{}{}

		if err := w.publishWithRetry(ctx, rec); err != nil {
			// Left pending; the next polling pass retries it.
			log.Error().Err(err).
				Str("record_id", rec.ID.String()).
				Str("event_type", rec.EventType).
				Msg("failed to publish outbox record")
			continue
		}
		delivered = append(delivered, rec.ID)
	}

	if len(delivered) > 0 {
		if err := w.store.MarkPublished(ctx, delivered, w.clock.Now().UTC()); err != nil {
			log.Error().Err(err).Msg("failed to mark outbox records published")
			return
		}
	}

	w.metrics.RecordBatch(len(recs), len(delivered))
	if pending, err := w.store.CountPending(ctx); err == nil {
		w.metrics.RecordOutboxLag(pending)
	}

	log.Info().
		Int("total", len(recs)).
		Int("delivered", len(delivered)).
		Msg("processed outbox batch")
}

func (w *Worker) publishWithRetry(ctx context.Context, rec Record) error {
	var lastErr error

	for attempt := 1; attempt <= w.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-w.stopChan:
				return fmt.Errorf("worker stopping")
			case <-w.clock.After(w.backoff(attempt)):
			}
		}

		err := w.publisher.Publish(ctx, rec)
		w.metrics.RecordPublishAttempt(rec.EventType, attempt, err == nil)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).
				Str("record_id", rec.ID.String()).
				Int("attempt", attempt).
				Msg("publish failed, retrying")
			continue
		}
		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", w.config.MaxAttempts, lastErr)
}

// backoff grows exponentially per attempt with jitter so concurrent
// failures do not retry in lockstep.
func (w *Worker) backoff(attempt int) time.Duration {
	wait := w.config.RetryBaseWait << (attempt - 2)
	if wait > w.config.RetryMaxWait || wait <= 0 {
		wait = w.config.RetryMaxWait
	}
	jitter := time.Duration(rand.Int64N(int64(wait)/2 + 1))
	return wait + jitter
}
