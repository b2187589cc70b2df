package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type CleanupConfig struct {
	Interval  time.Duration
	Retention time.Duration
}

func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		Interval:  time.Hour,
		Retention: 7 * 24 * time.Hour,
	}
}

// CleanupWorker periodically deletes delivered records past retention.
// Failures are logged and retried on the next period; the publisher is
// never blocked by cleanup.
type CleanupWorker struct {
	store  Store
	config CleanupConfig
	clock  clockwork.Clock

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewCleanupWorker(store Store, cfg CleanupConfig, clock clockwork.Clock) *CleanupWorker {
	return &CleanupWorker{
		store:    store,
		config:   cfg,
		clock:    clock,
		stopChan: make(chan struct{}),
	}
}

func (w *CleanupWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox cleanup worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	log.Info().
		Dur("interval", w.config.Interval).
		Dur("retention", w.config.Retention).
		Msg("outbox cleanup worker started")

	return nil
}

func (w *CleanupWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox cleanup worker not running")
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()

	log.Info().Msg("outbox cleanup worker stopped")
	return nil
}

func (w *CleanupWorker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := w.clock.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.Chan():
			w.Sweep(ctx)
		}
	}
}

// Sweep deletes delivered records older than the retention window.
func (w *CleanupWorker) Sweep(ctx context.Context) {
	cutoff := w.clock.Now().UTC().Add(-w.config.Retention)
	deleted, err := w.store.DeleteDeliveredBefore(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("outbox cleanup failed")
		return
	}
	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Msg("cleaned up delivered outbox records")
	}
}
