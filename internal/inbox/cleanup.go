package inbox

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
		Interval:  6 * time.Hour,
		Retention: 30 * 24 * time.Hour,
	}
}

// CleanupWorker deletes dedup records past retention. A deleted record
// only matters if the broker redelivers a message older than the
// retention window, which the stream's own max age prevents.
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
		return fmt.Errorf("inbox cleanup worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	log.Info().
		Dur("interval", w.config.Interval).
		Dur("retention", w.config.Retention).
		Msg("inbox cleanup worker started")

	return nil
}

func (w *CleanupWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("inbox cleanup worker not running")
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()

	log.Info().Msg("inbox cleanup worker stopped")
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

// Sweep deletes dedup records older than the retention window.
func (w *CleanupWorker) Sweep(ctx context.Context) {
	cutoff := w.clock.Now().UTC().Add(-w.config.Retention)
	deleted, err := w.store.DeleteReceivedBefore(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("inbox cleanup failed")
		return
	}
	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Msg("cleaned up inbox records")
	}
}
