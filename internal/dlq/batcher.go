package dlq

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/calebmch/orderhub/internal/notify"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const captureBufferSize = 256

// Batcher accumulates dead-letter entries and flushes one aggregated alert
// per period. The subscription handler sends captured entries over a
// channel; the flushing goroutine is the buffer's only owner. The buffer
// is in-memory and lost on restart, acceptable for an alerting
// side-channel.
type Batcher struct {
	alerter  notify.Alerter
	interval time.Duration
	clock    clockwork.Clock
	captures chan Entry
}

func NewBatcher(alerter notify.Alerter, interval time.Duration, clock clockwork.Clock) *Batcher {
	return &Batcher{
		alerter:  alerter,
		interval: interval,
		clock:    clock,
		captures: make(chan Entry, captureBufferSize),
	}
}

// HandleDelivery captures the entry for the next flush and acknowledges.
func (b *Batcher) HandleDelivery(ctx context.Context, d Delivery) {
	entry := entryFrom(d)

	select {
	case b.captures <- entry:
		log.Warn().
			Str("message_id", entry.MessageID).
			Str("event_type", entry.EventType).
			Msg("dead-letter message captured for batch alert")
	case <-ctx.Done():
	}

	if err := d.Ack(); err != nil {
		log.Error().Err(err).Str("message_id", entry.MessageID).Msg("failed to ack dead-letter message")
	}
}

// Run owns the buffer: it drains captures and flushes on each tick until
// ctx is cancelled.
func (b *Batcher) Run(ctx context.Context) {
	ticker := b.clock.NewTicker(b.interval)
	defer ticker.Stop()

	var buf []Entry
	for {
		select {
		case <-ctx.Done():
			log.Info().Int("buffered", len(buf)).Msg("dead-letter batcher shutting down")
			return
		case entry := <-b.captures:
			buf = append(buf, entry)
		case <-ticker.Chan():
			buf = b.flush(ctx, buf)
		}
	}
}

// flush sends one aggregated alert and returns an empty buffer. A failed
// send still clears the buffer; the entries were logged at capture time.
func (b *Batcher) flush(ctx context.Context, buf []Entry) []Entry {
	if len(buf) == 0 {
		return buf
	}

	lines := make([]string, len(buf))
	for i, entry := range buf {
		lines[i] = entry.String()
	}
	subject := fmt.Sprintf("DLQ batch alert (%d messages)", len(buf))
	body := fmt.Sprintf("The following messages landed in the dead-letter queue:\n\n%s",
		strings.Join(lines, "\n\n"))

	if err := b.alerter.SendAlert(ctx, subject, body); err != nil {
		log.Error().Err(err).Int("count", len(buf)).Msg("failed to send dead-letter batch alert")
	} else {
		log.Info().Int("count", len(buf)).Msg("sent dead-letter batch alert")
	}

	return nil
}
