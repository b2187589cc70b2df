package inbox

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/calebmch/orderhub/internal/events"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Store is what the consumer and cleanup worker need from the inbox
// repository.
type Store interface {
	Exists(ctx context.Context, payloadHash string) (bool, error)
	Insert(ctx context.Context, rec Record) error
	DeleteReceivedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Dispatcher hands a decoded event to its registered handlers.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev events.DomainEvent) error
}

// Delivery is one broker message. Ack confirms processing; Reject routes
// the message to the dead-letter queue without requeueing. FinalAttempt
// reports that the broker will not redeliver after this attempt.
type Delivery interface {
	Body() []byte
	MessageID() string
	EventType() string
	PayloadHash() string
	FinalAttempt() bool
	Ack() error
	Reject(ctx context.Context) error
}

// Consumer processes broker deliveries effectively-once: the dedup record
// is committed before dispatch, and the delivery is acknowledged only
// after dispatch returns.
type Consumer struct {
	store      Store
	dispatcher Dispatcher
	clock      clockwork.Clock
}

func NewConsumer(store Store, dispatcher Dispatcher, clock clockwork.Clock) *Consumer {
	return &Consumer{
		store:      store,
		dispatcher: dispatcher,
		clock:      clock,
	}
}

// HandleDelivery processes a single delivery. Errors never propagate to
// the subscription loop: transient store failures leave the message
// unacknowledged for redelivery, except on the broker's final attempt,
// where the message is routed to the dead-letter queue instead of being
// silently dropped. Everything else is acked or rejected here.
func (c *Consumer) HandleDelivery(ctx context.Context, d Delivery) {
	hash := strings.TrimSpace(d.PayloadHash())
	if hash == "" {
		// Malformed: without a hash the message cannot be deduplicated,
		// so it is dropped rather than processed.
		log.Warn().
			Str("message_id", d.MessageID()).
			Msg("delivery missing payload hash header, skipping")
		c.ack(d)
		return
	}

	exists, err := c.store.Exists(ctx, hash)
	if err != nil {
		log.Error().Err(err).Str("payload_hash", hash).Msg("failed to check inbox record")
		c.retryOrExpire(ctx, d)
		return
	}
	if exists {
		log.Debug().
			Str("message_id", d.MessageID()).
			Str("payload_hash", hash).
			Msg("duplicate delivery suppressed")
		c.ack(d)
		return
	}

	// Commit the dedup record before dispatch: a crash between dispatch
	// and ack must not run handlers twice on redelivery.
	rec := Record{PayloadHash: hash, ReceivedAt: c.clock.Now().UTC()}
	if err := c.store.Insert(ctx, rec); err != nil {
		log.Error().Err(err).Str("payload_hash", hash).Msg("failed to insert inbox record")
		c.retryOrExpire(ctx, d)
		return
	}

	var env events.Envelope
	if err := json.Unmarshal(d.Body(), &env); err != nil {
		log.Error().Err(err).
			Str("message_id", d.MessageID()).
			Msg("undeserializable envelope, routing to dead letter")
		c.reject(ctx, d)
		return
	}

	ev, err := events.Decode(d.EventType(), env.Payload)
	if err != nil {
		log.Error().Err(err).
			Str("message_id", d.MessageID()).
			Str("event_type", d.EventType()).
			Msg("failed to decode event, routing to dead letter")
		c.reject(ctx, d)
		return
	}

	if err := c.dispatcher.Dispatch(ctx, ev); err != nil {
		log.Error().Err(err).
			Str("message_id", d.MessageID()).
			Str("event_type", d.EventType()).
			Msg("handler dispatch failed, routing to dead letter")
		c.reject(ctx, d)
		return
	}

	log.Info().
		Str("message_id", d.MessageID()).
		Str("event_type", d.EventType()).
		Str("payload_hash", hash).
		Msg("delivery processed")

	c.ack(d)
}

// retryOrExpire leaves the delivery unacked so the broker redelivers it,
// unless this was the last attempt: an unacked final delivery would expire
// out of the stream unseen, so it goes to the dead-letter queue instead.
func (c *Consumer) retryOrExpire(ctx context.Context, d Delivery) {
	if !d.FinalAttempt() {
		return
	}
	log.Error().
		Str("message_id", d.MessageID()).
		Str("event_type", d.EventType()).
		Msg("delivery attempts exhausted, routing to dead letter")
	c.reject(ctx, d)
}

func (c *Consumer) ack(d Delivery) {
	if err := d.Ack(); err != nil {
		log.Error().Err(err).Str("message_id", d.MessageID()).Msg("failed to ack delivery")
	}
}

func (c *Consumer) reject(ctx context.Context, d Delivery) {
	if err := d.Reject(ctx); err != nil {
		log.Error().Err(err).Str("message_id", d.MessageID()).Msg("failed to reject delivery")
	}
}
