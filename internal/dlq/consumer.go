package dlq

import (
	"context"
	"fmt"

	"github.com/calebmch/orderhub/internal/notify"
	"github.com/rs/zerolog/log"
)

// Consumer alerts immediately for every dead-letter message. The delivery
// is acknowledged regardless of alert outcome so the queue drains.
type Consumer struct {
	alerter notify.Alerter
}

func NewConsumer(alerter notify.Alerter) *Consumer {
	return &Consumer{alerter: alerter}
}

func (c *Consumer) HandleDelivery(ctx context.Context, d Delivery) {
	entry := entryFrom(d)

	log.Warn().
		Str("message_id", entry.MessageID).
		Str("event_type", entry.EventType).
		Msg("dead-letter message received")

	subject := fmt.Sprintf("DLQ alert: %s (%s)", entry.EventType, entry.MessageID)
	body := fmt.Sprintf("A message landed in the dead-letter queue.\n\n%s", entry)
	if err := c.alerter.SendAlert(ctx, subject, body); err != nil {
		log.Error().Err(err).Str("message_id", entry.MessageID).Msg("failed to send dead-letter alert")
	}

	if err := d.Ack(); err != nil {
		log.Error().Err(err).Str("message_id", entry.MessageID).Msg("failed to ack dead-letter message")
	}
}
