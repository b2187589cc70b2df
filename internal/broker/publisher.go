package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/calebmch/orderhub/internal/events"
	"github.com/calebmch/orderhub/internal/outbox"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// EventPublisher delivers outbox records to the event stream. The message
// id equals the outbox record id, so the stream's duplicate window drops
// republications of the same record after a crash between publish and
// mark-published.
type EventPublisher struct {
	client *Client
}

func NewEventPublisher(client *Client) *EventPublisher {
	return &EventPublisher{client: client}
}

func (p *EventPublisher) Publish(ctx context.Context, rec outbox.Record) error {
	subject := fmt.Sprintf("%s.%s", p.client.config.SubjectPrefix, rec.EventType)

	env := events.Envelope{
		EventID:    rec.ID,
		EventType:  rec.EventType,
		OccurredAt: rec.OccurredAt,
		Payload:    json.RawMessage(rec.Payload),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	ack, err := p.client.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			HeaderEventType:   []string{rec.EventType},
			HeaderEventID:     []string{rec.ID.String()},
			HeaderPayloadHash: []string{rec.PayloadHash},
			HeaderContentType: []string{contentTypeJSON},
		},
	},
		jetstream.WithMsgID(rec.ID.String()),
		jetstream.WithExpectStream(p.client.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("record_id", rec.ID.String()).
		Uint64("sequence", ack.Sequence).
		Msg("published to JetStream")

	return nil
}
