package broker

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Delivery wraps one JetStream message behind the narrow surface the
// inbox and dead-letter consumers need.
type Delivery struct {
	msg    jetstream.Msg
	client *Client
}

func (d *Delivery) Body() []byte {
	return d.msg.Data()
}

func (d *Delivery) MessageID() string {
	return d.msg.Headers().Get(HeaderEventID)
}

func (d *Delivery) EventType() string {
	return d.msg.Headers().Get(HeaderEventType)
}

func (d *Delivery) PayloadHash() string {
	return d.msg.Headers().Get(HeaderPayloadHash)
}

func (d *Delivery) Ack() error {
	return d.msg.Ack()
}

// FinalAttempt reports whether this is the last delivery the broker will
// make: once an unacked message hits the consumer's MaxDeliver it is never
// redelivered, so whoever holds it must ack or reject it now.
func (d *Delivery) FinalAttempt() bool {
	meta, err := d.msg.Metadata()
	if err != nil {
		return false
	}
	return meta.NumDelivered >= consumerMaxDeliver
}

// Reject routes the message to the dead-letter queue and terminates it on
// the source stream, so the broker never redelivers it.
func (d *Delivery) Reject(ctx context.Context) error {
	headers := nats.Header{}
	for name, values := range d.msg.Headers() {
		headers[name] = values
	}

	_, err := d.client.js.PublishMsg(ctx, &nats.Msg{
		Subject: d.client.config.DLQSubject,
		Data:    d.msg.Data(),
		Header:  headers,
	},
		jetstream.WithMsgID(d.MessageID()),
		jetstream.WithExpectStream(d.client.config.DLQStreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to dead-letter queue: %w", err)
	}

	if err := d.msg.Term(); err != nil {
		return fmt.Errorf("terminate message: %w", err)
	}
	return nil
}

// ConsumeEvents runs a durable consumer over the event stream, invoking
// handle for every delivery until ctx is cancelled. Acknowledgment is the
// handler's responsibility.
func (c *Client) ConsumeEvents(ctx context.Context, durable string, handle func(ctx context.Context, d *Delivery)) error {
	filter := fmt.Sprintf("%s.>", c.config.SubjectPrefix)
	return c.consume(ctx, c.config.StreamName, durable, filter, handle)
}

// ConsumeDLQ runs a durable consumer over the dead-letter stream.
func (c *Client) ConsumeDLQ(ctx context.Context, durable string, handle func(ctx context.Context, d *Delivery)) error {
	return c.consume(ctx, c.config.DLQStreamName, durable, c.config.DLQSubject, handle)
}

func (c *Client) consume(ctx context.Context, streamName, durable, filter string, handle func(ctx context.Context, d *Delivery)) error {
	stream, err := c.js.Stream(ctx, streamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", streamName, err)
	}

	consumer, err := c.ensureConsumer(ctx, stream, durable, filter)
	if err != nil {
		return err
	}

	deliveries := make(chan jetstream.Msg, deliveryBufferSize)
	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		select {
		case deliveries <- msg:
		case <-ctx.Done():
			_ = msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start JetStream consumer %s: %w", durable, err)
	}
	defer cc.Stop()

	log.Info().
		Str("stream", streamName).
		Str("durable", durable).
		Str("filter", filter).
		Msg("consuming deliveries")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("durable", durable).Msg("consumer shutting down")
			return nil
		case msg := <-deliveries:
			handle(ctx, &Delivery{msg: msg, client: c})
		}
	}
}

func (c *Client) ensureConsumer(ctx context.Context, stream jetstream.Stream, durable, filter string) (jetstream.Consumer, error) {
	cfg := jetstream.ConsumerConfig{
		Name:          durable,
		Durable:       durable,
		FilterSubject: filter,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    consumerMaxDeliver,
		AckWait:       consumerAckWait,
		MaxAckPending: consumerMaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	}

	consumer, err := stream.Consumer(ctx, durable)
	if err != nil {
		consumer, err = stream.CreateConsumer(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create consumer %s: %w", durable, err)
		}
		log.Info().Str("durable", durable).Msg("created JetStream consumer")
	}
	return consumer, nil
}
