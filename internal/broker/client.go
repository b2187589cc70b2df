// Package broker wraps the NATS JetStream plumbing: the event stream, the
// dead-letter stream, publishing with dedup headers, and durable
// subscriptions yielding ack/reject deliveries.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Message headers carried on every published event.
const (
	HeaderEventType   = "Event-Type"
	HeaderEventID     = "Event-ID"
	HeaderPayloadHash = "Payload-Hash"
	HeaderContentType = "Content-Type"

	contentTypeJSON = "application/json"
)

const (
	consumerMaxDeliver    = 3
	consumerAckWait       = 30 * time.Second
	consumerMaxAckPending = 100
	deliveryBufferSize    = 64
)

type Config struct {
	URL           string
	StreamName    string
	SubjectPrefix string
	DLQStreamName string
	DLQSubject    string
	MaxReconnects int
	ReconnectWait time.Duration
	MaxAge        time.Duration
	DupeWindow    time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		StreamName:    "ORDER_EVENTS",
		SubjectPrefix: "orders.events",
		DLQStreamName: "ORDER_EVENTS_DLQ",
		DLQSubject:    "orders.dlq",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		MaxAge:        7 * 24 * time.Hour,
		DupeWindow:    2 * time.Hour,
	}
}

type Client struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config Config
}

// Connect establishes the NATS connection with reconnect handling and a
// JetStream context.
func Connect(cfg Config) (*Client, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	return &Client{nc: nc, js: js, config: cfg}, nil
}

// EnsureStreams creates the event and dead-letter streams when missing.
func (c *Client) EnsureStreams(ctx context.Context) error {
	eventStream := jetstream.StreamConfig{
		Name:        c.config.StreamName,
		Description: "Order domain event stream",
		Subjects:    []string{fmt.Sprintf("%s.>", c.config.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      c.config.MaxAge,
		Storage:     jetstream.FileStorage,
		Duplicates:  c.config.DupeWindow,
	}
	if err := c.ensureStream(ctx, eventStream); err != nil {
		return err
	}

	dlqStream := jetstream.StreamConfig{
		Name:        c.config.DLQStreamName,
		Description: "Dead-letter queue for poison order events",
		Subjects:    []string{c.config.DLQSubject},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      c.config.MaxAge,
		Storage:     jetstream.FileStorage,
		Duplicates:  c.config.DupeWindow,
	}
	return c.ensureStream(ctx, dlqStream)
}

func (c *Client) ensureStream(ctx context.Context, sc jetstream.StreamConfig) error {
	if _, err := c.js.Stream(ctx, sc.Name); err != nil {
		if _, err := c.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream %s: %w", sc.Name, err)
		}
		log.Info().Str("stream", sc.Name).Msg("created JetStream stream")
	}
	return nil
}

// Connected reports whether the underlying NATS connection is up.
func (c *Client) Connected() bool {
	return c.nc != nil && c.nc.IsConnected()
}

// Conn exposes the raw connection for health checks.
func (c *Client) Conn() *nats.Conn {
	return c.nc
}

func (c *Client) Close() {
	if c.nc != nil {
		c.nc.Close()
	}
}
