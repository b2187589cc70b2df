package outbox

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// MetricsCollector receives publisher telemetry. The default is a no-op;
// a real backend can be wired in without touching the worker.
type MetricsCollector interface {
	RecordBatch(total, delivered int)
	RecordPublishAttempt(eventType string, attempt int, success bool)
	RecordOutboxLag(pending int)
}

type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) RecordBatch(total, delivered int)                            {}
func (n *NoOpMetricsCollector) RecordPublishAttempt(eventType string, attempt int, ok bool) {}
func (n *NoOpMetricsCollector) RecordOutboxLag(pending int)                                 {}

// LogCollector emits telemetry as structured log events. The publisher
// binary wires it so batch throughput and lag show up without a metrics
// backend.
type LogCollector struct{}

func (c *LogCollector) RecordBatch(total, delivered int) {
	log.Debug().Int("total", total).Int("delivered", delivered).Msg("outbox batch metrics")
}

func (c *LogCollector) RecordPublishAttempt(eventType string, attempt int, success bool) {
	log.Debug().
		Str("event_type", eventType).
		Int("attempt", attempt).
		Bool("success", success).
		Msg("outbox publish attempt")
}

func (c *LogCollector) RecordOutboxLag(pending int) {
	log.Debug().Int("pending", pending).Msg("outbox lag")
}

// ObservePublish is the MetricPublisher callback.
func (c *LogCollector) ObservePublish(eventType string, duration time.Duration, success bool) {
	log.Debug().
		Str("event_type", eventType).
		Dur("duration", duration).
		Bool("success", success).
		Msg("broker publish observed")
}

// MetricPublisher wraps a Publisher with per-call duration tracking.
type MetricPublisher struct {
	publisher Publisher
	observe   func(eventType string, duration time.Duration, success bool)
}

func NewMetricPublisher(publisher Publisher, observe func(eventType string, duration time.Duration, success bool)) *MetricPublisher {
	return &MetricPublisher{publisher: publisher, observe: observe}
}

func (p *MetricPublisher) Publish(ctx context.Context, rec Record) error {
	start := time.Now()
	err := p.publisher.Publish(ctx, rec)
	p.observe(rec.EventType, time.Since(start), err == nil)
	return err
}
