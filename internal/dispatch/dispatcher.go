// Package dispatch routes domain events to their registered handlers.
// Registration happens once at startup against stable event-type tags, so
// resolution is a map lookup with no runtime type introspection.
package dispatch

import (
	"context"
	"fmt"

	"github.com/calebmch/orderhub/internal/events"
	"github.com/rs/zerolog/log"
)

// Handler processes one domain event. Handlers must tolerate duplicate and
// out-of-order delivery; cross-aggregate ordering is not guaranteed.
type Handler interface {
	Handle(ctx context.Context, ev events.DomainEvent) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, ev events.DomainEvent) error

func (f HandlerFunc) Handle(ctx context.Context, ev events.DomainEvent) error {
	return f(ctx, ev)
}

type Dispatcher struct {
	handlers map[string][]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string][]Handler)}
}

// Register appends a handler for an event type. Handlers run in
// registration order.
func (d *Dispatcher) Register(eventType string, h Handler) {
	d.handlers[eventType] = append(d.handlers[eventType], h)
}

// Dispatch invokes the handlers registered for the event's type
// sequentially, stopping at the first failure. Retry policy belongs to the
// caller, not the dispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, ev events.DomainEvent) error {
	handlers := d.handlers[ev.EventType()]
	if len(handlers) == 0 {
		log.Debug().Str("event_type", ev.EventType()).Msg("no handlers registered for event")
		return nil
	}

	for i, h := range handlers {
		if err := h.Handle(ctx, ev); err != nil {
			return fmt.Errorf("handler %d for %s failed: %w", i, ev.EventType(), err)
		}
	}
	return nil
}
