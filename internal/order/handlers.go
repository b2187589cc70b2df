package order

import (
	"context"
	"fmt"

	"github.com/calebmch/orderhub/internal/events"
	"github.com/rs/zerolog/log"
)

// CreatedHandler reacts to OrderCreated events arriving through the inbox.
type CreatedHandler struct{}

func (h *CreatedHandler) Handle(ctx context.Context, ev events.DomainEvent) error {
	created, ok := ev.(events.OrderCreated)
	if !ok {
		return fmt.Errorf("unexpected event %T for %s handler", ev, events.TypeOrderCreated)
	}

	log.Info().
		Str("order_id", created.OrderID.String()).
		Str("customer", created.CustomerName).
		Int64("total_cents", created.TotalCents).
		Msg("order created event handled")

	return nil
}

// PaidHandler reacts to OrderPaid events arriving through the inbox.
type PaidHandler struct{}

func (h *PaidHandler) Handle(ctx context.Context, ev events.DomainEvent) error {
	paid, ok := ev.(events.OrderPaid)
	if !ok {
		return fmt.Errorf("unexpected event %T for %s handler", ev, events.TypeOrderPaid)
	}

	log.Info().
		Str("order_id", paid.OrderID.String()).
		Time("paid_at", paid.PaidAt).
		Msg("order paid event handled")

	return nil
}

// CancelledHandler reacts to OrderCancelled events arriving through the inbox.
type CancelledHandler struct{}

func (h *CancelledHandler) Handle(ctx context.Context, ev events.DomainEvent) error {
	cancelled, ok := ev.(events.OrderCancelled)
	if !ok {
		return fmt.Errorf("unexpected event %T for %s handler", ev, events.TypeOrderCancelled)
	}

	log.Info().
		Str("order_id", cancelled.OrderID.String()).
		Str("reason", cancelled.Reason).
		Msg("order cancelled event handled")

	return nil
}
