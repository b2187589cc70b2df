package order

import (
	"errors"
	"time"

	"github.com/calebmch/orderhub/internal/events"
	"github.com/calebmch/orderhub/internal/models"
	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

type CreateOrderRequest struct {
	CustomerName string
	TotalCents   int64
}

type ListOrdersRequest struct {
	Page     int
	PageSize int
	SortBy   string
	Desc     bool
}

type OrderPage struct {
	Items      []models.Order
	Page       int
	PageSize   int
	TotalCount int
}

// New builds a pending order and returns it together with the events it
// raised. Operations return their events instead of buffering them on the
// aggregate so the outbox writer consumes them explicitly.
func New(customerName string, totalCents int64, now time.Time) (models.Order, []events.DomainEvent) {
	o := models.Order{
		ID:           uuid.New(),
		CustomerName: customerName,
		TotalCents:   totalCents,
		Status:       models.OrderStatusPending,
		CreatedAt:    now,
	}
	raised := []events.DomainEvent{
		events.OrderCreated{
			OrderID:      o.ID,
			CustomerName: o.CustomerName,
			TotalCents:   o.TotalCents,
			CreatedAt:    now,
		},
	}
	return o, raised
}

// Pay transitions a pending order to paid.
func Pay(o models.Order, now time.Time) (models.Order, []events.DomainEvent, error) {
	if o.Status != models.OrderStatusPending {
		return o, nil, ErrInvalidTransition
	}
	o.Status = models.OrderStatusPaid
	raised := []events.DomainEvent{
		events.OrderPaid{OrderID: o.ID, PaidAt: now},
	}
	return o, raised, nil
}

// Cancel transitions a pending order to cancelled.
func Cancel(o models.Order, reason string, now time.Time) (models.Order, []events.DomainEvent, error) {
	if o.Status != models.OrderStatusPending {
		return o, nil, ErrInvalidTransition
	}
	o.Status = models.OrderStatusCancelled
	raised := []events.DomainEvent{
		events.OrderCancelled{OrderID: o.ID, Reason: reason, CancelledAt: now},
	}
	return o, raised, nil
}
