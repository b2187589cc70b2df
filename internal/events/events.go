package events

import (
	"time"

	"github.com/google/uuid"
)

// Event type tags carried on the wire. The consumer side resolves decode
// functions from these, so they must stay stable across releases.
const (
	TypeOrderCreated   = "OrderCreated"
	TypeOrderPaid      = "OrderPaid"
	TypeOrderCancelled = "OrderCancelled"
)

// DomainEvent is raised by a business operation and flushed to the outbox
// in the same transaction as the write that produced it.
type DomainEvent interface {
	EventType() string
	AggregateID() uuid.UUID
	OccurredAt() time.Time
}

// OrderCreated is raised when a new order is accepted.
type OrderCreated struct {
	OrderID      uuid.UUID `json:"order_id"`
	CustomerName string    `json:"customer_name"`
	TotalCents   int64     `json:"total_cents"`
	CreatedAt    time.Time `json:"created_at"`
}

func (e OrderCreated) EventType() string      { return TypeOrderCreated }
func (e OrderCreated) AggregateID() uuid.UUID { return e.OrderID }
func (e OrderCreated) OccurredAt() time.Time  { return e.CreatedAt }

// OrderPaid is raised when a pending order transitions to paid.
type OrderPaid struct {
	OrderID uuid.UUID `json:"order_id"`
	PaidAt  time.Time `json:"paid_at"`
}

func (e OrderPaid) EventType() string      { return TypeOrderPaid }
func (e OrderPaid) AggregateID() uuid.UUID { return e.OrderID }
func (e OrderPaid) OccurredAt() time.Time  { return e.PaidAt }

// OrderCancelled is raised when a pending order is cancelled.
type OrderCancelled struct {
	OrderID     uuid.UUID `json:"order_id"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}

func (e OrderCancelled) EventType() string      { return TypeOrderCancelled }
func (e OrderCancelled) AggregateID() uuid.UUID { return e.OrderID }
func (e OrderCancelled) OccurredAt() time.Time  { return e.CancelledAt }
