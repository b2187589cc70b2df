package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is the business aggregate. Monetary amounts are stored as integer
// cents to avoid floating-point drift.
type Order struct {
	ID           uuid.UUID   `json:"id"`
	CustomerName string      `json:"customer_name"`
	TotalCents   int64       `json:"total_cents"`
	Status       OrderStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
}
