package httpapi

import (
	"time"

	"github.com/calebmch/orderhub/internal/models"
	"github.com/calebmch/orderhub/internal/order"
	"github.com/google/uuid"
)

type createOrderRequest struct {
	CustomerName string `json:"customer_name"`
	TotalCents   int64  `json:"total_cents"`
}

func (r createOrderRequest) validate() []string {
	var errs []string
	if r.CustomerName == "" {
		errs = append(errs, "customer_name is required")
	}
	if len(r.CustomerName) > 100 {
		errs = append(errs, "customer_name must be at most 100 characters")
	}
	if r.TotalCents <= 0 {
		errs = append(errs, "total_cents must be greater than zero")
	}
	return errs
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type orderResponse struct {
	ID           uuid.UUID `json:"id"`
	CustomerName string    `json:"customer_name"`
	TotalCents   int64     `json:"total_cents"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

func toOrderResponse(o *models.Order) orderResponse {
	return orderResponse{
		ID:           o.ID,
		CustomerName: o.CustomerName,
		TotalCents:   o.TotalCents,
		Status:       string(o.Status),
		CreatedAt:    o.CreatedAt,
	}
}

type pagedResponse struct {
	Items      []orderResponse `json:"items"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalCount int             `json:"total_count"`
}

func toPagedResponse(page *order.OrderPage) pagedResponse {
	items := make([]orderResponse, len(page.Items))
	for i := range page.Items {
		items[i] = toOrderResponse(&page.Items[i])
	}
	return pagedResponse{
		Items:      items,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalCount: page.TotalCount,
	}
}

type errorResponse struct {
	Errors []string `json:"errors"`
}

type createdResponse struct {
	ID     uuid.UUID `json:"id"`
	Replay bool      `json:"replay,omitempty"`
}
