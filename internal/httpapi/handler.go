// Package httpapi exposes the order endpoints. The write path returns as
// soon as the local transaction commits; event delivery is asynchronous
// and never visible to API callers.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/calebmch/orderhub/internal/idempotency"
	"github.com/calebmch/orderhub/internal/models"
	"github.com/calebmch/orderhub/internal/order"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// IdempotencyKeyHeader must be set on POST /orders.
const IdempotencyKeyHeader = "Idempotency-Key"

// OrderService is what the endpoints need from the order application.
type OrderService interface {
	CreateOrder(ctx context.Context, req order.CreateOrderRequest) (*models.Order, error)
	PayOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	CancelOrder(ctx context.Context, id uuid.UUID, reason string) (*models.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, req order.ListOrdersRequest) (*order.OrderPage, error)
}

// KeyStore persists idempotency keys for the create endpoint.
type KeyStore interface {
	Get(ctx context.Context, key string) (*idempotency.Record, error)
	Save(ctx context.Context, rec idempotency.Record) error
}

type Handler struct {
	app   OrderService
	idem  KeyStore
	clock clockwork.Clock
}

func NewHandler(app OrderService, idem KeyStore, clock clockwork.Clock) *Handler {
	return &Handler{app: app, idem: idem, clock: clock}
}

// Routes registers all order endpoints on a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", h.createOrder)
	mux.HandleFunc("GET /orders", h.listOrders)
	mux.HandleFunc("GET /orders/{id}", h.getOrder)
	mux.HandleFunc("POST /orders/{id}/pay", h.payOrder)
	mux.HandleFunc("POST /orders/{id}/cancel", h.cancelOrder)
	return mux
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get(IdempotencyKeyHeader)
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing "+IdempotencyKeyHeader+" header")
		return
	}

	existing, err := h.idem.Get(r.Context(), key)
	if err != nil {
		h.serverError(w, err)
		return
	}
	if existing != nil && existing.ResourceID != nil {
		log.Info().Str("key", key).Msg("idempotent replay")
		writeJSON(w, http.StatusOK, createdResponse{ID: *existing.ResourceID, Replay: true})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Errors: errs})
		return
	}

	o, err := h.app.CreateOrder(r.Context(), order.CreateOrderRequest{
		CustomerName: req.CustomerName,
		TotalCents:   req.TotalCents,
	})
	if err != nil {
		h.serverError(w, err)
		return
	}

	rec := idempotency.Record{Key: key, CreatedAt: h.clock.Now().UTC(), ResourceID: &o.ID}
	if err := h.idem.Save(r.Context(), rec); err != nil {
		// The order is committed; a lost key only costs replay detection.
		log.Error().Err(err).Str("key", key).Msg("failed to save idempotency record")
	}

	w.Header().Set("Location", "/orders/"+o.ID.String())
	writeJSON(w, http.StatusCreated, createdResponse{ID: o.ID})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.app.GetOrder(r.Context(), id)
	if err != nil {
		h.domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	desc, _ := strconv.ParseBool(q.Get("desc"))

	result, err := h.app.ListOrders(r.Context(), order.ListOrdersRequest{
		Page:     page,
		PageSize: pageSize,
		SortBy:   q.Get("sort_by"),
		Desc:     desc,
	})
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPagedResponse(result))
}

func (h *Handler) payOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.app.PayOrder(r.Context(), id)
	if err != nil {
		h.domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req cancelOrderRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	o, err := h.app.CancelOrder(r.Context(), id, req.Reason)
	if err != nil {
		h.domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, order.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "order is not in a state that allows this operation")
	default:
		h.serverError(w, err)
	}
}

func (h *Handler) serverError(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Errors: []string{msg}})
}
