package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/calebmch/orderhub/internal/idempotency"
	"github.com/calebmch/orderhub/internal/models"
	"github.com/calebmch/orderhub/internal/order"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrderService struct {
	orders map[uuid.UUID]models.Order

	createErr error
	created   []order.CreateOrderRequest
}

func newFakeOrderService() *fakeOrderService {
	return &fakeOrderService{orders: make(map[uuid.UUID]models.Order)}
}

func (s *fakeOrderService) CreateOrder(ctx context.Context, req order.CreateOrderRequest) (*models.Order, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, req)
	o := models.Order{
		ID:           uuid.New(),
		CustomerName: req.CustomerName,
		TotalCents:   req.TotalCents,
		Status:       models.OrderStatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	s.orders[o.ID] = o
	return &o, nil
}

func (s *fakeOrderService) PayOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if o.Status != models.OrderStatusPending {
		return nil, order.ErrInvalidTransition
	}
	o.Status = models.OrderStatusPaid
	s.orders[id] = o
	return &o, nil
}

func (s *fakeOrderService) CancelOrder(ctx context.Context, id uuid.UUID, reason string) (*models.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if o.Status != models.OrderStatusPending {
		return nil, order.ErrInvalidTransition
	}
	o.Status = models.OrderStatusCancelled
	s.orders[id] = o
	return &o, nil
}

func (s *fakeOrderService) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return &o, nil
}

func (s *fakeOrderService) ListOrders(ctx context.Context, req order.ListOrdersRequest) (*order.OrderPage, error) {
	items := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		items = append(items, o)
	}
	return &order.OrderPage{Items: items, Page: 1, PageSize: 20, TotalCount: len(items)}, nil
}

type fakeKeyStore struct {
	records map[string]idempotency.Record
	saveErr error
}

func newFakeKeyStore() *fakeKeyStore {
	return &fakeKeyStore{records: make(map[string]idempotency.Record)}
}

func (s *fakeKeyStore) Get(ctx context.Context, key string) (*idempotency.Record, error) {
	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *fakeKeyStore) Save(ctx context.Context, rec idempotency.Record) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.records[rec.Key] = rec
	return nil
}

func newTestHandler() (*Handler, *fakeOrderService, *fakeKeyStore) {
	app := newFakeOrderService()
	keys := newFakeKeyStore()
	return NewHandler(app, keys, clockwork.NewRealClock()), app, keys
}

func doRequest(h *Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, req)
	return w
}

func TestCreateOrder(t *testing.T) {
	h, app, keys := newTestHandler()

	w := doRequest(h, http.MethodPost, "/orders",
		`{"customer_name":"Ada Lovelace","total_cents":12999}`,
		map[string]string{IdempotencyKeyHeader: "key-1"})

	require.Equal(t, http.StatusCreated, w.Code)

	var resp createdResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEqual(t, uuid.Nil, resp.ID)
	assert.False(t, resp.Replay)
	assert.Equal(t, "/orders/"+resp.ID.String(), w.Header().Get("Location"))

	require.Len(t, app.created, 1)
	assert.Equal(t, "Ada Lovelace", app.created[0].CustomerName)

	rec, ok := keys.records["key-1"]
	require.True(t, ok)
	require.NotNil(t, rec.ResourceID)
	assert.Equal(t, resp.ID, *rec.ResourceID)
}

func TestCreateOrderRequiresIdempotencyKey(t *testing.T) {
	h, app, _ := newTestHandler()

	w := doRequest(h, http.MethodPost, "/orders",
		`{"customer_name":"x","total_cents":100}`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, app.created)
}

func TestCreateOrderReplaysExistingKey(t *testing.T) {
	h, app, keys := newTestHandler()

	existingID := uuid.New()
	keys.records["key-1"] = idempotency.Record{Key: "key-1", ResourceID: &existingID}

	w := doRequest(h, http.MethodPost, "/orders",
		`{"customer_name":"x","total_cents":100}`,
		map[string]string{IdempotencyKeyHeader: "key-1"})

	require.Equal(t, http.StatusOK, w.Code)

	var resp createdResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, existingID, resp.ID)
	assert.True(t, resp.Replay)

	// No second order is created.
	assert.Empty(t, app.created)
}

func TestCreateOrderValidation(t *testing.T) {
	h, _, _ := newTestHandler()

	tests := []struct {
		name string
		body string
	}{
		{name: "missing customer name", body: `{"total_cents":100}`},
		{name: "zero total", body: `{"customer_name":"x","total_cents":0}`},
		{name: "negative total", body: `{"customer_name":"x","total_cents":-5}`},
		{name: "name too long", body: `{"customer_name":"` + strings.Repeat("a", 101) + `","total_cents":100}`},
		{name: "malformed json", body: `{nope`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(h, http.MethodPost, "/orders", tt.body,
				map[string]string{IdempotencyKeyHeader: "key-" + tt.name})
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestGetOrder(t *testing.T) {
	h, app, _ := newTestHandler()
	o, err := app.CreateOrder(context.Background(), order.CreateOrderRequest{CustomerName: "x", TotalCents: 100})
	require.NoError(t, err)

	w := doRequest(h, http.MethodGet, "/orders/"+o.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, o.ID, resp.ID)
	assert.Equal(t, "pending", resp.Status)
}

func TestGetOrderNotFound(t *testing.T) {
	h, _, _ := newTestHandler()

	w := doRequest(h, http.MethodGet, "/orders/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetOrderInvalidID(t *testing.T) {
	h, _, _ := newTestHandler()

	w := doRequest(h, http.MethodGet, "/orders/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPayOrder(t *testing.T) {
	h, app, _ := newTestHandler()
	o, err := app.CreateOrder(context.Background(), order.CreateOrderRequest{CustomerName: "x", TotalCents: 100})
	require.NoError(t, err)

	w := doRequest(h, http.MethodPost, "/orders/"+o.ID.String()+"/pay", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "paid", resp.Status)
}

func TestPayOrderConflictWhenNotPending(t *testing.T) {
	h, app, _ := newTestHandler()
	o, err := app.CreateOrder(context.Background(), order.CreateOrderRequest{CustomerName: "x", TotalCents: 100})
	require.NoError(t, err)
	_, err = app.PayOrder(context.Background(), o.ID)
	require.NoError(t, err)

	w := doRequest(h, http.MethodPost, "/orders/"+o.ID.String()+"/pay", "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelOrder(t *testing.T) {
	h, app, _ := newTestHandler()
	o, err := app.CreateOrder(context.Background(), order.CreateOrderRequest{CustomerName: "x", TotalCents: 100})
	require.NoError(t, err)

	w := doRequest(h, http.MethodPost, "/orders/"+o.ID.String()+"/cancel",
		`{"reason":"customer request"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "cancelled", resp.Status)
}

func TestListOrders(t *testing.T) {
	h, app, _ := newTestHandler()
	for i := 0; i < 3; i++ {
		_, err := app.CreateOrder(context.Background(), order.CreateOrderRequest{CustomerName: "x", TotalCents: 100})
		require.NoError(t, err)
	}

	w := doRequest(h, http.MethodGet, "/orders?page=1&page_size=20", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp pagedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Items, 3)
	assert.Equal(t, 3, resp.TotalCount)
}
