package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-shop-orders/internal/memstore"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
)

type memIdem struct {
	mu   sync.Mutex
	keys map[string]string
}

func (m *memIdem) Begin(_ context.Context, userID, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := userID + "/" + key
	v, ok := m.keys[k]
	if !ok {
		m.keys[k] = ""
		return "", true, nil
	}
	if v == "" {
		return "", false, redisx.ErrInFlight
	}
	return v, false, nil
}

func (m *memIdem) Complete(_ context.Context, userID, key, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[userID+"/"+key] = orderID
	return nil
}

func (m *memIdem) Abort(_ context.Context, userID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, userID+"/"+key)
	return nil
}

type memStatus struct {
	mu      sync.Mutex
	entries map[string]redisx.StatusEntry
	hits    int
}

func (m *memStatus) Get(_ context.Context, orderID string) (redisx.StatusEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[orderID]
	if ok {
		m.hits++
	}
	return e, ok, nil
}

func (m *memStatus) Set(_ context.Context, o orders.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[o.ID] = redisx.StatusEntry{UserID: o.UserID, Status: o.Status, UpdatedAt: o.UpdatedAt}
	return nil
}

type testAPI struct {
	router *chi.Mux
	idem   *memIdem
	status *memStatus
}

func newTestAPI(t *testing.T) testAPI {
	t.Helper()
	store := memstore.New()
	store.PutProduct(orders.Product{ID: "A", SKU: "SKU-A", Name: "Mug", PriceCents: 1000, Quantity: 10})
	store.PutProduct(orders.Product{ID: "B", SKU: "SKU-B", Name: "Tea", PriceCents: 500, Quantity: 1})
	svc, err := orders.NewService(orders.ServiceDeps{Store: store})
	require.NoError(t, err)

	api := testAPI{
		router: NewRouter(nil, 0),
		idem:   &memIdem{keys: map[string]string{}},
		status: &memStatus{entries: map[string]redisx.StatusEntry{}},
	}
	h := &Handler{Orders: svc, Idem: api.idem, Status: api.status}
	h.Register(api.router)
	return api
}

func (a testAPI) do(t *testing.T, method, path, user string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set(HeaderUserID, user)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a testAPI) addToCart(t *testing.T, user, product string, qty int) orders.CartLine {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/cart", user, addToCartReq{ProductID: product, Quantity: qty})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[orders.CartLine](t, rec)
}

func (a testAPI) createOrder(t *testing.T, user string, method string, lineIDs ...string) *httptest.ResponseRecorder {
	t.Helper()
	return a.do(t, http.MethodPost, "/orders", user, createOrderReq{
		CartLineIDs:      lineIDs,
		Payment:          orders.Payment{Method: method},
		Delivery:         orders.DeliveryInfo{CustomerName: "Lan"},
		ShippingFeeCents: 300,
	})
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMissingUserIsUnauthenticated(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "unauthenticated", body["error"])
	assert.NotEmpty(t, body["request_id"])
}

func TestCartRoutes(t *testing.T) {
	api := newTestAPI(t)
	line := api.addToCart(t, "u1", "A", 2)
	merged := api.addToCart(t, "u1", "A", 1)
	assert.Equal(t, line.ID, merged.ID)
	assert.Equal(t, 3, merged.Quantity)

	rec := api.do(t, http.MethodGet, "/cart", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]orders.CartLine](t, rec), 1)

	rec = api.do(t, http.MethodGet, "/cart", "u2", nil)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = api.do(t, http.MethodPatch, "/cart/"+line.ID, "u1", updateCartReq{Quantity: 5})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, decode[orders.CartLine](t, rec).Quantity)

	rec = api.do(t, http.MethodDelete, "/cart/"+line.ID, "u2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = api.do(t, http.MethodDelete, "/cart/"+line.ID, "u1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodPost, "/cart", "u1", addToCartReq{ProductID: "A", Quantity: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.do(t, http.MethodPost, "/cart", "u1", addToCartReq{ProductID: "nope", Quantity: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidJSON(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/cart", bytes.NewBufferString("{"))
	req.Header.Set(HeaderUserID, "u1")
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", decode[map[string]any](t, rec)["error"])
}

func TestCreateOrderFlow(t *testing.T) {
	api := newTestAPI(t)
	a := api.addToCart(t, "u1", "A", 2)
	b := api.addToCart(t, "u1", "B", 1)

	rec := api.createOrder(t, "u1", orders.PaymentCOD, a.ID, b.ID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	o := decode[orders.Order](t, rec)
	assert.Equal(t, 2800, o.TotalCents)
	assert.Equal(t, orders.StatusConfirmed, o.Status)

	rec = api.do(t, http.MethodGet, "/orders/"+o.ID, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(t, http.MethodGet, "/orders/"+o.ID, "u2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/orders?status=confirmed", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]orders.Order](t, rec), 1)
	rec = api.do(t, http.MethodGet, "/orders?status=pending", "u1", nil)
	assert.JSONEq(t, "[]", rec.Body.String())
	rec = api.do(t, http.MethodGet, "/orders?status=lost", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminOrderListing(t *testing.T) {
	api := newTestAPI(t)
	a := api.addToCart(t, "u1", "A", 1)
	require.Equal(t, http.StatusCreated, api.createOrder(t, "u1", "CARD", a.ID).Code)
	b := api.addToCart(t, "u2", "A", 1)
	require.Equal(t, http.StatusCreated, api.createOrder(t, "u2", orders.PaymentCOD, b.ID).Code)

	rec := api.do(t, http.MethodGet, "/admin/orders", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]orders.Order](t, rec), 2)

	rec = api.do(t, http.MethodGet, "/admin/orders?status=PENDING", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[[]orders.Order](t, rec)
	require.Len(t, pending, 1)
	assert.Equal(t, "u1", pending[0].UserID)

	rec = api.do(t, http.MethodGet, "/admin/orders?status=delivered", "", nil)
	assert.JSONEq(t, "[]", rec.Body.String())
	rec = api.do(t, http.MethodGet, "/admin/orders?status=lost", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	api := newTestAPI(t)
	b := api.addToCart(t, "u1", "B", 2)

	rec := api.createOrder(t, "u1", orders.PaymentCOD, b.ID)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "insufficient_stock", body["error"])
	assert.Equal(t, "B", body["product_id"])
	assert.EqualValues(t, 1, body["available"])
	assert.EqualValues(t, 2, body["required"])
}

func TestCreateOrderIdempotencyKey(t *testing.T) {
	api := newTestAPI(t)
	a := api.addToCart(t, "u1", "A", 1)

	send := func() *httptest.ResponseRecorder {
		return api.do(t, http.MethodPost, "/orders", "u1", createOrderReq{
			CartLineIDs: []string{a.ID},
			Payment:     orders.Payment{Method: orders.PaymentCOD},
		}, HeaderIdempotencyKey, "key-1")
	}

	first := send()
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	retry := send()
	require.Equal(t, http.StatusOK, retry.Code, retry.Body.String())
	assert.Equal(t, decode[orders.Order](t, first).ID, decode[orders.Order](t, retry).ID)

	// A failed attempt releases its key.
	rec := api.do(t, http.MethodPost, "/orders", "u1", createOrderReq{
		CartLineIDs: []string{"missing"},
		Payment:     orders.Payment{Method: orders.PaymentCOD},
	}, HeaderIdempotencyKey, "key-2")
	require.Equal(t, http.StatusNotFound, rec.Code)
	_, held := api.idem.keys["u1/key-2"]
	assert.False(t, held)

	api.idem.keys["u1/key-3"] = ""
	rec = api.do(t, http.MethodPost, "/orders", "u1", createOrderReq{
		CartLineIDs: []string{a.ID},
		Payment:     orders.Payment{Method: orders.PaymentCOD},
	}, HeaderIdempotencyKey, "key-3")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "request_in_flight", decode[map[string]any](t, rec)["error"])
}

func TestStatusRoutes(t *testing.T) {
	api := newTestAPI(t)
	a := api.addToCart(t, "u1", "A", 1)
	o := decode[orders.Order](t, api.createOrder(t, "u1", "CARD", a.ID))
	require.Equal(t, orders.StatusPending, o.Status)

	rec := api.do(t, http.MethodGet, "/orders/"+o.ID+"/status", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orders.StatusPending, decode[orderStatusResp](t, rec).Status)
	assert.Equal(t, 1, api.status.hits, "status served from cache written at creation")

	rec = api.do(t, http.MethodGet, "/orders/"+o.ID+"/status", "u2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodPost, "/orders/"+o.ID+"/payment", "", recordPaymentReq{TransactionID: "tx-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, orders.StatusConfirmed, decode[orders.Order](t, rec).Status)

	rec = api.do(t, http.MethodGet, "/orders/"+o.ID+"/status", "u1", nil)
	assert.Equal(t, orders.StatusConfirmed, decode[orderStatusResp](t, rec).Status)

	rec = api.do(t, http.MethodPatch, "/orders/"+o.ID+"/cancel", "u1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPatch, "/orders/"+o.ID+"/status", "", updateStatusReq{Status: "pending"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = api.do(t, http.MethodPatch, "/orders/"+o.ID+"/status", "", updateStatusReq{Status: "shipped"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodPatch, "/orders/"+o.ID+"/status", "", updateStatusReq{Status: "Delivered"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orders.StatusDelivered, decode[orders.Order](t, rec).Status)
}

func TestCancelCODOrder(t *testing.T) {
	api := newTestAPI(t)
	a := api.addToCart(t, "u1", "A", 1)
	o := decode[orders.Order](t, api.createOrder(t, "u1", orders.PaymentCOD, a.ID))

	rec := api.do(t, http.MethodPatch, "/orders/"+o.ID+"/cancel", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orders.StatusCancelled, decode[orders.Order](t, rec).Status)
}

func TestReviewRoute(t *testing.T) {
	api := newTestAPI(t)
	a := api.addToCart(t, "u1", "A", 1)
	o := decode[orders.Order](t, api.createOrder(t, "u1", orders.PaymentCOD, a.ID))
	review := createReviewReq{ProductID: "A", Rating: 4, Comment: "nice"}

	rec := api.do(t, http.MethodPost, "/orders/"+o.ID+"/reviews", "u1", review)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodPatch, "/orders/"+o.ID+"/status", "", updateStatusReq{Status: "delivered"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodPost, "/orders/"+o.ID+"/reviews", "u1", review)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.InDelta(t, 4.0, decode[orders.ReviewResult](t, rec).OverallRating, 1e-9)

	rec = api.do(t, http.MethodPost, "/orders/"+o.ID+"/reviews", "u1", review)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_reviewed", decode[map[string]any](t, rec)["error"])

	rec = api.do(t, http.MethodGet, "/products/A", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[orders.Product](t, rec)
	assert.Len(t, p.Reviews, 1)
	assert.Equal(t, 9, p.Quantity)
}

func TestToAPIErrorHidesInternalErrors(t *testing.T) {
	e := toAPIError(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, e.Status)
	assert.Equal(t, "internal server error", e.Message)
}

func TestRecovererReturnsJSON(t *testing.T) {
	r := NewRouter(nil, 0)
	r.Get("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_server_error", decode[map[string]any](t, rec)["error"])
}
