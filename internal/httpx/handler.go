package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-orders/internal/logging"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
)

// HeaderUserID carries the caller identity established by the auth layer in front of the API.
const HeaderUserID = "X-User-ID"

// HeaderIdempotencyKey makes POST /orders safe to retry.
const HeaderIdempotencyKey = "Idempotency-Key"

type IdempotencyStore interface {
	Begin(ctx context.Context, userID, key string) (orderID string, started bool, err error)
	Complete(ctx context.Context, userID, key, orderID string) error
	Abort(ctx context.Context, userID, key string) error
}

type StatusCache interface {
	Get(ctx context.Context, orderID string) (redisx.StatusEntry, bool, error)
	Set(ctx context.Context, o orders.Order) error
}

// Handler serves the cart, order and product routes. Idem and Status are
// optional; without them every request goes to the store.
type Handler struct {
	Orders *orders.Service
	Idem   IdempotencyStore
	Status StatusCache
	Log    *zap.Logger
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Post("/", h.addToCart)
		r.Get("/", h.listCart)
		r.Patch("/{id}", h.updateCartLine)
		r.Delete("/{id}", h.removeCartLine)
	})
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Get("/{id}/status", h.getOrderStatus)
		r.Patch("/{id}/status", h.updateStatus)
		r.Patch("/{id}/cancel", h.cancelOrder)
		r.Post("/{id}/payment", h.recordPayment)
		r.Post("/{id}/reviews", h.createReview)
	})
	r.Get("/products/{id}", h.getProduct)
	r.Get("/admin/orders", h.listAllOrders)
}

func (h *Handler) log() *zap.Logger { return logging.OrNop(h.Log) }

// callerID writes a 401 and returns false when the identity header is missing.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if id == "" {
		writeError(w, r, newError("unauthenticated", "missing "+HeaderUserID+" header", http.StatusUnauthorized))
		return "", false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, newError("invalid_json", "request body is not valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	e := toAPIError(err)
	if e.Status >= http.StatusInternalServerError {
		h.log().Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, r, e)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Orders.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if p.Reviews == nil {
		p.Reviews = []orders.Review{}
	}
	writeJSON(w, http.StatusOK, p)
}
