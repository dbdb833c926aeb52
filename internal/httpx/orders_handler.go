package httpx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

type createOrderReq struct {
	CartLineIDs      []string            `json:"cart_line_ids"`
	Payment          orders.Payment      `json:"payment"`
	Delivery         orders.DeliveryInfo `json:"delivery"`
	ShippingFeeCents int                 `json:"shipping_fee_cents"`
}

type updateStatusReq struct {
	Status string `json:"status"`
}

type recordPaymentReq struct {
	TransactionID string `json:"transaction_id"`
}

type createReviewReq struct {
	ProductID string `json:"product_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

type orderStatusResp struct {
	OrderID   string        `json:"order_id"`
	Status    orders.Status `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req createOrderReq
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()

	// Fast path for retries. The store stays the source of truth; Redis only
	// remembers which order a key produced.
	idemKey := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	useIdem := idemKey != "" && h.Idem != nil
	if useIdem {
		existing, started, err := h.Idem.Begin(ctx, userID, idemKey)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if !started {
			o, err := h.Orders.GetOrder(ctx, userID, existing)
			if err != nil {
				h.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, o)
			return
		}
	}

	o, err := h.Orders.CreateOrder(ctx, orders.CreateOrderInput{
		UserID:           userID,
		CartLineIDs:      req.CartLineIDs,
		Payment:          req.Payment,
		Delivery:         req.Delivery,
		ShippingFeeCents: req.ShippingFeeCents,
	})
	if err != nil {
		if useIdem {
			if aerr := h.Idem.Abort(context.WithoutCancel(ctx), userID, idemKey); aerr != nil {
				h.log().Warn("idempotency abort", zap.Error(aerr))
			}
		}
		h.fail(w, r, err)
		return
	}

	if useIdem {
		if err := h.Idem.Complete(ctx, userID, idemKey, o.ID); err != nil {
			h.log().Warn("idempotency complete", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	list, err := h.Orders.ListOrders(r.Context(), userID, orders.Status(strings.ToLower(r.URL.Query().Get("status"))))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

// listAllOrders is operator-only like the status and payment routes; the
// gateway in front of the API restricts it.
func (h *Handler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.Orders.ListAllOrders(r.Context(), orders.Status(strings.ToLower(r.URL.Query().Get("status"))))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	o, err := h.Orders.GetOrder(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "id")
	ctx := r.Context()

	if h.Status != nil {
		e, hit, err := h.Status.Get(ctx, orderID)
		if err != nil {
			h.log().Warn("status cache read", zap.String("order_id", orderID), zap.Error(err))
		}
		if hit && e.UserID == userID {
			writeJSON(w, http.StatusOK, orderStatusResp{OrderID: orderID, Status: e.Status, UpdatedAt: e.UpdatedAt})
			return
		}
	}

	o, err := h.Orders.GetOrder(ctx, userID, orderID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, orderStatusResp{OrderID: o.ID, Status: o.Status, UpdatedAt: o.UpdatedAt})
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if !decodeBody(w, r, &req) {
		return
	}
	to, err := orders.ParseStatus(req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	o, err := h.Orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cacheStatus(r.Context(), o)
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	o, err := h.Orders.CancelOrder(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cacheStatus(r.Context(), o)
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentReq
	if !decodeBody(w, r, &req) {
		return
	}
	o, err := h.Orders.RecordPayment(r.Context(), chi.URLParam(r, "id"), req.TransactionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cacheStatus(r.Context(), o)
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) createReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req createReviewReq
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.Orders.CreditReview(r.Context(), orders.ReviewInput{
		OrderID:   chi.URLParam(r, "id"),
		UserID:    userID,
		ProductID: req.ProductID,
		Comment:   req.Comment,
		Rating:    req.Rating,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) cacheStatus(ctx context.Context, o orders.Order) {
	if h.Status == nil {
		return
	}
	if err := h.Status.Set(ctx, o); err != nil {
		h.log().Warn("status cache write", zap.String("order_id", o.ID), zap.Error(err))
	}
}
