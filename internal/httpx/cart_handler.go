package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

type addToCartReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type updateCartReq struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req addToCartReq
	if !decodeBody(w, r, &req) {
		return
	}
	line, err := h.Orders.AddToCart(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, line)
}

func (h *Handler) listCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	lines, err := h.Orders.ListCart(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if lines == nil {
		lines = []orders.CartLine{}
	}
	writeJSON(w, http.StatusOK, lines)
}

func (h *Handler) updateCartLine(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req updateCartReq
	if !decodeBody(w, r, &req) {
		return
	}
	line, err := h.Orders.UpdateCartQuantity(r.Context(), userID, chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

func (h *Handler) removeCartLine(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	if err := h.Orders.RemoveCartLine(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
