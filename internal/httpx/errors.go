package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
)

// apiError is the JSON error envelope: {error, message, status, request_id}.
type apiError struct {
	Code    string
	Message string
	Status  int
	Details map[string]any
}

func newError(code, message string, status int) apiError {
	return apiError{Code: code, Message: message, Status: status}
}

// toAPIError maps domain errors onto HTTP statuses. Unknown errors become a
// generic 500 so internal details do not leak.
func toAPIError(err error) apiError {
	var stock *orders.StockError
	switch {
	case errors.As(err, &stock):
		e := newError("insufficient_stock", err.Error(), http.StatusConflict)
		e.Details = map[string]any{
			"product_id": stock.ProductID,
			"required":   stock.Required,
			"available":  stock.Available,
		}
		return e
	case errors.Is(err, orders.ErrNotFound):
		return newError("not_found", err.Error(), http.StatusNotFound)
	case errors.Is(err, orders.ErrInsufficientStock):
		return newError("insufficient_stock", err.Error(), http.StatusConflict)
	case errors.Is(err, orders.ErrInvalidTransition):
		return newError("invalid_transition", err.Error(), http.StatusConflict)
	case errors.Is(err, orders.ErrAlreadyReviewed):
		return newError("already_reviewed", err.Error(), http.StatusConflict)
	case errors.Is(err, redisx.ErrInFlight):
		return newError("request_in_flight", err.Error(), http.StatusConflict)
	case errors.Is(err, orders.ErrForbidden):
		return newError("forbidden", err.Error(), http.StatusForbidden)
	case errors.Is(err, orders.ErrInvalidInput):
		return newError("invalid_input", err.Error(), http.StatusBadRequest)
	default:
		return newError("internal_server_error", "internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, e apiError) {
	payload := map[string]any{
		"error":   e.Code,
		"message": e.Message,
		"status":  e.Status,
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		payload["request_id"] = id
	}
	for k, v := range e.Details {
		payload[k] = v
	}
	writeJSON(w, e.Status, payload)
}
