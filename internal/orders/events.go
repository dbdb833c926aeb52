package orders

import (
	"encoding/json"
	"time"
)

const EventOrderCreated = "OrderCreated"

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type LinePayload struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int    `json:"unit_price_cents"`
}

type OrderCreatedPayload struct {
	OrderID          string        `json:"order_id"`
	UserID           string        `json:"user_id"`
	Status           Status        `json:"status"`
	PaymentMethod    string        `json:"payment_method"`
	Recipient        DeliveryInfo  `json:"recipient"`
	Lines            []LinePayload `json:"lines"`
	ShippingFeeCents int           `json:"shipping_fee_cents"`
	TotalCents       int           `json:"total_cents"`
}

// NewOrderCreatedPayload joins order lines with their product snapshots.
func NewOrderCreatedPayload(o Order, products []Product, userID string) OrderCreatedPayload {
	names := make(map[string]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	lines := make([]LinePayload, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, LinePayload{
			ProductID:      l.ProductID,
			ProductName:    names[l.ProductID],
			Qty:            l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
		})
	}
	return OrderCreatedPayload{
		OrderID:          o.ID,
		UserID:           userID,
		Status:           o.Status,
		PaymentMethod:    o.Payment.Method,
		Recipient:        o.Delivery,
		Lines:            lines,
		ShippingFeeCents: o.ShippingFeeCents,
		TotalCents:       o.TotalCents,
	}
}
