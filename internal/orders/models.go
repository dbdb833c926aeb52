package orders

import "time"

// PaymentCOD is cash-on-delivery; such orders skip the payment confirmation step.
const PaymentCOD = "COD"

type CartLine struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Review struct {
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is the inventory view of a catalog product.
// Quantity is only ever decremented through InventoryLedger.Reserve.
type Product struct {
	ID            string    `json:"id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	PriceCents    int       `json:"price_cents"`
	Quantity      int       `json:"quantity"`
	Reviews       []Review  `json:"reviews"`
	OverallRating float64   `json:"overall_rating"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Payment struct {
	Method        string `json:"method"`
	TransactionID string `json:"transaction_id,omitempty"`
}

func (p Payment) IsCOD() bool { return p.Method == PaymentCOD }

type DeliveryInfo struct {
	CustomerName   string `json:"customer_name"`
	PhoneNumber    string `json:"phone_number"`
	AddressDetails string `json:"address_details"`
	Ward           string `json:"ward"`
	District       string `json:"district"`
	Province       string `json:"province"`
}

type OrderLine struct {
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int    `json:"unit_price_cents"`
	IsReviewed     bool   `json:"is_reviewed"`
}

// Order is immutable after insert except for Status, Lines[i].IsReviewed
// and Payment.TransactionID.
type Order struct {
	ID               string       `json:"id"`
	UserID           string       `json:"user_id"`
	Lines            []OrderLine  `json:"lines"`
	Payment          Payment      `json:"payment"`
	Delivery         DeliveryInfo `json:"delivery"`
	ShippingFeeCents int          `json:"shipping_fee_cents"`
	TotalCents       int          `json:"total_cents"`
	Status           Status       `json:"status"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// MeanRating is the plain arithmetic mean of all ratings, 0 for none.
func MeanRating(reviews []Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	total := 0
	for _, r := range reviews {
		total += r.Rating
	}
	return float64(total) / float64(len(reviews))
}
