package orders

import "context"

// Store implementations return errors wrapping ErrNotFound for missing rows.

type CartStore interface {
	FindByID(ctx context.Context, id, userID string) (CartLine, error)
	// UpsertQuantity adds delta to the (user, product) line, creating it if absent.
	UpsertQuantity(ctx context.Context, userID, productID string, delta int) (CartLine, error)
	SetQuantity(ctx context.Context, id, userID string, qty int) (CartLine, error)
	Delete(ctx context.Context, id, userID string) error
	ListByUser(ctx context.Context, userID string) ([]CartLine, error)
}

type InventoryLedger interface {
	Get(ctx context.Context, productID string) (Product, error)
	// Reserve decrements quantity only if at least qty units remain, as one
	// conditional write. It returns a *StockError otherwise.
	Reserve(ctx context.Context, productID string, qty int) error
	// AppendReview stores the review and returns the recomputed overall rating.
	AppendReview(ctx context.Context, productID string, review Review) (float64, error)
}

type OrderStore interface {
	Insert(ctx context.Context, o Order) error
	FindByID(ctx context.Context, id string) (Order, error)
	FindByUserAndID(ctx context.Context, id, userID string) (Order, error)
	// ListByUser returns newest first; an empty status means all statuses.
	ListByUser(ctx context.Context, userID string, status Status) ([]Order, error)
	// List is the operator view across all users, newest first.
	List(ctx context.Context, status Status) ([]Order, error)
	// UpdateStatus writes to only if the stored status is still from and
	// returns ErrInvalidTransition when it is not.
	UpdateStatus(ctx context.Context, id string, from, to Status) error
	// MarkLineReviewed flips the line flag false->true and returns
	// ErrAlreadyReviewed when it was already set.
	MarkLineReviewed(ctx context.Context, id string, line int) error
	SetPaymentTransaction(ctx context.Context, id, transactionID string) error
}

type Repositories interface {
	Carts() CartStore
	Inventory() InventoryLedger
	Orders() OrderStore
}

// Store exposes autocommit repositories and a unit of work. Every write made
// through the Repositories passed to fn is applied together or not at all.
type Store interface {
	Repositories
	InTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error
}

// Notifier receives created orders for confirmation messaging. Failures are
// logged by the caller and never undo the order.
type Notifier interface {
	NotifyOrderCreated(ctx context.Context, o Order, products []Product, userID string) error
}
