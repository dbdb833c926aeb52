// Package memstore is an in-process orders.Store. A single mutex serialises
// units of work and every write inside InTx registers an undo step, so a
// failed unit of work leaves no trace.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

type Store struct {
	mu       sync.Mutex
	products map[string]*orders.Product
	carts    map[string]*orders.CartLine
	orders   map[string]*orders.Order

	now   func() time.Time
	newID func() string
}

func New() *Store {
	return &Store{
		products: map[string]*orders.Product{},
		carts:    map[string]*orders.CartLine{},
		orders:   map[string]*orders.Order{},
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// PutProduct inserts or replaces a product. Used for seeding.
func (s *Store) PutProduct(p orders.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := copyProduct(p)
	cp.OverallRating = orders.MeanRating(cp.Reviews)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	cp.UpdatedAt = s.now()
	s.products[p.ID] = &cp
}

func (s *Store) Carts() orders.CartStore           { return cartRepo{&unit{s: s}} }
func (s *Store) Inventory() orders.InventoryLedger { return inventoryRepo{&unit{s: s}} }
func (s *Store) Orders() orders.OrderStore         { return orderRepo{&unit{s: s}} }

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, r orders.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &unit{s: s, inTx: true}
	committed := false
	defer func() {
		if !committed {
			u.rollback()
		}
	}()

	if err := fn(ctx, u); err != nil {
		return err
	}
	committed = true
	return nil
}

// unit is one unit of work. Outside InTx each repository call takes the
// store lock itself; inside InTx the lock is already held.
type unit struct {
	s    *Store
	inTx bool
	undo []func()
}

type (
	cartRepo      struct{ *unit }
	inventoryRepo struct{ *unit }
	orderRepo     struct{ *unit }
)

func (u *unit) Carts() orders.CartStore           { return cartRepo{u} }
func (u *unit) Inventory() orders.InventoryLedger { return inventoryRepo{u} }
func (u *unit) Orders() orders.OrderStore         { return orderRepo{u} }

func (u *unit) lock() func() {
	if u.inTx {
		return func() {}
	}
	u.s.mu.Lock()
	return u.s.mu.Unlock
}

func (u *unit) onRollback(fn func()) {
	if u.inTx {
		u.undo = append(u.undo, fn)
	}
}

func (u *unit) rollback() {
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.undo = nil
}

func copyProduct(p orders.Product) orders.Product {
	if p.Reviews != nil {
		p.Reviews = append([]orders.Review(nil), p.Reviews...)
	}
	return p
}

func copyOrder(o orders.Order) orders.Order {
	if o.Lines != nil {
		o.Lines = append([]orders.OrderLine(nil), o.Lines...)
	}
	return o
}
