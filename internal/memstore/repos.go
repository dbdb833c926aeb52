package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

// ---- carts ----

func (r cartRepo) FindByID(ctx context.Context, id, userID string) (orders.CartLine, error) {
	defer r.lock()()
	c, ok := r.s.carts[id]
	if !ok || c.UserID != userID {
		return orders.CartLine{}, fmt.Errorf("%w: cart line %s", orders.ErrNotFound, id)
	}
	return *c, nil
}

func (r cartRepo) findCart(userID, productID string) *orders.CartLine {
	for _, c := range r.s.carts {
		if c.UserID == userID && c.ProductID == productID {
			return c
		}
	}
	return nil
}

func (r cartRepo) UpsertQuantity(ctx context.Context, userID, productID string, delta int) (orders.CartLine, error) {
	defer r.lock()()
	now := r.s.now()
	if c := r.findCart(userID, productID); c != nil {
		prevQty, prevAt := c.Quantity, c.UpdatedAt
		c.Quantity += delta
		c.UpdatedAt = now
		r.onRollback(func() { c.Quantity, c.UpdatedAt = prevQty, prevAt })
		return *c, nil
	}
	c := &orders.CartLine{
		ID:        r.s.newID(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  delta,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.s.carts[c.ID] = c
	r.onRollback(func() { delete(r.s.carts, c.ID) })
	return *c, nil
}

func (r cartRepo) SetQuantity(ctx context.Context, id, userID string, qty int) (orders.CartLine, error) {
	defer r.lock()()
	c, ok := r.s.carts[id]
	if !ok || c.UserID != userID {
		return orders.CartLine{}, fmt.Errorf("%w: cart line %s", orders.ErrNotFound, id)
	}
	prevQty, prevAt := c.Quantity, c.UpdatedAt
	c.Quantity = qty
	c.UpdatedAt = r.s.now()
	r.onRollback(func() { c.Quantity, c.UpdatedAt = prevQty, prevAt })
	return *c, nil
}

func (r cartRepo) Delete(ctx context.Context, id, userID string) error {
	defer r.lock()()
	c, ok := r.s.carts[id]
	if !ok || c.UserID != userID {
		return fmt.Errorf("%w: cart line %s", orders.ErrNotFound, id)
	}
	delete(r.s.carts, id)
	r.onRollback(func() { r.s.carts[id] = c })
	return nil
}

func (r cartRepo) ListByUser(ctx context.Context, userID string) ([]orders.CartLine, error) {
	defer r.lock()()
	var out []orders.CartLine
	for _, c := range r.s.carts {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ---- inventory ----

func (r inventoryRepo) Get(ctx context.Context, productID string) (orders.Product, error) {
	defer r.lock()()
	p, ok := r.s.products[productID]
	if !ok {
		return orders.Product{}, fmt.Errorf("%w: product %s", orders.ErrNotFound, productID)
	}
	return copyProduct(*p), nil
}

func (r inventoryRepo) Reserve(ctx context.Context, productID string, qty int) error {
	defer r.lock()()
	p, ok := r.s.products[productID]
	if !ok {
		return fmt.Errorf("%w: product %s", orders.ErrNotFound, productID)
	}
	if qty <= 0 {
		return fmt.Errorf("%w: reserve quantity must be positive", orders.ErrInvalidInput)
	}
	if p.Quantity < qty {
		return &orders.StockError{ProductID: productID, Required: qty, Available: p.Quantity}
	}
	p.Quantity -= qty
	r.onRollback(func() { p.Quantity += qty })
	return nil
}

func (r inventoryRepo) AppendReview(ctx context.Context, productID string, review orders.Review) (float64, error) {
	defer r.lock()()
	p, ok := r.s.products[productID]
	if !ok {
		return 0, fmt.Errorf("%w: product %s", orders.ErrNotFound, productID)
	}
	prevReviews, prevRating := p.Reviews, p.OverallRating
	p.Reviews = append(append([]orders.Review(nil), p.Reviews...), review)
	p.OverallRating = orders.MeanRating(p.Reviews)
	r.onRollback(func() { p.Reviews, p.OverallRating = prevReviews, prevRating })
	return p.OverallRating, nil
}

// ---- orders ----

func (r orderRepo) Insert(ctx context.Context, o orders.Order) error {
	defer r.lock()()
	if _, exists := r.s.orders[o.ID]; exists {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	cp := copyOrder(o)
	r.s.orders[o.ID] = &cp
	r.onRollback(func() { delete(r.s.orders, o.ID) })
	return nil
}

func (r orderRepo) findOrder(id string) (*orders.Order, error) {
	o, ok := r.s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", orders.ErrNotFound, id)
	}
	return o, nil
}

func (r orderRepo) FindByID(ctx context.Context, id string) (orders.Order, error) {
	defer r.lock()()
	o, err := r.findOrder(id)
	if err != nil {
		return orders.Order{}, err
	}
	return copyOrder(*o), nil
}

func (r orderRepo) FindByUserAndID(ctx context.Context, id, userID string) (orders.Order, error) {
	defer r.lock()()
	o, ok := r.s.orders[id]
	if !ok || o.UserID != userID {
		return orders.Order{}, fmt.Errorf("%w: order %s", orders.ErrNotFound, id)
	}
	return copyOrder(*o), nil
}

func (r orderRepo) ListByUser(ctx context.Context, userID string, status orders.Status) ([]orders.Order, error) {
	defer r.lock()()
	return r.list(func(o *orders.Order) bool {
		return o.UserID == userID && (status == "" || o.Status == status)
	}), nil
}

func (r orderRepo) List(ctx context.Context, status orders.Status) ([]orders.Order, error) {
	defer r.lock()()
	return r.list(func(o *orders.Order) bool { return status == "" || o.Status == status }), nil
}

func (r orderRepo) list(keep func(*orders.Order) bool) []orders.Order {
	var out []orders.Order
	for _, o := range r.s.orders {
		if keep(o) {
			out = append(out, copyOrder(*o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r orderRepo) UpdateStatus(ctx context.Context, id string, from, to orders.Status) error {
	defer r.lock()()
	o, err := r.findOrder(id)
	if err != nil {
		return err
	}
	if o.Status != from {
		return fmt.Errorf("%w: order %s is %s, not %s", orders.ErrInvalidTransition, id, o.Status, from)
	}
	prevAt := o.UpdatedAt
	o.Status = to
	o.UpdatedAt = r.s.now()
	r.onRollback(func() { o.Status, o.UpdatedAt = from, prevAt })
	return nil
}

func (r orderRepo) MarkLineReviewed(ctx context.Context, id string, line int) error {
	defer r.lock()()
	o, err := r.findOrder(id)
	if err != nil {
		return err
	}
	if line < 0 || line >= len(o.Lines) {
		return fmt.Errorf("%w: order %s has no line %d", orders.ErrNotFound, id, line)
	}
	if o.Lines[line].IsReviewed {
		return fmt.Errorf("%w: order %s line %d", orders.ErrAlreadyReviewed, id, line)
	}
	o.Lines[line].IsReviewed = true
	r.onRollback(func() { o.Lines[line].IsReviewed = false })
	return nil
}

func (r orderRepo) SetPaymentTransaction(ctx context.Context, id, transactionID string) error {
	defer r.lock()()
	o, err := r.findOrder(id)
	if err != nil {
		return err
	}
	prev := o.Payment.TransactionID
	o.Payment.TransactionID = transactionID
	r.onRollback(func() { o.Payment.TransactionID = prev })
	return nil
}
