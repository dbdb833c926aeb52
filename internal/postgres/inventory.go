package postgres

import (
	"context"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

func (r inventoryRepo) Get(ctx context.Context, productID string) (orders.Product, error) {
	var p orders.Product
	err := r.q.QueryRow(ctx, `
		SELECT id, sku, name, price_cents, quantity, overall_rating, created_at, updated_at
		FROM products WHERE id=$1`, productID,
	).Scan(&p.ID, &p.SKU, &p.Name, &p.PriceCents, &p.Quantity, &p.OverallRating, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return orders.Product{}, notFound(err, "product", productID)
	}
	p.Reviews, err = r.reviews(ctx, productID)
	if err != nil {
		return orders.Product{}, err
	}
	return p, nil
}

func (r inventoryRepo) reviews(ctx context.Context, productID string) ([]orders.Review, error) {
	rows, err := r.q.Query(ctx, `
		SELECT user_id, rating, comment, created_at
		FROM product_reviews WHERE product_id=$1 ORDER BY id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Review
	for rows.Next() {
		var rv orders.Review
		if err := rows.Scan(&rv.UserID, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

// Reserve is a single conditional UPDATE: the sufficiency check and the
// decrement happen in the same statement, so concurrent reservations for
// one product can never drive stock below zero.
func (r inventoryRepo) Reserve(ctx context.Context, productID string, qty int) error {
	ct, err := r.q.Exec(ctx, `
		UPDATE products SET quantity = quantity - $2, updated_at = now()
		WHERE id=$1 AND quantity >= $2`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	var available int
	if err := r.q.QueryRow(ctx, `SELECT quantity FROM products WHERE id=$1`, productID).Scan(&available); err != nil {
		return notFound(err, "product", productID)
	}
	return &orders.StockError{ProductID: productID, Required: qty, Available: available}
}

// AppendReview locks the product row so concurrent reviews recompute the
// mean over the same list they were appended to.
func (r inventoryRepo) AppendReview(ctx context.Context, productID string, review orders.Review) (float64, error) {
	var locked string
	if err := r.q.QueryRow(ctx, `SELECT id FROM products WHERE id=$1 FOR UPDATE`, productID).Scan(&locked); err != nil {
		return 0, notFound(err, "product", productID)
	}
	if _, err := r.q.Exec(ctx, `
		INSERT INTO product_reviews(product_id, user_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		productID, review.UserID, review.Rating, review.Comment, review.CreatedAt,
	); err != nil {
		return 0, err
	}

	all, err := r.reviews(ctx, productID)
	if err != nil {
		return 0, err
	}
	rating := orders.MeanRating(all)
	if _, err := r.q.Exec(ctx,
		`UPDATE products SET overall_rating=$2, updated_at=now() WHERE id=$1`, productID, rating); err != nil {
		return 0, err
	}
	return rating, nil
}
