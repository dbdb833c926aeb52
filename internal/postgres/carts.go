package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

const cartColumns = `id, user_id, product_id, quantity, created_at, updated_at`

func scanCart(row pgx.Row) (orders.CartLine, error) {
	var c orders.CartLine
	err := row.Scan(&c.ID, &c.UserID, &c.ProductID, &c.Quantity, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r cartRepo) FindByID(ctx context.Context, id, userID string) (orders.CartLine, error) {
	c, err := scanCart(r.q.QueryRow(ctx,
		`SELECT `+cartColumns+` FROM cart_items WHERE id=$1 AND user_id=$2`, id, userID))
	if err != nil {
		return orders.CartLine{}, notFound(err, "cart line", id)
	}
	return c, nil
}

// UpsertQuantity relies on UNIQUE(user_id, product_id) so concurrent adds
// for the same product merge instead of creating duplicate lines.
func (r cartRepo) UpsertQuantity(ctx context.Context, userID, productID string, delta int) (orders.CartLine, error) {
	return scanCart(r.q.QueryRow(ctx, `
		INSERT INTO cart_items(id, user_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
		RETURNING `+cartColumns,
		r.newID(), userID, productID, delta))
}

func (r cartRepo) SetQuantity(ctx context.Context, id, userID string, qty int) (orders.CartLine, error) {
	c, err := scanCart(r.q.QueryRow(ctx, `
		UPDATE cart_items SET quantity=$3, updated_at=now()
		WHERE id=$1 AND user_id=$2
		RETURNING `+cartColumns, id, userID, qty))
	if err != nil {
		return orders.CartLine{}, notFound(err, "cart line", id)
	}
	return c, nil
}

func (r cartRepo) Delete(ctx context.Context, id, userID string) error {
	ct, err := r.q.Exec(ctx, `DELETE FROM cart_items WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return notFound(pgx.ErrNoRows, "cart line", id)
	}
	return nil
}

func (r cartRepo) ListByUser(ctx context.Context, userID string) ([]orders.CartLine, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+cartColumns+` FROM cart_items WHERE user_id=$1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.CartLine
	for rows.Next() {
		c, err := scanCart(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
