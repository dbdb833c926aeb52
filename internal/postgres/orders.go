package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

const orderColumns = `id, user_id, status, payment_method, payment_transaction_id,
	customer_name, phone_number, address_details, ward, district, province,
	shipping_fee_cents, total_cents, created_at, updated_at`

func scanOrder(row pgx.Row) (orders.Order, error) {
	var (
		o      orders.Order
		status string
	)
	err := row.Scan(&o.ID, &o.UserID, &status, &o.Payment.Method, &o.Payment.TransactionID,
		&o.Delivery.CustomerName, &o.Delivery.PhoneNumber, &o.Delivery.AddressDetails,
		&o.Delivery.Ward, &o.Delivery.District, &o.Delivery.Province,
		&o.ShippingFeeCents, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt)
	o.Status = orders.Status(status)
	return o, err
}

func (r orderRepo) Insert(ctx context.Context, o orders.Order) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO orders(`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		o.ID, o.UserID, string(o.Status), o.Payment.Method, o.Payment.TransactionID,
		o.Delivery.CustomerName, o.Delivery.PhoneNumber, o.Delivery.AddressDetails,
		o.Delivery.Ward, o.Delivery.District, o.Delivery.Province,
		o.ShippingFeeCents, o.TotalCents, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}

	for i, l := range o.Lines {
		if _, err := r.q.Exec(ctx, `
			INSERT INTO order_items(order_id, line_no, product_id, qty, price_cents, is_reviewed)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			o.ID, i, l.ProductID, l.Quantity, l.UnitPriceCents, l.IsReviewed,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r orderRepo) FindByID(ctx context.Context, id string) (orders.Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return orders.Order{}, notFound(err, "order", id)
	}
	return r.withLines(ctx, o)
}

func (r orderRepo) FindByUserAndID(ctx context.Context, id, userID string) (orders.Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id=$1 AND user_id=$2`, id, userID))
	if err != nil {
		return orders.Order{}, notFound(err, "order", id)
	}
	return r.withLines(ctx, o)
}

func (r orderRepo) withLines(ctx context.Context, o orders.Order) (orders.Order, error) {
	lines, err := r.lines(ctx, []string{o.ID})
	if err != nil {
		return orders.Order{}, err
	}
	o.Lines = lines[o.ID]
	return o, nil
}

func (r orderRepo) lines(ctx context.Context, orderIDs []string) (map[string][]orders.OrderLine, error) {
	rows, err := r.q.Query(ctx, `
		SELECT order_id, product_id, qty, price_cents, is_reviewed
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, line_no`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]orders.OrderLine, len(orderIDs))
	for rows.Next() {
		var (
			orderID string
			l       orders.OrderLine
		)
		if err := rows.Scan(&orderID, &l.ProductID, &l.Quantity, &l.UnitPriceCents, &l.IsReviewed); err != nil {
			return nil, err
		}
		out[orderID] = append(out[orderID], l)
	}
	return out, rows.Err()
}

func (r orderRepo) ListByUser(ctx context.Context, userID string, status orders.Status) ([]orders.Order, error) {
	return r.list(ctx, `WHERE user_id=$1 AND ($2 = '' OR status = $2)`, userID, string(status))
}

func (r orderRepo) List(ctx context.Context, status orders.Status) ([]orders.Order, error) {
	return r.list(ctx, `WHERE ($1 = '' OR status = $1)`, string(status))
}

func (r orderRepo) list(ctx context.Context, where string, args ...any) ([]orders.Order, error) {
	rows, err := r.q.Query(ctx, `SELECT `+orderColumns+` FROM orders `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	var (
		out []orders.Order
		ids []string
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	lines, err := r.lines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines = lines[out[i].ID]
	}
	return out, nil
}

// UpdateStatus is a compare-and-set on the current status.
func (r orderRepo) UpdateStatus(ctx context.Context, id string, from, to orders.Status) error {
	ct, err := r.q.Exec(ctx, `
		UPDATE orders SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2`, id, string(from), string(to))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	var current string
	if err := r.q.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, id).Scan(&current); err != nil {
		return notFound(err, "order", id)
	}
	return fmt.Errorf("%w: order %s is %s, not %s", orders.ErrInvalidTransition, id, current, from)
}

func (r orderRepo) MarkLineReviewed(ctx context.Context, id string, line int) error {
	ct, err := r.q.Exec(ctx, `
		UPDATE order_items SET is_reviewed = true
		WHERE order_id=$1 AND line_no=$2 AND NOT is_reviewed`, id, line)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	var reviewed bool
	if err := r.q.QueryRow(ctx,
		`SELECT is_reviewed FROM order_items WHERE order_id=$1 AND line_no=$2`, id, line,
	).Scan(&reviewed); err != nil {
		return notFound(err, "order line", fmt.Sprintf("%s/%d", id, line))
	}
	return fmt.Errorf("%w: order %s line %d", orders.ErrAlreadyReviewed, id, line)
}

func (r orderRepo) SetPaymentTransaction(ctx context.Context, id, transactionID string) error {
	ct, err := r.q.Exec(ctx, `
		UPDATE orders SET payment_transaction_id=$2, updated_at=now() WHERE id=$1`, id, transactionID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return notFound(pgx.ErrNoRows, "order", id)
	}
	return nil
}
