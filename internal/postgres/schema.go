package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id             TEXT PRIMARY KEY,
		sku            TEXT NOT NULL UNIQUE,
		name           TEXT NOT NULL,
		price_cents    INTEGER NOT NULL CHECK (price_cents >= 0),
		quantity       INTEGER NOT NULL CHECK (quantity >= 0),
		overall_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS product_reviews (
		id         BIGSERIAL PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		user_id    TEXT NOT NULL,
		rating     INTEGER NOT NULL,
		comment    TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS product_reviews_product_idx ON product_reviews(product_id)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		product_id TEXT NOT NULL REFERENCES products(id),
		quantity   INTEGER NOT NULL CHECK (quantity > 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id                     TEXT PRIMARY KEY,
		user_id                TEXT NOT NULL,
		status                 TEXT NOT NULL,
		payment_method         TEXT NOT NULL,
		payment_transaction_id TEXT NOT NULL DEFAULT '',
		customer_name          TEXT NOT NULL DEFAULT '',
		phone_number           TEXT NOT NULL DEFAULT '',
		address_details        TEXT NOT NULL DEFAULT '',
		ward                   TEXT NOT NULL DEFAULT '',
		district               TEXT NOT NULL DEFAULT '',
		province               TEXT NOT NULL DEFAULT '',
		shipping_fee_cents     INTEGER NOT NULL,
		total_cents            INTEGER NOT NULL,
		created_at             TIMESTAMPTZ NOT NULL,
		updated_at             TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS orders_user_created_idx ON orders(user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id    TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		line_no     INTEGER NOT NULL,
		product_id  TEXT NOT NULL,
		qty         INTEGER NOT NULL,
		price_cents INTEGER NOT NULL,
		is_reviewed BOOLEAN NOT NULL DEFAULT false,
		PRIMARY KEY (order_id, line_no)
	)`,
}

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}
