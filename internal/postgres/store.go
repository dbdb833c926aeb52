package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	DB    *pgxpool.Pool
	NewID func() string
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db, NewID: uuid.NewString}
}

func (s *Store) repos(q querier) repos { return repos{q: q, newID: s.NewID} }

func (s *Store) Carts() orders.CartStore           { return cartRepo{s.repos(s.DB)} }
func (s *Store) Inventory() orders.InventoryLedger { return inventoryRepo{s.repos(s.DB)} }
func (s *Store) Orders() orders.OrderStore         { return orderRepo{s.repos(s.DB)} }

// InTx runs fn in one database transaction; it commits only if fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, r orders.Repositories) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, s.repos(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type repos struct {
	q     querier
	newID func() string
}

func (r repos) Carts() orders.CartStore           { return cartRepo{r} }
func (r repos) Inventory() orders.InventoryLedger { return inventoryRepo{r} }
func (r repos) Orders() orders.OrderStore         { return orderRepo{r} }

type (
	cartRepo      struct{ repos }
	inventoryRepo struct{ repos }
	orderRepo     struct{ repos }
)

func notFound(err error, what, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", orders.ErrNotFound, what, id)
	}
	return err
}
