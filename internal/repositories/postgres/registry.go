// Package postgres implements the repository registry over a pgx connection pool.
// RunInTx opens a database transaction and threads it through the context so every
// repository call inside the boundary shares it; FindByIDForUpdate issues
// SELECT ... FOR UPDATE, which is what closes the webhook redelivery race.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supplynet/api/internal/repositories"
)

type txContextKey struct{}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Registry implements repositories.Registry backed by PostgreSQL.
type Registry struct {
	pool *pgxpool.Pool
}

// NewRegistry constructs a Registry over the given pool.
func NewRegistry(pool *pgxpool.Pool) (*Registry, error) {
	if pool == nil {
		return nil, errors.New("postgres: pool is required")
	}
	return &Registry{pool: pool}, nil
}

// Close implements repositories.Registry.
func (r *Registry) Close(context.Context) error {
	r.pool.Close()
	return nil
}

// Orders implements repositories.Registry.
func (r *Registry) Orders() repositories.OrderRepository { return orderRepo{r} }

// Deliveries implements repositories.Registry.
func (r *Registry) Deliveries() repositories.DeliveryRepository { return deliveryRepo{r} }

// Invoices implements repositories.Registry.
func (r *Registry) Invoices() repositories.InvoiceRepository { return invoiceRepo{r} }

// Payments implements repositories.Registry.
func (r *Registry) Payments() repositories.PaymentRepository { return paymentRepo{r} }

// Catalog implements repositories.Registry.
func (r *Registry) Catalog() repositories.CatalogRepository { return catalogRepo{r} }

// Locations implements repositories.Registry.
func (r *Registry) Locations() repositories.LocationRepository { return locationRepo{r} }

// RunInTx executes fn inside a database transaction. Nested calls join the
// enclosing transaction rather than opening a new one.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txContextKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txContextKey{}, tx)
	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// db returns the transaction bound to the context, or the pool outside transactions.
func (r *Registry) db(ctx context.Context) querier {
	if tx, ok := ctx.Value(txContextKey{}).(pgx.Tx); ok {
		return tx
	}
	return r.pool
}

const uniqueViolation = "23505"

func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, repositories.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, repositories.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
