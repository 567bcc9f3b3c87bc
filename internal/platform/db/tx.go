package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const connKey contextKey = "db_conn"

// WithConn pins one pooled connection to the context for the duration of fn.
// Repositories pick it up through ConnFromContext, so a sequence of calls
// observes a consistent session.
func WithConn(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()
	return fn(context.WithValue(ctx, connKey, conn))
}

// WithTx runs fn inside a transaction on a pinned connection. The transaction
// is committed when fn returns nil and rolled back otherwise; repository
// calls made with the derived context join it automatically.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	return WithConn(ctx, pool, func(ctx context.Context) error {
		conn := ConnFromContext(ctx)
		tx, err := conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if err := fn(ctx); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
		return tx.Commit(ctx)
	})
}

// TxRunner binds WithTx to a pool so callers can take a transaction boundary
// as a plain function without depending on pgx.
func TxRunner(pool *pgxpool.Pool) func(ctx context.Context, fn func(ctx context.Context) error) error {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		return WithTx(ctx, pool, fn)
	}
}

// ConnFromContext retrieves the pinned database connection, or nil when the
// caller should fall back to the pool.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(connKey).(*pgxpool.Conn)
	return conn
}
