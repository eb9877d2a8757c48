package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Conn is the query surface shared by *sqlx.DB and *sqlx.Tx.
type Conn interface {
	sqlx.ExtContext
}

type txKey struct{}

// Cluster routes queries between a primary and an optional read replica.
//
// Writer always resolves to the primary, or to the transaction carried on the
// context. Reader resolves to the enclosing transaction when there is one and
// to the replica otherwise, so anything executed inside WithinTransaction sees
// the primary's latest writes.
type Cluster struct {
	primary *sqlx.DB
	replica *sqlx.DB
}

// NewCluster builds a cluster. A nil replica sends every read to the primary.
func NewCluster(primary, replica *sqlx.DB) *Cluster {
	return &Cluster{primary: primary, replica: replica}
}

// Primary exposes the write-consistent pool.
func (c *Cluster) Primary() *sqlx.DB {
	return c.primary
}

// Writer returns the write-consistent connection for ctx.
func (c *Cluster) Writer(ctx context.Context) Conn {
	if tx := txFrom(ctx); tx != nil {
		return tx
	}
	return c.primary
}

// Reader returns the connection for read-only lookups that tolerate lag.
func (c *Cluster) Reader(ctx context.Context) Conn {
	if tx := txFrom(ctx); tx != nil {
		return tx
	}
	if c.replica != nil {
		return c.replica
	}
	return c.primary
}

// WithinTransaction runs fn inside a primary transaction. Nested calls join
// the outer transaction.
func (c *Cluster) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	tx, err := c.primary.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("rollback transaction: %v (cause: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Ping checks the primary connection.
func (c *Cluster) Ping(ctx context.Context) error {
	return c.primary.PingContext(ctx)
}

// Close releases both pools.
func (c *Cluster) Close() error {
	var errs []error
	if c.replica != nil {
		errs = append(errs, c.replica.Close())
	}
	errs = append(errs, c.primary.Close())
	return errors.Join(errs...)
}

func txFrom(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx
}
