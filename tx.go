package loom

import (
	"context"
	"fmt"
)

// WithTx runs fn inside a transaction. Every statement issued through the
// client passed to fn runs on the same transaction. A non-nil error from
// fn, or a panic, rolls the transaction back; otherwise it is committed.
func (c *Client) WithTx(ctx context.Context, fn func(tx *Client) error) error {
	if c.inTx {
		return ErrTxStarted
	}
	tx, err := c.driver.Tx(ctx)
	if err != nil {
		return fmt.Errorf("loom: starting transaction: %w", err)
	}
	txc := &Client{
		driver:   c.driver,
		conn:     tx,
		schema:   c.schema,
		builder:  c.builder,
		cache:    c.cache,
		cacheTTL: c.cacheTTL,
		log:      c.log,
		inTx:     true,
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(txc); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return &RollbackError{Cause: err, Err: rerr}
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("loom: committing transaction: %w", err)
	}
	return nil
}

// inTransaction runs fn on the current connection when the client is
// already transactional, and inside a fresh transaction otherwise.
// Multi-statement operations use it so their statements land atomically.
func (c *Client) inTransaction(ctx context.Context, fn func(tx *Client) error) error {
	if c.inTx {
		return fn(c)
	}
	return c.WithTx(ctx, fn)
}
