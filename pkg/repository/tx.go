package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

type txKey struct{}

type hooksKey struct{}

type commitHooks struct {
	mu  sync.Mutex
	fns []func()
}

// AfterCommit defers fn until the unit of work carried by ctx commits.
// Outside a unit of work fn runs immediately. Hooks are dropped on rollback.
func AfterCommit(ctx context.Context, fn func()) {
	h, ok := ctx.Value(hooksKey{}).(*commitHooks)
	if !ok {
		fn()
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

func withHooks(ctx context.Context) (context.Context, *commitHooks, bool) {
	if h, ok := ctx.Value(hooksKey{}).(*commitHooks); ok {
		return ctx, h, false
	}
	h := &commitHooks{}
	return context.WithValue(ctx, hooksKey{}, h), h, true
}

func (h *commitHooks) run() {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// DB is the subset of *sql.DB and *sql.Tx used by stores.
type DB interface {
	Querier
	Executor
}

// ContextWithTx stores tx in ctx so stores called with ctx join the transaction.
func ContextWithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFrom returns the transaction carried by ctx, if any.
func TxFrom(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}

// Conn returns the transaction carried by ctx, or db when there is none.
func Conn(ctx context.Context, db *sql.DB) DB {
	if tx, ok := TxFrom(ctx); ok {
		return tx
	}
	return db
}

// Transactor runs a unit of work atomically. Stores reached through the
// context passed to fn participate in the same transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type sqlTransactor struct {
	db *sql.DB
}

// NewTransactor returns a Transactor backed by db.
// Nested InTx calls join the outer transaction.
func NewTransactor(db *sql.DB) Transactor {
	return &sqlTransactor{db: db}
}

func (t *sqlTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxFrom(ctx); ok {
		return fn(ctx)
	}

	ctx, hooks, outer := withHooks(ctx)

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ContextWithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	if outer {
		hooks.run()
	}
	return nil
}

// Passthrough is a Transactor that runs fn directly.
// In-memory stores serialize their own mutations and use it in place of a database transaction.
type Passthrough struct{}

func (Passthrough) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, hooks, outer := withHooks(ctx)
	if err := fn(ctx); err != nil {
		return err
	}
	if outer {
		hooks.run()
	}
	return nil
}
