package database

import (
	"context"
	"sync"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// Hooks collects callbacks that must only run once the surrounding
// transaction has committed.
type Hooks struct {
	mu  sync.Mutex
	fns []func()
}

func (h *Hooks) add(fn func()) {
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

// Run executes the collected callbacks in registration order and clears them.
func (h *Hooks) Run() {
	if h == nil {
		return
	}
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Discard drops the collected callbacks without running them.
func (h *Hooks) Discard() {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.fns = nil
	h.mu.Unlock()
}

type txState struct {
	tx    *sqlx.Tx
	hooks *Hooks
}

// WithTx stores tx on the context together with a fresh hook list.
func WithTx(ctx context.Context, tx *sqlx.Tx) (context.Context, *Hooks) {
	hooks := &Hooks{}
	return context.WithValue(ctx, txKey{}, &txState{tx: tx, hooks: hooks}), hooks
}

// TxFromContext returns the request transaction, if one is open.
func TxFromContext(ctx context.Context) (*sqlx.Tx, bool) {
	st, ok := ctx.Value(txKey{}).(*txState)
	if !ok || st.tx == nil {
		return nil, false
	}
	return st.tx, true
}

// OnCommit defers fn until the transaction carried by ctx commits. Without
// a transaction fn runs immediately.
func OnCommit(ctx context.Context, fn func()) {
	if st, ok := ctx.Value(txKey{}).(*txState); ok && st.hooks != nil {
		st.hooks.add(fn)
		return
	}
	fn()
}

// QuerierFromContext returns the request transaction when one is open,
// falling back to fallback otherwise.
func QuerierFromContext(ctx context.Context, fallback Querier) Querier {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return fallback
}

// Savepoint runs fn inside a named savepoint on q. When fn fails the work
// done since the savepoint is rolled back and the surrounding transaction
// stays usable; fn's error is returned either way.
func Savepoint(ctx context.Context, q Querier, name string, fn func() error) error {
	if _, err := q.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if _, rbErr := q.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return rbErr
		}
		return err
	}
	_, err := q.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}
