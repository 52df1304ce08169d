package repositories

import "context"

// TxFn is a function that runs within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager handles database transactions. The lifecycle engine
// receives one at construction time instead of reaching into shared pool
// state, so it can be exercised against an in-memory store in tests.
type TransactionManager interface {
	// ExecTx executes a function within a transaction. Any error returned
	// by fn rolls the whole unit back.
	ExecTx(ctx context.Context, fn TxFn) error
}
