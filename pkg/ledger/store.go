package ledger

import (
	"context"
	"time"
)

// Store is the persistence contract used by the posting service. Only the
// posting service writes ledger_transactions and ledger_entries; every other
// component is read-only against them.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	GetOrCreateAccount(ctx context.Context, def AccountDef) (Account, error)
	GetAccountByCode(ctx context.Context, code string) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	UpdateAccountStatus(ctx context.Context, code string, from, to AccountStatus) error

	FindTransactionByIdempotencyKey(ctx context.Context, tenantID string, key string) (Transaction, bool, error)
	GetTransaction(ctx context.Context, id string) (Transaction, error)
	// InsertTransaction persists the header and all entries atomically. It
	// returns ErrIdempotencyConflict when another transaction already holds
	// the idempotency key.
	InsertTransaction(ctx context.Context, transaction Transaction, entries []Entry) error
	MarkTransactionReversed(ctx context.Context, id string, reversedByID string) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
	ListEntries(ctx context.Context, transactionID string) ([]Entry, error)

	// PeriodForDate and ActiveLocks are read inside the same storage
	// transaction as the write they gate.
	PeriodForDate(ctx context.Context, date time.Time) (Period, bool, error)
	ActiveLocks(ctx context.Context, at time.Time) ([]Lock, error)

	GetOverride(ctx context.Context, id string) (OverrideRequest, error)
	ConsumeOverride(ctx context.Context, id string, at time.Time) error

	AccountBalance(ctx context.Context, code string) (BalanceView, error)
}
