package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/altipay/ledgercore/pkg/ledger"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19
	errorOperationStore   = "store"
	errorSubjectAccount   = "account"
	errorSubjectBalance   = "balance"
	errorSubjectEntry     = "entry"
	errorSubjectTx        = "transaction"
	errorSubjectPeriod    = "period"
	errorSubjectLock      = "lock"
	errorSubjectOverride  = "override"
	errorCodeCreate       = "create"
	errorCodeDuplicate    = "duplicate"
	errorCodeGet          = "get"
	errorCodeInsert       = "insert"
	errorCodeInvalid      = "invalid"
	errorCodeList         = "list"
	errorCodeLookup       = "lookup"
	errorCodeSum          = "sum"
	errorCodeUpdate       = "update"
	errorCodeConsume      = "consume"
)

// Store implements ledger.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for sibling store constructors.
func (store *Store) DB() *gorm.DB {
	return store.db
}

// WithTx executes fn within a storage transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

// GetOrCreateAccount returns the account with the definition's code,
// creating it on first use.
func (store *Store) GetOrCreateAccount(ctx context.Context, def ledger.AccountDef) (ledger.Account, error) {
	var model Account
	result := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).
		Where(Account{Code: def.Code}).
		Attrs(Account{
			Name:          def.Name,
			Type:          string(def.Type),
			Category:      string(def.Category),
			NormalBalance: def.NormalBalance.String(),
			ScopeRef:      def.ScopeRef,
			Status:        string(ledger.AccountActive),
		}).
		FirstOrCreate(&model)
	if result.Error != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeLookup, result.Error)
	}
	if result.RowsAffected == 0 {
		// DoNothing swallowed a concurrent insert: the locally generated
		// id never reached the table, so read the committed row instead.
		if err := store.db.WithContext(ctx).Where(Account{Code: def.Code}).First(&model).Error; err != nil {
			return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeLookup, err)
		}
	}
	return mapAccount(model)
}

// GetAccountByCode fetches one account; the account must already exist.
func (store *Store) GetAccountByCode(ctx context.Context, code string) (ledger.Account, error) {
	var model Account
	err := store.db.WithContext(ctx).Where("code = ?", code).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, ledger.ErrUnknownAccount)
		}
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, err)
	}
	return mapAccount(model)
}

// ListAccounts returns the full chart ordered by code.
func (store *Store) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	var rows []Account
	err := store.db.WithContext(ctx).Order("code asc").Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectAccount, errorCodeList, err)
	}
	accounts := make([]ledger.Account, 0, len(rows))
	for _, row := range rows {
		account, mapErr := mapAccount(row)
		if mapErr != nil {
			return nil, mapErr
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// UpdateAccountStatus moves an account between statuses with a guard on the
// expected current status.
func (store *Store) UpdateAccountStatus(ctx context.Context, code string, from, to ledger.AccountStatus) error {
	result := store.db.WithContext(ctx).
		Model(&Account{}).
		Where("code = ? AND status = ?", code, string(from)).
		Update("status", string(to))
	if result.Error != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, ledger.ErrUnknownAccount)
	}
	return nil
}

// FindTransactionByIdempotencyKey looks up a prior posting for replay.
func (store *Store) FindTransactionByIdempotencyKey(ctx context.Context, tenantID string, key string) (ledger.Transaction, bool, error) {
	var model LedgerTransaction
	err := store.db.WithContext(ctx).
		Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.Transaction{}, false, nil
	}
	if err != nil {
		return ledger.Transaction{}, false, wrapStoreError(errorSubjectTx, errorCodeLookup, err)
	}
	transaction, mapErr := mapTransaction(model)
	if mapErr != nil {
		return ledger.Transaction{}, false, mapErr
	}
	return transaction, true, nil
}

// GetTransaction fetches one transaction with a row lock so reversal status
// changes serialize.
func (store *Store) GetTransaction(ctx context.Context, id string) (ledger.Transaction, error) {
	var model LedgerTransaction
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("transaction_id = ?", id).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.Transaction{}, wrapStoreError(errorSubjectTx, errorCodeGet, ledger.ErrTransactionNotFound)
		}
		return ledger.Transaction{}, wrapStoreError(errorSubjectTx, errorCodeGet, err)
	}
	return mapTransaction(model)
}

// InsertTransaction persists the header and all entries. Callers run it
// inside WithTx so the write is all-or-nothing.
func (store *Store) InsertTransaction(ctx context.Context, transaction ledger.Transaction, entries []ledger.Entry) error {
	model := unmapTransaction(transaction)
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return wrapStoreError(errorSubjectTx, errorCodeDuplicate, ledger.ErrIdempotencyConflict)
		}
		return wrapStoreError(errorSubjectTx, errorCodeInsert, err)
	}
	for _, entry := range entries {
		entryModel := LedgerEntry{
			EntryID:       entry.ID,
			TransactionID: entry.TransactionID,
			AccountID:     entry.AccountID,
			AccountCode:   entry.AccountCode,
			EntryType:     entry.Side.String(),
			AmountMinor:   entry.AmountMinor,
			Currency:      entry.Currency.String(),
			Description:   entry.Description,
			CreatedBy:     entry.CreatedBy,
			CreatedAt:     entry.CreatedAt,
		}
		if err := store.db.WithContext(ctx).Create(&entryModel).Error; err != nil {
			return wrapStoreError(errorSubjectEntry, errorCodeInsert, err)
		}
	}
	return nil
}

// MarkTransactionReversed stamps the reversal linkage on a posted original.
func (store *Store) MarkTransactionReversed(ctx context.Context, id string, reversedByID string) error {
	result := store.db.WithContext(ctx).
		Model(&LedgerTransaction{}).
		Where("transaction_id = ? AND status = ?", id, string(ledger.TransactionPosted)).
		Updates(map[string]interface{}{
			"status":         string(ledger.TransactionReversed),
			"reversed_by_id": reversedByID,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectTx, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectTx, errorCodeUpdate, ledger.ErrTransactionNotReversible)
	}
	return nil
}

// ListTransactions returns a filtered, newest-first page.
func (store *Store) ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	query := store.db.WithContext(ctx).Model(&LedgerTransaction{})
	if filter.TenantID != "" {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.EventType != "" {
		query = query.Where("event_type = ?", string(filter.EventType))
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if !filter.From.IsZero() {
		query = query.Where("effective_date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("effective_date <= ?", filter.To)
	}
	var rows []LedgerTransaction
	err := query.Order("created_at desc").Limit(filter.Limit).Offset(filter.Offset).Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTx, errorCodeList, err)
	}
	transactions := make([]ledger.Transaction, 0, len(rows))
	for _, row := range rows {
		transaction, mapErr := mapTransaction(row)
		if mapErr != nil {
			return nil, mapErr
		}
		transactions = append(transactions, transaction)
	}
	return transactions, nil
}

// ListEntries returns a transaction's entries in insertion order.
func (store *Store) ListEntries(ctx context.Context, transactionID string) ([]ledger.Entry, error) {
	var rows []LedgerEntry
	err := store.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at asc, entry_id asc").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeList, err)
	}
	entries := make([]ledger.Entry, 0, len(rows))
	for _, row := range rows {
		entry, mapErr := mapEntry(row)
		if mapErr != nil {
			return nil, mapErr
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// PeriodForDate returns the period covering the date, locking the row for
// the duration of the surrounding transaction so a close cannot race the
// posting it would gate.
func (store *Store) PeriodForDate(ctx context.Context, date time.Time) (ledger.Period, bool, error) {
	var model AccountingPeriod
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("start_date <= ? AND end_date >= ?", date, date).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.Period{}, false, nil
	}
	if err != nil {
		return ledger.Period{}, false, wrapStoreError(errorSubjectPeriod, errorCodeGet, err)
	}
	period, mapErr := mapPeriod(model)
	if mapErr != nil {
		return ledger.Period{}, false, mapErr
	}
	return period, true, nil
}

// ActiveLocks returns unreleased locks whose window covers the given time.
func (store *Store) ActiveLocks(ctx context.Context, at time.Time) ([]ledger.Lock, error) {
	var rows []LedgerLock
	err := store.db.WithContext(ctx).
		Where("released_at IS NULL AND from_ts <= ? AND to_ts >= ?", at, at).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectLock, errorCodeList, err)
	}
	locks := make([]ledger.Lock, 0, len(rows))
	for _, row := range rows {
		lock, mapErr := mapLock(row)
		if mapErr != nil {
			return nil, mapErr
		}
		locks = append(locks, lock)
	}
	return locks, nil
}

// GetOverride fetches one override request with a row lock so consumption
// is single-use under concurrency.
func (store *Store) GetOverride(ctx context.Context, id string) (ledger.OverrideRequest, error) {
	var model OverrideRequest
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("override_id = ?", id).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.OverrideRequest{}, wrapStoreError(errorSubjectOverride, errorCodeGet, ledger.ErrOverrideNotUsable)
		}
		return ledger.OverrideRequest{}, wrapStoreError(errorSubjectOverride, errorCodeGet, err)
	}
	return mapOverride(model)
}

// ConsumeOverride stamps consumed_at exactly once.
func (store *Store) ConsumeOverride(ctx context.Context, id string, at time.Time) error {
	result := store.db.WithContext(ctx).
		Model(&OverrideRequest{}).
		Where("override_id = ? AND status = ? AND consumed_at IS NULL", id, string(ledger.OverrideApproved)).
		Update("consumed_at", at)
	if result.Error != nil {
		return wrapStoreError(errorSubjectOverride, errorCodeConsume, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectOverride, errorCodeConsume, ledger.ErrOverrideNotUsable)
	}
	return nil
}

// AccountBalance derives the balance view from posted entries only. There
// is no stored balance column anywhere in the schema.
func (store *Store) AccountBalance(ctx context.Context, code string) (ledger.BalanceView, error) {
	account, err := store.GetAccountByCode(ctx, code)
	if err != nil {
		return ledger.BalanceView{}, err
	}
	var sums struct {
		Debits  int64
		Credits int64
		Count   int64
	}
	err = store.db.WithContext(ctx).
		Model(&LedgerEntry{}).
		Select(
			"coalesce(sum(case when entry_type = 'debit' then ledger_entries.amount_minor else 0 end),0) as debits, "+
				"coalesce(sum(case when entry_type = 'credit' then ledger_entries.amount_minor else 0 end),0) as credits, "+
				"count(*) as count").
		Joins("JOIN ledger_transactions ON ledger_transactions.transaction_id = ledger_entries.transaction_id").
		Where("ledger_entries.account_code = ?", code).
		Where("ledger_transactions.status IN ?", []string{string(ledger.TransactionPosted), string(ledger.TransactionReversed)}).
		Scan(&sums).Error
	if err != nil {
		return ledger.BalanceView{}, wrapStoreError(errorSubjectBalance, errorCodeSum, err)
	}
	balance := sums.Debits - sums.Credits
	if account.NormalBalance == ledger.SideCredit {
		balance = sums.Credits - sums.Debits
	}
	return ledger.BalanceView{
		AccountCode:  code,
		Balance:      balance,
		TotalDebits:  sums.Debits,
		TotalCredits: sums.Credits,
		EntryCount:   sums.Count,
	}, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
