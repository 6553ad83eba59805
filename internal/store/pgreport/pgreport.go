// Package pgreport serves read-only reporting queries straight over pgx.
// Reports scan whole windows of the ledger; going through the ORM buys
// nothing there, and a dedicated pool keeps long scans away from the
// transactional connections.
package pgreport

import (
	"context"
	"time"

	"github.com/altipay/ledgercore/internal/export"
	"github.com/altipay/ledgercore/pkg/ledger"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	sqlEntryRows = `
		select
			t.transaction_ref,
			t.event_type,
			coalesce(t.source_ref, ''),
			t.status,
			t.effective_date,
			e.account_code,
			e.entry_type,
			e.amount_minor,
			e.currency,
			coalesce(e.description, ''),
			e.created_at
		from ledger_entries e
		join ledger_transactions t on t.transaction_id = e.transaction_id
		where t.effective_date >= $1 and t.effective_date <= $2
		order by t.transaction_ref, e.account_code, e.entry_id
	`

	sqlTrialBalance = `
		select
			a.code,
			a.normal_balance,
			coalesce(sum(case when e.entry_type = 'debit' then e.amount_minor else 0 end), 0) as debits,
			coalesce(sum(case when e.entry_type = 'credit' then e.amount_minor else 0 end), 0) as credits
		from accounts a
		left join (
			ledger_entries e
			join ledger_transactions t on t.transaction_id = e.transaction_id
				and t.status in ('posted', 'reversed')
		) on e.account_id = a.account_id
		group by a.code, a.normal_balance
		order by a.code
	`
)

// Store runs reporting queries over a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EntryRows implements export.Source over postgres.
func (store *Store) EntryRows(ctx context.Context, from, to time.Time) ([]export.Row, error) {
	rows, err := store.pool.Query(ctx, sqlEntryRows, from, to)
	if err != nil {
		return nil, ledger.WrapError("report", "entries", "query", err)
	}
	defer rows.Close()
	var result []export.Row
	for rows.Next() {
		var row export.Row
		err := rows.Scan(
			&row.TransactionRef,
			&row.EventType,
			&row.SourceRef,
			&row.Status,
			&row.EffectiveDate,
			&row.AccountCode,
			&row.EntryType,
			&row.AmountMinor,
			&row.Currency,
			&row.Description,
			&row.CreatedAt,
		)
		if err != nil {
			return nil, ledger.WrapError("report", "entries", "scan", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.WrapError("report", "entries", "query", err)
	}
	return result, nil
}

// TrialBalanceRow is one account's debit and credit totals.
type TrialBalanceRow struct {
	Code          string
	NormalBalance ledger.EntrySide
	DebitsMinor   int64
	CreditsMinor  int64
}

// NetMinor returns the balance in the account's natural direction.
func (row TrialBalanceRow) NetMinor() int64 {
	if row.NormalBalance == ledger.SideDebit {
		return row.DebitsMinor - row.CreditsMinor
	}
	return row.CreditsMinor - row.DebitsMinor
}

// TrialBalance returns per-account totals over the full ledger. The sum of
// all debit columns must equal the sum of all credit columns; anything else
// means corruption.
func (store *Store) TrialBalance(ctx context.Context) ([]TrialBalanceRow, error) {
	rows, err := store.pool.Query(ctx, sqlTrialBalance)
	if err != nil {
		return nil, ledger.WrapError("report", "trial_balance", "query", err)
	}
	defer rows.Close()
	var result []TrialBalanceRow
	for rows.Next() {
		var row TrialBalanceRow
		var normal string
		if err := rows.Scan(&row.Code, &normal, &row.DebitsMinor, &row.CreditsMinor); err != nil {
			return nil, ledger.WrapError("report", "trial_balance", "scan", err)
		}
		row.NormalBalance = ledger.EntrySide(normal)
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.WrapError("report", "trial_balance", "query", err)
	}
	return result, nil
}
