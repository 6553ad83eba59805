package ledger

import "context"

// Balance returns the derived balance view for an account code. The view is
// recomputed from posted entries on every call; no balance column exists.
func (service *Service) Balance(ctx context.Context, code string) (BalanceView, error) {
	if code == "" {
		return BalanceView{}, WrapError("balance", "account", "code", ErrInvalidAccountCode)
	}
	return service.store.AccountBalance(ctx, code)
}

// Transaction returns one transaction header by id.
func (service *Service) Transaction(ctx context.Context, id string) (Transaction, error) {
	return service.store.GetTransaction(ctx, id)
}

// ListTransactions returns a read-only page of transactions.
func (service *Service) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	if filter.Limit <= 0 || filter.Limit > maxListLimit {
		filter.Limit = defaultListLimit
	}
	return service.store.ListTransactions(ctx, filter)
}

// Entries returns the entries of one transaction.
func (service *Service) Entries(ctx context.Context, transactionID string) ([]Entry, error) {
	return service.store.ListEntries(ctx, transactionID)
}

// Accounts returns the chart of accounts.
func (service *Service) Accounts(ctx context.Context) ([]Account, error) {
	return service.store.ListAccounts(ctx)
}

// SetAccountStatus moves an account between active, inactive, and closed.
// Everything else about an account is frozen at creation.
func (service *Service) SetAccountStatus(ctx context.Context, code string, from, to AccountStatus, actor ActorID) error {
	operationError := service.store.UpdateAccountStatus(ctx, code, from, to)
	service.record(ctx, AuditRecord{
		Actor:     actor.String(),
		Action:    "ledger.account_status",
		Subject:   "account",
		SubjectID: code,
		Reason:    string(from) + " -> " + string(to),
		Error:     operationError,
	})
	return operationError
}

// PairDrift reports the balance divergence of one mirrored account pair.
type PairDrift struct {
	LeftCode     string
	RightCode    string
	LeftBalance  int64
	RightBalance int64
	DriftMinor   int64
}

// MirroredPairDrift compares the derived balances of every mirrored account
// pair. A non-zero drift means the books disagree with themselves and a
// reconciliation pass is due.
func (service *Service) MirroredPairDrift(ctx context.Context) ([]PairDrift, error) {
	pairs := MirroredPairs()
	drifts := make([]PairDrift, 0, len(pairs))
	for _, pair := range pairs {
		left, err := service.store.AccountBalance(ctx, pair[0])
		if err != nil {
			return nil, err
		}
		right, err := service.store.AccountBalance(ctx, pair[1])
		if err != nil {
			return nil, err
		}
		drifts = append(drifts, PairDrift{
			LeftCode:     pair[0],
			RightCode:    pair[1],
			LeftBalance:  left.Balance,
			RightBalance: right.Balance,
			DriftMinor:   left.Balance - right.Balance,
		})
	}
	return drifts, nil
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)
