package ledger

import (
	"fmt"
	"strings"
	"time"
)

// AmountMinor is an integer currency amount in minor units (paise).
type AmountMinor int64

// NewAmountMinor validates an amount and ensures it is strictly positive.
func NewAmountMinor(raw int64) (AmountMinor, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmountMinor)
	}
	return AmountMinor(raw), nil
}

// Int64 returns the raw minor-unit value.
func (amount AmountMinor) Int64() int64 {
	return int64(amount)
}

// TenantID identifies the aggregator tenant a posting belongs to.
type TenantID struct {
	value string
}

// NewTenantID validates and normalizes a tenant id.
func NewTenantID(raw string) (TenantID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TenantID{}, fmt.Errorf("%w: empty value", ErrInvalidTenantID)
	}
	return TenantID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id TenantID) String() string {
	return id.value
}

// ActorID identifies the human or system identity behind a state change.
type ActorID struct {
	value string
}

// NewActorID validates and normalizes an actor id.
func NewActorID(raw string) (ActorID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ActorID{}, fmt.Errorf("%w: empty value", ErrInvalidActorID)
	}
	return ActorID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id ActorID) String() string {
	return id.value
}

// IdempotencyKey scopes duplicate detection for a posting request.
type IdempotencyKey struct {
	value string
}

// NewIdempotencyKey validates and normalizes an idempotency key.
func NewIdempotencyKey(raw string) (IdempotencyKey, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return IdempotencyKey{}, fmt.Errorf("%w: empty value", ErrInvalidIdempotencyKey)
	}
	return IdempotencyKey{value: trimmed}, nil
}

// String returns the normalized key.
func (key IdempotencyKey) String() string {
	return key.value
}

// Currency is an ISO 4217 alphabetic code.
type Currency string

// NewCurrency validates a currency code.
func NewCurrency(raw string) (Currency, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if len(normalized) != 3 {
		return "", fmt.Errorf("%w: want 3-letter code, got %q", ErrInvalidCurrency, raw)
	}
	return Currency(normalized), nil
}

// String returns the normalized code.
func (currency Currency) String() string {
	return string(currency)
}

// EntrySide distinguishes debit and credit legs.
type EntrySide string

const (
	SideDebit  EntrySide = "debit"
	SideCredit EntrySide = "credit"
)

// ParseEntrySide validates an entry side.
func ParseEntrySide(raw string) (EntrySide, error) {
	switch EntrySide(raw) {
	case SideDebit, SideCredit:
		return EntrySide(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEntrySide, raw)
}

// Opposite returns the inverse side.
func (side EntrySide) Opposite() EntrySide {
	if side == SideDebit {
		return SideCredit
	}
	return SideDebit
}

// String returns the side name.
func (side EntrySide) String() string {
	return string(side)
}

// AccountType groups accounts by the party they belong to.
type AccountType string

const (
	AccountTypeMerchant        AccountType = "merchant"
	AccountTypeGateway         AccountType = "gateway"
	AccountTypeEscrow          AccountType = "escrow"
	AccountTypePlatformRevenue AccountType = "platform_revenue"
)

// ParseAccountType validates an account type.
func ParseAccountType(raw string) (AccountType, error) {
	switch AccountType(raw) {
	case AccountTypeMerchant, AccountTypeGateway, AccountTypeEscrow, AccountTypePlatformRevenue:
		return AccountType(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAccountType, raw)
}

// AccountCategory is the accounting classification of an account.
type AccountCategory string

const (
	CategoryAsset     AccountCategory = "asset"
	CategoryLiability AccountCategory = "liability"
	CategoryRevenue   AccountCategory = "revenue"
	CategoryExpense   AccountCategory = "expense"
	CategoryEquity    AccountCategory = "equity"
)

// ParseAccountCategory validates an account category.
func ParseAccountCategory(raw string) (AccountCategory, error) {
	switch AccountCategory(raw) {
	case CategoryAsset, CategoryLiability, CategoryRevenue, CategoryExpense, CategoryEquity:
		return AccountCategory(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAccountCategory, raw)
}

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountInactive AccountStatus = "inactive"
	AccountClosed   AccountStatus = "closed"
)

// ParseAccountStatus validates an account status.
func ParseAccountStatus(raw string) (AccountStatus, error) {
	switch AccountStatus(raw) {
	case AccountActive, AccountInactive, AccountClosed:
		return AccountStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAccountStatus, raw)
}

// Account is one row in the chart of accounts. Everything except Status is
// frozen after creation.
type Account struct {
	ID            string
	Code          string
	Name          string
	Type          AccountType
	Category      AccountCategory
	NormalBalance EntrySide
	ScopeRef      string
	Status        AccountStatus
	CreatedAt     time.Time
}

// TransactionStatus is the lifecycle state of a ledger transaction.
type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "pending"
	TransactionPosted   TransactionStatus = "posted"
	TransactionReversed TransactionStatus = "reversed"
	TransactionFailed   TransactionStatus = "failed"
)

// ParseTransactionStatus validates a transaction status.
func ParseTransactionStatus(raw string) (TransactionStatus, error) {
	switch TransactionStatus(raw) {
	case TransactionPending, TransactionPosted, TransactionReversed, TransactionFailed:
		return TransactionStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTransactionStatus, raw)
}

// Transaction is the header row for a balanced set of entries. Once posted,
// every scalar field except Status and ReversedByID is frozen.
type Transaction struct {
	ID             string
	TenantID       string
	TransactionRef string
	IdempotencyKey string
	EventType      EventType
	SourceRef      string
	AmountMinor    int64
	Currency       Currency
	Status         TransactionStatus
	EffectiveDate  time.Time
	ReversesID     string
	ReversedByID   string
	OverrideID     string
	CreatedBy      string
	CreatedAt      time.Time
}

// Entry is a single immutable debit or credit leg. No update or delete path
// exists for entries at any layer.
type Entry struct {
	ID            string
	TransactionID string
	AccountID     string
	AccountCode   string
	Side          EntrySide
	AmountMinor   int64
	Currency      Currency
	Description   string
	CreatedBy     string
	CreatedAt     time.Time
}

// PeriodType is the granularity of an accounting period.
type PeriodType string

const (
	PeriodDaily   PeriodType = "daily"
	PeriodMonthly PeriodType = "monthly"
)

// PeriodStatus is the closure state of an accounting period.
type PeriodStatus string

const (
	PeriodOpen       PeriodStatus = "OPEN"
	PeriodSoftClosed PeriodStatus = "SOFT_CLOSED"
	PeriodHardClosed PeriodStatus = "HARD_CLOSED"
)

// ParsePeriodStatus validates a period status.
func ParsePeriodStatus(raw string) (PeriodStatus, error) {
	switch PeriodStatus(raw) {
	case PeriodOpen, PeriodSoftClosed, PeriodHardClosed:
		return PeriodStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriodStatus, raw)
}

// Period is a bounded accounting date range. HARD_CLOSED is terminal.
type Period struct {
	ID           string
	StartDate    time.Time
	EndDate      time.Time
	Type         PeriodType
	Status       PeriodStatus
	ClosedBy     string
	ClosedAt     *time.Time
	ClosureNotes string
}

// Covers reports whether the period's date range contains the given date.
func (period Period) Covers(date time.Time) bool {
	day := date.Truncate(24 * time.Hour)
	return !day.Before(period.StartDate) && !day.After(period.EndDate)
}

// LockType classifies a ledger write lock.
type LockType string

const (
	LockPeriod         LockType = "PERIOD"
	LockAudit          LockType = "AUDIT"
	LockReconciliation LockType = "RECONCILIATION"
)

// ParseLockType validates a lock type.
func ParseLockType(raw string) (LockType, error) {
	switch LockType(raw) {
	case LockPeriod, LockAudit, LockReconciliation:
		return LockType(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLockType, raw)
}

// ScopeAll matches every posting regardless of tenant or merchant.
const ScopeAll = "*"

// Lock is a time-boxed write block over a scope of the ledger. Locks never
// block reads.
type Lock struct {
	ID           string
	Type         LockType
	Scope        string
	FromTs       time.Time
	ToTs         time.Time
	Reason       string
	LockedBy     string
	LockedAt     time.Time
	ReleasedBy   string
	ReleasedAt   *time.Time
	ReleaseNotes string
}

// Active reports whether the lock gates postings effective at the given time.
func (lock Lock) Active(at time.Time) bool {
	if lock.ReleasedAt != nil {
		return false
	}
	return !at.Before(lock.FromTs) && !at.After(lock.ToTs)
}

// Matches reports whether the lock's scope covers any of the candidate
// scope keys.
func (lock Lock) Matches(scopeKeys []string) bool {
	if lock.Scope == ScopeAll {
		return true
	}
	for _, key := range scopeKeys {
		if lock.Scope == key {
			return true
		}
	}
	return false
}

// OverrideStatus is the decision state of an override request.
type OverrideStatus string

const (
	OverridePending  OverrideStatus = "pending"
	OverrideApproved OverrideStatus = "approved"
	OverrideRejected OverrideStatus = "rejected"
)

// ParseOverrideStatus validates an override status.
func ParseOverrideStatus(raw string) (OverrideStatus, error) {
	switch OverrideStatus(raw) {
	case OverridePending, OverrideApproved, OverrideRejected:
		return OverrideStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOverrideStatus, raw)
}

// OverrideRequest is a dual-confirmation ticket letting one exceptional
// posting through a closed period or locked scope.
type OverrideRequest struct {
	ID             string
	RequestType    string
	RequestorID    string
	Justification  string
	AffectedRefs   []string
	Status         OverrideStatus
	ApproverID     string
	ApprovalReason string
	RequestedAt    time.Time
	DecidedAt      *time.Time
	ConsumedAt     *time.Time
}

// UsableFor reports whether an approved, unconsumed override covers the
// given reference.
func (request OverrideRequest) UsableFor(ref string) bool {
	if request.Status != OverrideApproved || request.ConsumedAt != nil {
		return false
	}
	for _, affected := range request.AffectedRefs {
		if affected == ref {
			return true
		}
	}
	return false
}

// BalanceView is the derived balance for one account. It is recomputed from
// posted entries on every call and never stored.
type BalanceView struct {
	AccountCode  string
	Balance      int64
	TotalDebits  int64
	TotalCredits int64
	EntryCount   int64
}

// TransactionFilter narrows ListTransactions output.
type TransactionFilter struct {
	TenantID  string
	EventType EventType
	Status    TransactionStatus
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}
