package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Account represents the accounts table.
type Account struct {
	AccountID     string    `gorm:"type:uuid;primaryKey"`
	Code          string    `gorm:"not null;index:uniq_accounts_code,unique"`
	Name          string    `gorm:"not null"`
	Type          string    `gorm:"not null"`
	Category      string    `gorm:"not null"`
	NormalBalance string    `gorm:"not null"`
	ScopeRef      string    `gorm:""`
	Status        string    `gorm:"not null;default:active"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (Account) TableName() string { return "accounts" }

func (account *Account) BeforeCreate(tx *gorm.DB) error {
	if account.AccountID == "" {
		account.AccountID = uuid.NewString()
	}
	return nil
}

// LedgerTransaction mirrors the ledger_transactions table.
type LedgerTransaction struct {
	TransactionID  string    `gorm:"type:uuid;primaryKey"`
	TenantID       string    `gorm:"not null;index:uniq_tx_tenant_idem,unique,priority:1;index:idx_tx_tenant_created,priority:1"`
	TransactionRef string    `gorm:"not null;index:uniq_tx_ref,unique"`
	IdempotencyKey string    `gorm:"not null;index:uniq_tx_tenant_idem,unique,priority:2"`
	EventType      string    `gorm:"not null"`
	SourceRef      string    `gorm:"index"`
	AmountMinor    int64     `gorm:"not null"`
	Currency       string    `gorm:"not null"`
	Status         string    `gorm:"not null"`
	EffectiveDate  time.Time `gorm:"not null;index"`
	ReversesID     *string   `gorm:"type:uuid"`
	ReversedByID   *string   `gorm:"type:uuid"`
	OverrideID     *string   `gorm:"type:uuid"`
	CreatedBy      string    `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null;index:idx_tx_tenant_created,priority:2"`
}

func (LedgerTransaction) TableName() string { return "ledger_transactions" }

func (transaction *LedgerTransaction) BeforeCreate(tx *gorm.DB) error {
	if transaction.TransactionID == "" {
		transaction.TransactionID = uuid.NewString()
	}
	return nil
}

// LedgerEntry mirrors the ledger_entries table. Rows are append-only; the
// migration installs triggers rejecting UPDATE and DELETE below the
// application layer.
type LedgerEntry struct {
	EntryID       string    `gorm:"type:uuid;primaryKey"`
	TransactionID string    `gorm:"type:uuid;not null;index:idx_entries_transaction"`
	AccountID     string    `gorm:"type:uuid;not null;index:idx_entries_account"`
	AccountCode   string    `gorm:"not null;index:idx_entries_account_code"`
	EntryType     string    `gorm:"not null"`
	AmountMinor   int64     `gorm:"not null"`
	Currency      string    `gorm:"not null"`
	Description   string    `gorm:""`
	CreatedBy     string    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }

func (entry *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	return nil
}

// AccountingPeriod mirrors the accounting_periods table.
type AccountingPeriod struct {
	PeriodID     string     `gorm:"type:uuid;primaryKey"`
	StartDate    time.Time  `gorm:"not null;index:uniq_periods_start,unique"`
	EndDate      time.Time  `gorm:"not null"`
	Type         string     `gorm:"not null"`
	Status       string     `gorm:"not null"`
	ClosedBy     string     `gorm:""`
	ClosedAt     *time.Time `gorm:""`
	ClosureNotes string     `gorm:""`
	CreatedAt    time.Time  `gorm:"not null"`
}

func (AccountingPeriod) TableName() string { return "accounting_periods" }

func (period *AccountingPeriod) BeforeCreate(tx *gorm.DB) error {
	if period.PeriodID == "" {
		period.PeriodID = uuid.NewString()
	}
	return nil
}

// LedgerLock mirrors the ledger_locks table.
type LedgerLock struct {
	LockID       string     `gorm:"type:uuid;primaryKey"`
	LockType     string     `gorm:"not null"`
	Scope        string     `gorm:"not null"`
	FromTs       time.Time  `gorm:"not null;index:idx_locks_window,priority:1"`
	ToTs         time.Time  `gorm:"not null;index:idx_locks_window,priority:2"`
	Reason       string     `gorm:"not null"`
	LockedBy     string     `gorm:"not null"`
	LockedAt     time.Time  `gorm:"not null"`
	ReleasedBy   string     `gorm:""`
	ReleasedAt   *time.Time `gorm:""`
	ReleaseNotes string     `gorm:""`
}

func (LedgerLock) TableName() string { return "ledger_locks" }

func (lock *LedgerLock) BeforeCreate(tx *gorm.DB) error {
	if lock.LockID == "" {
		lock.LockID = uuid.NewString()
	}
	return nil
}

// Settlement mirrors the settlements table.
type Settlement struct {
	SettlementID        string    `gorm:"type:uuid;primaryKey"`
	MerchantID          string    `gorm:"not null;index:idx_settlements_merchant"`
	SettlementRef       string    `gorm:"not null;index:uniq_settlements_ref,unique"`
	State               string    `gorm:"not null"`
	GrossMinor          int64     `gorm:"not null"`
	FeesMinor           int64     `gorm:"not null"`
	NetMinor            int64     `gorm:"not null"`
	Currency            string    `gorm:"not null"`
	BankAccountRef      string    `gorm:"not null"`
	UTR                 string    `gorm:""`
	RetryCount          int       `gorm:"not null;default:0"`
	LedgerTransactionID *string   `gorm:"type:uuid"`
	CreatedAt           time.Time `gorm:"not null"`
	UpdatedAt           time.Time `gorm:"not null"`
}

func (Settlement) TableName() string { return "settlements" }

func (settlement *Settlement) BeforeCreate(tx *gorm.DB) error {
	if settlement.SettlementID == "" {
		settlement.SettlementID = uuid.NewString()
	}
	return nil
}

// ReconciliationBatch mirrors the reconciliation_batches table.
type ReconciliationBatch struct {
	BatchID         string     `gorm:"type:uuid;primaryKey"`
	BatchType       string     `gorm:"not null"`
	Source          string     `gorm:"not null"`
	PeriodID        string     `gorm:"type:uuid;not null;index:idx_recon_period"`
	Status          string     `gorm:"not null"`
	ExpectedMinor   int64      `gorm:"not null;default:0"`
	ActualMinor     int64      `gorm:"not null;default:0"`
	DifferenceMinor int64      `gorm:"not null;default:0"`
	CreatedBy       string     `gorm:"not null"`
	CreatedAt       time.Time  `gorm:"not null"`
	CompletedAt     *time.Time `gorm:""`
}

func (ReconciliationBatch) TableName() string { return "reconciliation_batches" }

func (batch *ReconciliationBatch) BeforeCreate(tx *gorm.DB) error {
	if batch.BatchID == "" {
		batch.BatchID = uuid.NewString()
	}
	return nil
}

// ReconciliationItem mirrors the reconciliation_items table.
type ReconciliationItem struct {
	ItemID           string     `gorm:"type:uuid;primaryKey"`
	BatchID          string     `gorm:"type:uuid;not null;index:idx_recon_items_batch"`
	OrderRef         string     `gorm:"not null"`
	InternalMinor    *int64     `gorm:""`
	ExternalMinor    *int64     `gorm:""`
	DifferenceMinor  int64      `gorm:"not null;default:0"`
	MatchStatus      string     `gorm:"not null"`
	ResolutionStatus string     `gorm:"not null"`
	ResolutionNotes  string     `gorm:""`
	ResolvedBy       string     `gorm:""`
	ResolvedAt       *time.Time `gorm:""`
	CreatedAt        time.Time  `gorm:"not null"`
}

func (ReconciliationItem) TableName() string { return "reconciliation_items" }

func (item *ReconciliationItem) BeforeCreate(tx *gorm.DB) error {
	if item.ItemID == "" {
		item.ItemID = uuid.NewString()
	}
	return nil
}

// OverrideRequest mirrors the override_requests table.
type OverrideRequest struct {
	OverrideID     string         `gorm:"type:uuid;primaryKey"`
	RequestType    string         `gorm:"not null"`
	RequestorID    string         `gorm:"not null;index:idx_overrides_requestor"`
	Justification  string         `gorm:"not null"`
	AffectedRefs   datatypes.JSON `gorm:"not null"`
	Status         string         `gorm:"not null"`
	ApproverID     string         `gorm:""`
	ApprovalReason string         `gorm:""`
	RequestedAt    time.Time      `gorm:"not null"`
	DecidedAt      *time.Time     `gorm:""`
	ConsumedAt     *time.Time     `gorm:""`
}

func (OverrideRequest) TableName() string { return "override_requests" }

func (request *OverrideRequest) BeforeCreate(tx *gorm.DB) error {
	if request.OverrideID == "" {
		request.OverrideID = uuid.NewString()
	}
	return nil
}

// AuditRecord mirrors the append-only audit_records table.
type AuditRecord struct {
	RecordID  string    `gorm:"type:uuid;primaryKey"`
	Actor     string    `gorm:"not null;index:idx_audit_actor"`
	Action    string    `gorm:"not null;index:idx_audit_action"`
	Subject   string    `gorm:"not null"`
	SubjectID string    `gorm:""`
	Reason    string    `gorm:""`
	Status    string    `gorm:"not null"`
	Detail    string    `gorm:""`
	At        time.Time `gorm:"not null;index:idx_audit_at"`
}

func (AuditRecord) TableName() string { return "audit_records" }

func (record *AuditRecord) BeforeCreate(tx *gorm.DB) error {
	if record.RecordID == "" {
		record.RecordID = uuid.NewString()
	}
	return nil
}
