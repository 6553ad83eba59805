package httpapi

import (
	"time"

	"github.com/altipay/ledgercore/internal/recon"
	"github.com/altipay/ledgercore/internal/settlement"
	"github.com/altipay/ledgercore/pkg/ledger"
)

type transactionResponse struct {
	ID             string `json:"id"`
	TenantID       string `json:"tenant_id"`
	TransactionRef string `json:"transaction_ref"`
	IdempotencyKey string `json:"idempotency_key"`
	EventType      string `json:"event_type"`
	SourceRef      string `json:"source_ref,omitempty"`
	AmountMinor    int64  `json:"amount_minor"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	EffectiveDate  string `json:"effective_date"`
	ReversesID     string `json:"reverses_id,omitempty"`
	ReversedByID   string `json:"reversed_by_id,omitempty"`
	OverrideID     string `json:"override_id,omitempty"`
	CreatedBy      string `json:"created_by"`
	CreatedAt      string `json:"created_at"`
}

func toTransactionResponse(transaction ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:             transaction.ID,
		TenantID:       transaction.TenantID,
		TransactionRef: transaction.TransactionRef,
		IdempotencyKey: transaction.IdempotencyKey,
		EventType:      string(transaction.EventType),
		SourceRef:      transaction.SourceRef,
		AmountMinor:    transaction.AmountMinor,
		Currency:       transaction.Currency.String(),
		Status:         string(transaction.Status),
		EffectiveDate:  transaction.EffectiveDate.Format("2006-01-02"),
		ReversesID:     transaction.ReversesID,
		ReversedByID:   transaction.ReversedByID,
		OverrideID:     transaction.OverrideID,
		CreatedBy:      transaction.CreatedBy,
		CreatedAt:      transaction.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type entryResponse struct {
	ID            string `json:"id"`
	TransactionID string `json:"transaction_id"`
	AccountCode   string `json:"account_code"`
	Side          string `json:"side"`
	AmountMinor   int64  `json:"amount_minor"`
	Currency      string `json:"currency"`
	Description   string `json:"description,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func toEntryResponse(entry ledger.Entry) entryResponse {
	return entryResponse{
		ID:            entry.ID,
		TransactionID: entry.TransactionID,
		AccountCode:   entry.AccountCode,
		Side:          string(entry.Side),
		AmountMinor:   entry.AmountMinor,
		Currency:      entry.Currency.String(),
		Description:   entry.Description,
		CreatedAt:     entry.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type accountResponse struct {
	ID            string `json:"id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	Category      string `json:"category"`
	NormalBalance string `json:"normal_balance"`
	ScopeRef      string `json:"scope_ref,omitempty"`
	Status        string `json:"status"`
}

func toAccountResponse(account ledger.Account) accountResponse {
	return accountResponse{
		ID:            account.ID,
		Code:          account.Code,
		Name:          account.Name,
		Type:          string(account.Type),
		Category:      string(account.Category),
		NormalBalance: string(account.NormalBalance),
		ScopeRef:      account.ScopeRef,
		Status:        string(account.Status),
	}
}

type balanceResponse struct {
	AccountCode  string `json:"account_code"`
	Balance      int64  `json:"balance_minor"`
	TotalDebits  int64  `json:"total_debits_minor"`
	TotalCredits int64  `json:"total_credits_minor"`
	EntryCount   int64  `json:"entry_count"`
}

type periodResponse struct {
	ID           string `json:"id"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	ClosedBy     string `json:"closed_by,omitempty"`
	ClosedAt     string `json:"closed_at,omitempty"`
	ClosureNotes string `json:"closure_notes,omitempty"`
}

func toPeriodResponse(value ledger.Period) periodResponse {
	response := periodResponse{
		ID:           value.ID,
		StartDate:    value.StartDate.Format("2006-01-02"),
		EndDate:      value.EndDate.Format("2006-01-02"),
		Type:         string(value.Type),
		Status:       string(value.Status),
		ClosedBy:     value.ClosedBy,
		ClosureNotes: value.ClosureNotes,
	}
	if value.ClosedAt != nil {
		response.ClosedAt = value.ClosedAt.UTC().Format(time.RFC3339)
	}
	return response
}

type lockResponse struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Scope        string `json:"scope"`
	FromTs       string `json:"from_ts"`
	ToTs         string `json:"to_ts"`
	Reason       string `json:"reason"`
	LockedBy     string `json:"locked_by"`
	LockedAt     string `json:"locked_at"`
	ReleasedBy   string `json:"released_by,omitempty"`
	ReleasedAt   string `json:"released_at,omitempty"`
	ReleaseNotes string `json:"release_notes,omitempty"`
}

func toLockResponse(value ledger.Lock) lockResponse {
	response := lockResponse{
		ID:           value.ID,
		Type:         string(value.Type),
		Scope:        value.Scope,
		FromTs:       value.FromTs.UTC().Format(time.RFC3339),
		ToTs:         value.ToTs.UTC().Format(time.RFC3339),
		Reason:       value.Reason,
		LockedBy:     value.LockedBy,
		LockedAt:     value.LockedAt.UTC().Format(time.RFC3339),
		ReleasedBy:   value.ReleasedBy,
		ReleaseNotes: value.ReleaseNotes,
	}
	if value.ReleasedAt != nil {
		response.ReleasedAt = value.ReleasedAt.UTC().Format(time.RFC3339)
	}
	return response
}

type overrideResponse struct {
	ID             string   `json:"id"`
	RequestType    string   `json:"request_type"`
	RequestorID    string   `json:"requestor_id"`
	Justification  string   `json:"justification"`
	AffectedRefs   []string `json:"affected_refs"`
	Status         string   `json:"status"`
	ApproverID     string   `json:"approver_id,omitempty"`
	ApprovalReason string   `json:"approval_reason,omitempty"`
	RequestedAt    string   `json:"requested_at"`
	DecidedAt      string   `json:"decided_at,omitempty"`
	ConsumedAt     string   `json:"consumed_at,omitempty"`
}

func toOverrideResponse(value ledger.OverrideRequest) overrideResponse {
	response := overrideResponse{
		ID:             value.ID,
		RequestType:    value.RequestType,
		RequestorID:    value.RequestorID,
		Justification:  value.Justification,
		AffectedRefs:   value.AffectedRefs,
		Status:         string(value.Status),
		ApproverID:     value.ApproverID,
		ApprovalReason: value.ApprovalReason,
		RequestedAt:    value.RequestedAt.UTC().Format(time.RFC3339),
	}
	if value.DecidedAt != nil {
		response.DecidedAt = value.DecidedAt.UTC().Format(time.RFC3339)
	}
	if value.ConsumedAt != nil {
		response.ConsumedAt = value.ConsumedAt.UTC().Format(time.RFC3339)
	}
	return response
}

type settlementResponse struct {
	ID                  string `json:"id"`
	MerchantID          string `json:"merchant_id"`
	SettlementRef       string `json:"settlement_ref"`
	State               string `json:"state"`
	GrossMinor          int64  `json:"gross_minor"`
	FeesMinor           int64  `json:"fees_minor"`
	NetMinor            int64  `json:"net_minor"`
	Currency            string `json:"currency"`
	BankAccountRef      string `json:"bank_account_ref"`
	UTR                 string `json:"utr,omitempty"`
	RetryCount          int    `json:"retry_count"`
	LedgerTransactionID string `json:"ledger_transaction_id,omitempty"`
	CreatedAt           string `json:"created_at"`
	UpdatedAt           string `json:"updated_at"`
}

func toSettlementResponse(value settlement.Settlement) settlementResponse {
	return settlementResponse{
		ID:                  value.ID,
		MerchantID:          value.MerchantID,
		SettlementRef:       value.SettlementRef,
		State:               string(value.State),
		GrossMinor:          value.GrossMinor,
		FeesMinor:           value.FeesMinor,
		NetMinor:            value.NetMinor,
		Currency:            value.Currency,
		BankAccountRef:      value.BankAccountRef,
		UTR:                 value.UTR,
		RetryCount:          value.RetryCount,
		LedgerTransactionID: value.LedgerTransactionID,
		CreatedAt:           value.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:           value.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type batchResponse struct {
	ID              string `json:"id"`
	BatchType       string `json:"batch_type"`
	Source          string `json:"source"`
	PeriodID        string `json:"period_id"`
	Status          string `json:"status"`
	ExpectedMinor   int64  `json:"expected_minor"`
	ActualMinor     int64  `json:"actual_minor"`
	DifferenceMinor int64  `json:"difference_minor"`
	CreatedBy       string `json:"created_by"`
	CreatedAt       string `json:"created_at"`
	CompletedAt     string `json:"completed_at,omitempty"`
}

func toBatchResponse(value recon.Batch) batchResponse {
	response := batchResponse{
		ID:              value.ID,
		BatchType:       value.BatchType,
		Source:          value.Source,
		PeriodID:        value.PeriodID,
		Status:          string(value.Status),
		ExpectedMinor:   value.ExpectedMinor,
		ActualMinor:     value.ActualMinor,
		DifferenceMinor: value.DifferenceMinor,
		CreatedBy:       value.CreatedBy,
		CreatedAt:       value.CreatedAt.UTC().Format(time.RFC3339),
	}
	if value.CompletedAt != nil {
		response.CompletedAt = value.CompletedAt.UTC().Format(time.RFC3339)
	}
	return response
}

type itemResponse struct {
	ID               string `json:"id"`
	BatchID          string `json:"batch_id"`
	OrderRef         string `json:"order_ref"`
	InternalMinor    *int64 `json:"internal_minor,omitempty"`
	ExternalMinor    *int64 `json:"external_minor,omitempty"`
	DifferenceMinor  int64  `json:"difference_minor"`
	MatchStatus      string `json:"match_status"`
	ResolutionStatus string `json:"resolution_status"`
	ResolutionNotes  string `json:"resolution_notes,omitempty"`
	ResolvedBy       string `json:"resolved_by,omitempty"`
	ResolvedAt       string `json:"resolved_at,omitempty"`
}

func toItemResponse(value recon.Item) itemResponse {
	response := itemResponse{
		ID:               value.ID,
		BatchID:          value.BatchID,
		OrderRef:         value.OrderRef,
		InternalMinor:    value.InternalMinor,
		ExternalMinor:    value.ExternalMinor,
		DifferenceMinor:  value.DifferenceMinor,
		MatchStatus:      string(value.MatchStatus),
		ResolutionStatus: string(value.ResolutionStatus),
		ResolutionNotes:  value.ResolutionNotes,
		ResolvedBy:       value.ResolvedBy,
	}
	if value.ResolvedAt != nil {
		response.ResolvedAt = value.ResolvedAt.UTC().Format(time.RFC3339)
	}
	return response
}

type driftResponse struct {
	LeftCode     string `json:"left_code"`
	RightCode    string `json:"right_code"`
	LeftBalance  int64  `json:"left_balance_minor"`
	RightBalance int64  `json:"right_balance_minor"`
	DriftMinor   int64  `json:"drift_minor"`
}
