package gormstore

import (
	"encoding/json"

	"github.com/altipay/ledgercore/pkg/ledger"
	"gorm.io/datatypes"
)

func mapAccount(model Account) (ledger.Account, error) {
	accountType, err := ledger.ParseAccountType(model.Type)
	if err != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeInvalid, err)
	}
	category, err := ledger.ParseAccountCategory(model.Category)
	if err != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeInvalid, err)
	}
	side, err := ledger.ParseEntrySide(model.NormalBalance)
	if err != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeInvalid, err)
	}
	status, err := ledger.ParseAccountStatus(model.Status)
	if err != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeInvalid, err)
	}
	return ledger.Account{
		ID:            model.AccountID,
		Code:          model.Code,
		Name:          model.Name,
		Type:          accountType,
		Category:      category,
		NormalBalance: side,
		ScopeRef:      model.ScopeRef,
		Status:        status,
		CreatedAt:     model.CreatedAt,
	}, nil
}

func mapTransaction(model LedgerTransaction) (ledger.Transaction, error) {
	status, err := ledger.ParseTransactionStatus(model.Status)
	if err != nil {
		return ledger.Transaction{}, wrapStoreError(errorSubjectTx, errorCodeInvalid, err)
	}
	return ledger.Transaction{
		ID:             model.TransactionID,
		TenantID:       model.TenantID,
		TransactionRef: model.TransactionRef,
		IdempotencyKey: model.IdempotencyKey,
		EventType:      ledger.EventType(model.EventType),
		SourceRef:      model.SourceRef,
		AmountMinor:    model.AmountMinor,
		Currency:       ledger.Currency(model.Currency),
		Status:         status,
		EffectiveDate:  model.EffectiveDate,
		ReversesID:     stringOrEmpty(model.ReversesID),
		ReversedByID:   stringOrEmpty(model.ReversedByID),
		OverrideID:     stringOrEmpty(model.OverrideID),
		CreatedBy:      model.CreatedBy,
		CreatedAt:      model.CreatedAt,
	}, nil
}

func unmapTransaction(transaction ledger.Transaction) LedgerTransaction {
	return LedgerTransaction{
		TransactionID:  transaction.ID,
		TenantID:       transaction.TenantID,
		TransactionRef: transaction.TransactionRef,
		IdempotencyKey: transaction.IdempotencyKey,
		EventType:      string(transaction.EventType),
		SourceRef:      transaction.SourceRef,
		AmountMinor:    transaction.AmountMinor,
		Currency:       transaction.Currency.String(),
		Status:         string(transaction.Status),
		EffectiveDate:  transaction.EffectiveDate,
		ReversesID:     emptyToNil(transaction.ReversesID),
		ReversedByID:   emptyToNil(transaction.ReversedByID),
		OverrideID:     emptyToNil(transaction.OverrideID),
		CreatedBy:      transaction.CreatedBy,
		CreatedAt:      transaction.CreatedAt,
	}
}

func mapEntry(model LedgerEntry) (ledger.Entry, error) {
	side, err := ledger.ParseEntrySide(model.EntryType)
	if err != nil {
		return ledger.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
	}
	return ledger.Entry{
		ID:            model.EntryID,
		TransactionID: model.TransactionID,
		AccountID:     model.AccountID,
		AccountCode:   model.AccountCode,
		Side:          side,
		AmountMinor:   model.AmountMinor,
		Currency:      ledger.Currency(model.Currency),
		Description:   model.Description,
		CreatedBy:     model.CreatedBy,
		CreatedAt:     model.CreatedAt,
	}, nil
}

func mapPeriod(model AccountingPeriod) (ledger.Period, error) {
	status, err := ledger.ParsePeriodStatus(model.Status)
	if err != nil {
		return ledger.Period{}, wrapStoreError(errorSubjectPeriod, errorCodeInvalid, err)
	}
	return ledger.Period{
		ID:           model.PeriodID,
		StartDate:    model.StartDate,
		EndDate:      model.EndDate,
		Type:         ledger.PeriodType(model.Type),
		Status:       status,
		ClosedBy:     model.ClosedBy,
		ClosedAt:     model.ClosedAt,
		ClosureNotes: model.ClosureNotes,
	}, nil
}

func mapLock(model LedgerLock) (ledger.Lock, error) {
	lockType, err := ledger.ParseLockType(model.LockType)
	if err != nil {
		return ledger.Lock{}, wrapStoreError(errorSubjectLock, errorCodeInvalid, err)
	}
	return ledger.Lock{
		ID:           model.LockID,
		Type:         lockType,
		Scope:        model.Scope,
		FromTs:       model.FromTs,
		ToTs:         model.ToTs,
		Reason:       model.Reason,
		LockedBy:     model.LockedBy,
		LockedAt:     model.LockedAt,
		ReleasedBy:   model.ReleasedBy,
		ReleasedAt:   model.ReleasedAt,
		ReleaseNotes: model.ReleaseNotes,
	}, nil
}

func mapOverride(model OverrideRequest) (ledger.OverrideRequest, error) {
	status, err := ledger.ParseOverrideStatus(model.Status)
	if err != nil {
		return ledger.OverrideRequest{}, wrapStoreError(errorSubjectOverride, errorCodeInvalid, err)
	}
	var refs []string
	if len(model.AffectedRefs) > 0 {
		if err := json.Unmarshal(model.AffectedRefs, &refs); err != nil {
			return ledger.OverrideRequest{}, wrapStoreError(errorSubjectOverride, errorCodeInvalid, err)
		}
	}
	return ledger.OverrideRequest{
		ID:             model.OverrideID,
		RequestType:    model.RequestType,
		RequestorID:    model.RequestorID,
		Justification:  model.Justification,
		AffectedRefs:   refs,
		Status:         status,
		ApproverID:     model.ApproverID,
		ApprovalReason: model.ApprovalReason,
		RequestedAt:    model.RequestedAt,
		DecidedAt:      model.DecidedAt,
		ConsumedAt:     model.ConsumedAt,
	}, nil
}

func unmapOverride(request ledger.OverrideRequest) (OverrideRequest, error) {
	refs, err := json.Marshal(request.AffectedRefs)
	if err != nil {
		return OverrideRequest{}, wrapStoreError(errorSubjectOverride, errorCodeInvalid, err)
	}
	return OverrideRequest{
		OverrideID:     request.ID,
		RequestType:    request.RequestType,
		RequestorID:    request.RequestorID,
		Justification:  request.Justification,
		AffectedRefs:   datatypes.JSON(refs),
		Status:         string(request.Status),
		ApproverID:     request.ApproverID,
		ApprovalReason: request.ApprovalReason,
		RequestedAt:    request.RequestedAt,
		DecidedAt:      request.DecidedAt,
		ConsumedAt:     request.ConsumedAt,
	}, nil
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func emptyToNil(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
