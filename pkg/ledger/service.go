package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service is the ledger posting service: the only component allowed to
// write ledger transactions and entries.
type Service struct {
	store Store
	nowFn func() time.Time
	idFn  func() string
	audit AuditSink
}

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithAuditSink wires the sink that receives one record per state change.
func WithAuditSink(sink AuditSink) ServiceOption {
	return func(service *Service) {
		service.audit = sink
	}
}

// WithIDGenerator overrides row id generation (tests use deterministic ids).
func WithIDGenerator(idFn func() string) ServiceOption {
	return func(service *Service) {
		service.idFn = idFn
	}
}

// NewService wires a posting service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now, idFn: uuid.NewString, audit: NopSink{}}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// PostInput carries the caller-supplied envelope around a domain event.
type PostInput struct {
	IdempotencyKey IdempotencyKey
	Actor          ActorID
	// EffectiveDate is the accounting date; the zero value means "today".
	EffectiveDate time.Time
	// OverrideID names an approved override when posting into a soft-closed
	// period or a locked scope.
	OverrideID string
}

// Post expands a domain event into balanced entries and persists them
// atomically. Replaying the same idempotency key returns the original
// transaction unchanged.
func (service *Service) Post(ctx context.Context, event Event, input PostInput) (Transaction, error) {
	var posted Transaction
	operationError := service.post(ctx, event, input, &posted)
	service.record(ctx, AuditRecord{
		Actor:     input.Actor.String(),
		Action:    "ledger.post",
		Subject:   "transaction",
		SubjectID: posted.ID,
		Error:     operationError,
	})
	return posted, operationError
}

func (service *Service) post(ctx context.Context, event Event, input PostInput, posted *Transaction) error {
	if event == nil {
		return WrapError("post", "event", "nil", fmt.Errorf("%w: nil event", ErrValidation))
	}
	meta := event.Meta()
	if _, err := NewTenantID(meta.TenantID); err != nil {
		return WrapError("post", "event", "tenant", err)
	}
	if input.IdempotencyKey.String() == "" {
		return WrapError("post", "event", "idempotency_key", fmt.Errorf("%w: empty value", ErrInvalidIdempotencyKey))
	}
	currency, err := NewCurrency(meta.Currency.String())
	if err != nil {
		return WrapError("post", "event", "currency", err)
	}

	txErr := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		existing, found, err := txStore.FindTransactionByIdempotencyKey(ctx, meta.TenantID, input.IdempotencyKey.String())
		if err != nil {
			return err
		}
		if found {
			*posted = existing
			return nil
		}

		now := service.nowFn().UTC()
		effective := input.EffectiveDate
		if effective.IsZero() {
			effective = now
		}
		effective = effective.UTC().Truncate(24 * time.Hour)

		override, overrideNeeded, err := service.checkGates(ctx, txStore, event, effective, input.OverrideID, input.IdempotencyKey.String())
		if err != nil {
			return err
		}

		lines, err := event.entryLines()
		if err != nil {
			return WrapError("post", "event", "expand", err)
		}

		transactionID := service.idFn()
		entries, err := service.resolveEntries(ctx, txStore, transactionID, lines, currency, input.Actor.String(), now)
		if err != nil {
			return err
		}
		if err := assertBalanced(entries); err != nil {
			return WrapError("post", "entries", "unbalanced", err)
		}

		transaction := Transaction{
			ID:             transactionID,
			TenantID:       meta.TenantID,
			TransactionRef: "TXN-" + transactionID,
			IdempotencyKey: input.IdempotencyKey.String(),
			EventType:      event.Type(),
			SourceRef:      meta.SourceRef,
			AmountMinor:    meta.AmountMinor,
			Currency:       currency,
			Status:         TransactionPosted,
			EffectiveDate:  effective,
			CreatedBy:      input.Actor.String(),
			CreatedAt:      now,
		}
		if overrideNeeded {
			transaction.OverrideID = override.ID
			if err := txStore.ConsumeOverride(ctx, override.ID, now); err != nil {
				return err
			}
		}

		if err := txStore.InsertTransaction(ctx, transaction, entries); err != nil {
			return err
		}
		*posted = transaction
		return nil
	})
	if errors.Is(txErr, ErrIdempotencyConflict) {
		// A racing caller committed first. The failed insert poisoned the
		// surrounding transaction on postgres, so the winner's row is read
		// in a fresh one after the rollback.
		winner, found, lookupErr := service.store.FindTransactionByIdempotencyKey(ctx, meta.TenantID, input.IdempotencyKey.String())
		if lookupErr != nil {
			return lookupErr
		}
		if found {
			*posted = winner
			return nil
		}
	}
	return txErr
}

// checkGates enforces the period and lock rules for a posting effective on
// the given date. It returns the override to consume when one was required.
func (service *Service) checkGates(ctx context.Context, txStore Store, event Event, effective time.Time, overrideID string, requestRef string) (OverrideRequest, bool, error) {
	period, found, err := txStore.PeriodForDate(ctx, effective)
	if err != nil {
		return OverrideRequest{}, false, err
	}
	if !found {
		return OverrideRequest{}, false, WrapError("post", "period", "missing", fmt.Errorf("%w: %s", ErrNoPeriodForDate, effective.Format("2006-01-02")))
	}

	overrideNeeded := false
	switch period.Status {
	case PeriodOpen:
	case PeriodSoftClosed:
		overrideNeeded = true
	case PeriodHardClosed:
		return OverrideRequest{}, false, WrapError("post", "period", "hard_closed", fmt.Errorf("%w: period %s", ErrHardClosedPeriod, period.ID))
	}

	locks, err := txStore.ActiveLocks(ctx, effective)
	if err != nil {
		return OverrideRequest{}, false, err
	}
	scopeKeys := event.scopeKeys()
	for _, lock := range locks {
		if !lock.Matches(scopeKeys) {
			continue
		}
		if lock.Type == LockPeriod {
			// Period locks come from hard closes and admit no override.
			return OverrideRequest{}, false, WrapError("post", "lock", "period", fmt.Errorf("%w: lock %s", ErrHardClosedPeriod, lock.ID))
		}
		overrideNeeded = true
	}

	if !overrideNeeded {
		return OverrideRequest{}, false, nil
	}
	if overrideID == "" {
		if period.Status == PeriodSoftClosed {
			return OverrideRequest{}, false, WrapError("post", "period", "soft_closed", fmt.Errorf("%w: period %s", ErrLockedPeriod, period.ID))
		}
		return OverrideRequest{}, false, WrapError("post", "lock", "scope", ErrLockedScope)
	}
	override, err := txStore.GetOverride(ctx, overrideID)
	if err != nil {
		return OverrideRequest{}, false, err
	}
	if !override.UsableFor(requestRef) {
		return OverrideRequest{}, false, WrapError("post", "override", "unusable", fmt.Errorf("%w: override %s", ErrOverrideNotUsable, overrideID))
	}
	return override, true, nil
}

func (service *Service) resolveEntries(ctx context.Context, txStore Store, transactionID string, lines []EntryLine, currency Currency, actor string, now time.Time) ([]Entry, error) {
	accountsByCode := make(map[string]Account, len(lines))
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		account, seen := accountsByCode[line.Account.Code]
		if !seen {
			var err error
			if line.MustExist {
				account, err = txStore.GetAccountByCode(ctx, line.Account.Code)
			} else {
				account, err = txStore.GetOrCreateAccount(ctx, line.Account)
			}
			if err != nil {
				return nil, WrapError("post", "account", "resolve", err)
			}
			accountsByCode[line.Account.Code] = account
		}
		if account.Status == AccountClosed {
			return nil, WrapError("post", "account", "closed", fmt.Errorf("%w: %s", ErrAccountClosed, account.Code))
		}
		entries = append(entries, Entry{
			ID:            service.idFn(),
			TransactionID: transactionID,
			AccountID:     account.ID,
			AccountCode:   account.Code,
			Side:          line.Side,
			AmountMinor:   line.AmountMinor,
			Currency:      currency,
			Description:   line.Description,
			CreatedBy:     actor,
			CreatedAt:     now,
		})
	}
	return entries, nil
}

func assertBalanced(entries []Entry) error {
	var debits, credits int64
	for _, entry := range entries {
		if entry.AmountMinor <= 0 {
			return fmt.Errorf("%w: entry amount must be positive", ErrValidation)
		}
		switch entry.Side {
		case SideDebit:
			debits += entry.AmountMinor
		case SideCredit:
			credits += entry.AmountMinor
		default:
			return fmt.Errorf("%w: %q", ErrInvalidEntrySide, entry.Side)
		}
	}
	if debits != credits {
		return fmt.Errorf("%w: debits=%d credits=%d", ErrUnbalancedEntries, debits, credits)
	}
	return nil
}

func (service *Service) record(ctx context.Context, record AuditRecord) {
	if service.audit == nil {
		return
	}
	record.At = service.nowFn().UTC()
	if record.Status == "" {
		if record.Error != nil {
			record.Status = AuditStatusError
		} else {
			record.Status = AuditStatusOK
		}
	}
	service.audit.Record(ctx, record)
}
