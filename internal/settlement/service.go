// Package settlement tracks merchant payouts through a table-driven state
// machine from creation to bank-confirmed finality.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/altipay/ledgercore/pkg/ledger"
	"github.com/google/uuid"
)

// Errors returned by the settlement state machine.
var (
	ErrInvalidState      = errors.New("invalid settlement state")
	ErrInvalidTransition = errors.New("settlement transition not allowed")
	ErrUTRRequired       = errors.New("bank confirmation requires a UTR")
	ErrRetriesExhausted  = errors.New("settlement retry limit reached")
	ErrUnknownSettlement = errors.New("unknown settlement")
	ErrInvalidAmounts    = errors.New("settlement amounts are inconsistent")
	// ErrDuplicateSettlement surfaces the unique constraint on the
	// settlement reference.
	ErrDuplicateSettlement = errors.New("settlement ref already exists")
)

// DefaultMaxRetries bounds FAILED -> RETRIED cycles when no limit is
// configured.
const DefaultMaxRetries = 3

// Store is the persistence contract used by the settlement service.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	InsertSettlement(ctx context.Context, settlement Settlement) error
	// GetSettlementForUpdate row-locks the settlement so concurrent
	// transitions serialize.
	GetSettlementForUpdate(ctx context.Context, id string) (Settlement, error)
	UpdateSettlement(ctx context.Context, settlement Settlement, fromState State) error
	ListSettlements(ctx context.Context, merchantID string, limit int) ([]Settlement, error)
	GetSettlement(ctx context.Context, id string) (Settlement, error)
}

// Service drives the settlement state machine over a Store.
type Service struct {
	store      Store
	nowFn      func() time.Time
	idFn       func() string
	audit      ledger.AuditSink
	maxRetries int
}

// Option configures a Service instance.
type Option func(*Service)

// WithMaxRetries overrides the retry ceiling.
func WithMaxRetries(max int) Option {
	return func(service *Service) {
		if max > 0 {
			service.maxRetries = max
		}
	}
}

// NewService wires a settlement service.
func NewService(store Store, now func() time.Time, audit ledger.AuditSink, options ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ledger.ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ledger.ErrInvalidServiceConfig)
	}
	if audit == nil {
		audit = ledger.NopSink{}
	}
	service := &Service{store: store, nowFn: now, idFn: uuid.NewString, audit: audit, maxRetries: DefaultMaxRetries}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// CreateInput describes a new settlement.
type CreateInput struct {
	MerchantID     string
	SettlementRef  string
	GrossMinor     int64
	FeesMinor      int64
	NetMinor       int64
	Currency       string
	BankAccountRef string
}

// Create opens a settlement in CREATED.
func (service *Service) Create(ctx context.Context, input CreateInput, actor ledger.ActorID) (Settlement, error) {
	var created Settlement
	operationError := service.create(ctx, input, &created)
	service.record(ctx, ledger.AuditRecord{
		Actor:     actor.String(),
		Action:    "settlement.create",
		Subject:   "settlement",
		SubjectID: created.ID,
		Error:     operationError,
	})
	return created, operationError
}

func (service *Service) create(ctx context.Context, input CreateInput, created *Settlement) error {
	if input.MerchantID == "" || input.SettlementRef == "" || input.BankAccountRef == "" {
		return ledger.WrapError("settlement", "create", "input", fmt.Errorf("%w: merchant, ref, and bank account are required", ledger.ErrValidation))
	}
	if input.NetMinor <= 0 || input.FeesMinor < 0 || input.GrossMinor != input.NetMinor+input.FeesMinor {
		return ledger.WrapError("settlement", "create", "amounts", fmt.Errorf("%w: gross must equal net plus fees", ErrInvalidAmounts))
	}
	now := service.nowFn().UTC()
	settlement := Settlement{
		ID:             service.idFn(),
		MerchantID:     input.MerchantID,
		SettlementRef:  input.SettlementRef,
		State:          StateCreated,
		GrossMinor:     input.GrossMinor,
		FeesMinor:      input.FeesMinor,
		NetMinor:       input.NetMinor,
		Currency:       input.Currency,
		BankAccountRef: input.BankAccountRef,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := service.store.InsertSettlement(ctx, settlement); err != nil {
		return err
	}
	*created = settlement
	return nil
}

// TransitionInput carries optional fields some transitions require.
type TransitionInput struct {
	UTR    string
	Reason string
}

// Transition moves a settlement to the requested state if the transition
// table allows it. BANK_CONFIRMED additionally requires a non-empty UTR.
func (service *Service) Transition(ctx context.Context, id string, to State, input TransitionInput, actor ledger.ActorID) (Settlement, error) {
	var updated Settlement
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		settlement, err := txStore.GetSettlementForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if _, err := ParseState(string(to)); err != nil {
			return ledger.WrapError("settlement", "transition", "state", err)
		}
		// RETRIED carries a counter and a ceiling; only Retry applies them.
		if to == StateRetried {
			return ledger.WrapError("settlement", "transition", "retry", fmt.Errorf("%w: %s -> %s goes through retry", ErrInvalidTransition, settlement.State, to))
		}
		if !transitionAllowed(settlement.State, to) {
			return ledger.WrapError("settlement", "transition", "table", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, settlement.State, to))
		}
		if to == StateBankConfirmed && input.UTR == "" {
			return ledger.WrapError("settlement", "transition", "utr", fmt.Errorf("%w: %s -> %s", ErrUTRRequired, settlement.State, to))
		}
		fromState := settlement.State
		settlement.State = to
		if input.UTR != "" {
			settlement.UTR = input.UTR
		}
		settlement.UpdatedAt = service.nowFn().UTC()
		if err := txStore.UpdateSettlement(ctx, settlement, fromState); err != nil {
			return err
		}
		updated = settlement
		return nil
	})
	service.record(ctx, ledger.AuditRecord{
		Actor:     actor.String(),
		Action:    "settlement.transition",
		Subject:   "settlement",
		SubjectID: id,
		Reason:    string(to),
		Error:     operationError,
	})
	return updated, operationError
}

// Retry moves a FAILED settlement back into the active cycle through
// RETRIED, up to the configured maximum. Past the limit the settlement
// stays FAILED for good.
func (service *Service) Retry(ctx context.Context, id string, actor ledger.ActorID) (Settlement, error) {
	var updated Settlement
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		settlement, err := txStore.GetSettlementForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if settlement.State != StateFailed {
			return ledger.WrapError("settlement", "retry", "state", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, settlement.State, StateRetried))
		}
		if settlement.RetryCount >= service.maxRetries {
			return ledger.WrapError("settlement", "retry", "exhausted", fmt.Errorf("%w: %d attempts", ErrRetriesExhausted, settlement.RetryCount))
		}
		fromState := settlement.State
		settlement.State = StateRetried
		settlement.RetryCount++
		settlement.UpdatedAt = service.nowFn().UTC()
		if err := txStore.UpdateSettlement(ctx, settlement, fromState); err != nil {
			return err
		}
		updated = settlement
		return nil
	})
	service.record(ctx, ledger.AuditRecord{
		Actor:     actor.String(),
		Action:    "settlement.retry",
		Subject:   "settlement",
		SubjectID: id,
		Error:     operationError,
	})
	return updated, operationError
}

// AttachLedgerTransaction links the settlement to the ledger transaction
// that posted it.
func (service *Service) AttachLedgerTransaction(ctx context.Context, id string, transactionID string, actor ledger.ActorID) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		settlement, err := txStore.GetSettlementForUpdate(ctx, id)
		if err != nil {
			return err
		}
		settlement.LedgerTransactionID = transactionID
		settlement.UpdatedAt = service.nowFn().UTC()
		return txStore.UpdateSettlement(ctx, settlement, settlement.State)
	})
	service.record(ctx, ledger.AuditRecord{
		Actor:     actor.String(),
		Action:    "settlement.attach_transaction",
		Subject:   "settlement",
		SubjectID: id,
		Reason:    transactionID,
		Error:     operationError,
	})
	return operationError
}

// Get returns one settlement.
func (service *Service) Get(ctx context.Context, id string) (Settlement, error) {
	return service.store.GetSettlement(ctx, id)
}

// List returns a merchant's settlements, newest first.
func (service *Service) List(ctx context.Context, merchantID string, limit int) ([]Settlement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return service.store.ListSettlements(ctx, merchantID, limit)
}

func (service *Service) record(ctx context.Context, record ledger.AuditRecord) {
	record.At = service.nowFn().UTC()
	if record.Status == "" {
		if record.Error != nil {
			record.Status = ledger.AuditStatusError
		} else {
			record.Status = ledger.AuditStatusOK
		}
	}
	service.audit.Record(ctx, record)
}
