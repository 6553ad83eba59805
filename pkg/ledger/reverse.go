package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ReverseInput carries the envelope for a reversal posting.
type ReverseInput struct {
	Reason         string
	Actor          ActorID
	IdempotencyKey IdempotencyKey
	OverrideID     string
}

// Reverse posts the exact debit/credit inverse of a posted transaction and
// marks the original reversed. Reversal is the only correction mechanism:
// entries are never edited or deleted.
func (service *Service) Reverse(ctx context.Context, originalID string, input ReverseInput) (Transaction, error) {
	var reversal Transaction
	operationError := service.reverse(ctx, originalID, input, &reversal)
	service.record(ctx, AuditRecord{
		Actor:     input.Actor.String(),
		Action:    "ledger.reverse",
		Subject:   "transaction",
		SubjectID: originalID,
		Reason:    input.Reason,
		Error:     operationError,
	})
	return reversal, operationError
}

func (service *Service) reverse(ctx context.Context, originalID string, input ReverseInput, reversal *Transaction) error {
	if input.Reason == "" {
		return WrapError("reverse", "input", "reason", fmt.Errorf("%w: reversal requires a reason", ErrValidation))
	}
	if input.IdempotencyKey.String() == "" {
		return WrapError("reverse", "input", "idempotency_key", fmt.Errorf("%w: empty value", ErrInvalidIdempotencyKey))
	}

	var tenantID string
	txErr := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		original, err := txStore.GetTransaction(ctx, originalID)
		if err != nil {
			return err
		}
		tenantID = original.TenantID

		existing, found, err := txStore.FindTransactionByIdempotencyKey(ctx, original.TenantID, input.IdempotencyKey.String())
		if err != nil {
			return err
		}
		if found {
			*reversal = existing
			return nil
		}

		if original.Status != TransactionPosted {
			return WrapError("reverse", "transaction", "status", fmt.Errorf("%w: status is %s", ErrTransactionNotReversible, original.Status))
		}

		now := service.nowFn().UTC()
		effective := now.Truncate(24 * time.Hour)
		gateEvent := reversalGate{tenantID: original.TenantID}
		override, overrideNeeded, err := service.checkGates(ctx, txStore, gateEvent, effective, input.OverrideID, input.IdempotencyKey.String())
		if err != nil {
			return err
		}

		originalEntries, err := txStore.ListEntries(ctx, originalID)
		if err != nil {
			return err
		}
		if len(originalEntries) == 0 {
			return WrapError("reverse", "entries", "missing", fmt.Errorf("%w: transaction %s has no entries", ErrTransactionNotReversible, originalID))
		}

		reversalID := service.idFn()
		entries := make([]Entry, 0, len(originalEntries))
		for _, entry := range originalEntries {
			entries = append(entries, Entry{
				ID:            service.idFn(),
				TransactionID: reversalID,
				AccountID:     entry.AccountID,
				AccountCode:   entry.AccountCode,
				Side:          entry.Side.Opposite(),
				AmountMinor:   entry.AmountMinor,
				Currency:      entry.Currency,
				Description:   "reversal: " + input.Reason,
				CreatedBy:     input.Actor.String(),
				CreatedAt:     now,
			})
		}
		if err := assertBalanced(entries); err != nil {
			return WrapError("reverse", "entries", "unbalanced", err)
		}

		transaction := Transaction{
			ID:             reversalID,
			TenantID:       original.TenantID,
			TransactionRef: "TXN-" + reversalID,
			IdempotencyKey: input.IdempotencyKey.String(),
			EventType:      EventReversal,
			SourceRef:      original.TransactionRef,
			AmountMinor:    original.AmountMinor,
			Currency:       original.Currency,
			Status:         TransactionPosted,
			EffectiveDate:  effective,
			ReversesID:     originalID,
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
		if err := txStore.MarkTransactionReversed(ctx, originalID, reversalID); err != nil {
			return err
		}
		*reversal = transaction
		return nil
	})
	if errors.Is(txErr, ErrIdempotencyConflict) {
		// Same replay conversion as Post: the winner committed, so its row
		// is read outside the rolled-back transaction.
		winner, found, lookupErr := service.store.FindTransactionByIdempotencyKey(ctx, tenantID, input.IdempotencyKey.String())
		if lookupErr != nil {
			return lookupErr
		}
		if found {
			*reversal = winner
			return nil
		}
	}
	return txErr
}

// reversalGate lets a reversal reuse the period/lock checks without being a
// postable event in its own right.
type reversalGate struct {
	tenantID string
}

func (gate reversalGate) Type() EventType { return EventReversal }

func (gate reversalGate) Meta() EventMeta {
	return EventMeta{TenantID: gate.tenantID}
}

func (gate reversalGate) scopeKeys() []string {
	return []string{tenantScopeKey(gate.tenantID)}
}

func (gate reversalGate) entryLines() ([]EntryLine, error) {
	return nil, fmt.Errorf("%w: reversals copy entries from the original", ErrValidation)
}
