package settlement

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/altipay/ledgercore/pkg/ledger"
	"github.com/stretchr/testify/require"
)

var testClock = time.Date(2026, time.March, 14, 10, 30, 0, 0, time.UTC)

func fixedNow() time.Time { return testClock }

type stubStore struct {
	settlements map[string]Settlement
	refs        map[string]bool
}

func newStubStore() *stubStore {
	return &stubStore{settlements: make(map[string]Settlement), refs: make(map[string]bool)}
}

func (s *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	return fn(ctx, s)
}

func (s *stubStore) InsertSettlement(ctx context.Context, settlement Settlement) error {
	if s.refs[settlement.SettlementRef] {
		return fmt.Errorf("insert: %w", ErrDuplicateSettlement)
	}
	s.settlements[settlement.ID] = settlement
	s.refs[settlement.SettlementRef] = true
	return nil
}

func (s *stubStore) GetSettlementForUpdate(ctx context.Context, id string) (Settlement, error) {
	return s.GetSettlement(ctx, id)
}

func (s *stubStore) UpdateSettlement(ctx context.Context, settlement Settlement, fromState State) error {
	existing, ok := s.settlements[settlement.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSettlement, settlement.ID)
	}
	if existing.State != fromState {
		return fmt.Errorf("%w: state changed underneath", ErrInvalidTransition)
	}
	s.settlements[settlement.ID] = settlement
	return nil
}

func (s *stubStore) ListSettlements(ctx context.Context, merchantID string, limit int) ([]Settlement, error) {
	settlements := make([]Settlement, 0, len(s.settlements))
	for _, settlement := range s.settlements {
		if merchantID != "" && settlement.MerchantID != merchantID {
			continue
		}
		settlements = append(settlements, settlement)
	}
	return settlements, nil
}

func (s *stubStore) GetSettlement(ctx context.Context, id string) (Settlement, error) {
	settlement, ok := s.settlements[id]
	if !ok {
		return Settlement{}, fmt.Errorf("%w: %s", ErrUnknownSettlement, id)
	}
	return settlement, nil
}

func mustService(test *testing.T, store Store, options ...Option) *Service {
	test.Helper()
	service, err := NewService(store, fixedNow, nil, options...)
	require.NoError(test, err)
	return service
}

func opsActor(test *testing.T) ledger.ActorID {
	test.Helper()
	actor, err := ledger.NewActorID("ops")
	require.NoError(test, err)
	return actor
}

func sampleCreateInput() CreateInput {
	return CreateInput{
		MerchantID:     "M001",
		SettlementRef:  "SETTLE-2026-03-14-M001",
		GrossMinor:     100000,
		FeesMinor:      3500,
		NetMinor:       96500,
		Currency:       "INR",
		BankAccountRef: "bank-ref-1",
	}
}

func mustCreate(test *testing.T, service *Service) Settlement {
	test.Helper()
	settlement, err := service.Create(context.Background(), sampleCreateInput(), opsActor(test))
	require.NoError(test, err)
	return settlement
}

func TestCreateOpensInCreatedState(test *testing.T) {
	test.Parallel()
	service := mustService(test, newStubStore())

	settlement := mustCreate(test, service)
	require.Equal(test, StateCreated, settlement.State)
	require.Equal(test, int64(96500), settlement.NetMinor)
	require.Zero(test, settlement.RetryCount)
}

func TestCreateRejectsInconsistentAmounts(test *testing.T) {
	test.Parallel()
	service := mustService(test, newStubStore())

	input := sampleCreateInput()
	input.NetMinor = 90000
	_, err := service.Create(context.Background(), input, opsActor(test))
	require.ErrorIs(test, err, ErrInvalidAmounts)
}

func TestCreateRejectsDuplicateRef(test *testing.T) {
	test.Parallel()
	service := mustService(test, newStubStore())

	mustCreate(test, service)
	_, err := service.Create(context.Background(), sampleCreateInput(), opsActor(test))
	require.ErrorIs(test, err, ErrDuplicateSettlement)
}

func TestHappyPathReachesSettled(test *testing.T) {
	test.Parallel()
	service := mustService(test, newStubStore())
	settlement := mustCreate(test, service)

	steps := []struct {
		to    State
		input TransitionInput
	}{
		{StateFundsReserved, TransitionInput{}},
		{StateSentToBank, TransitionInput{}},
		{StateBankConfirmed, TransitionInput{UTR: "UTR123456"}},
		{StateSettled, TransitionInput{}},
	}
	for _, step := range steps {
		updated, err := service.Transition(context.Background(), settlement.ID, step.to, step.input, opsActor(test))
		require.NoError(test, err, "transition to %s", step.to)
		require.Equal(test, step.to, updated.State)
	}

	final, err := service.Get(context.Background(), settlement.ID)
	require.NoError(test, err)
	require.Equal(test, "UTR123456", final.UTR)
	require.True(test, final.State.Terminal())
}

func TestTransitionRejectsSkippedState(test *testing.T) {
	test.Parallel()
	service := mustService(test, newStubStore())
	settlement := mustCreate(test, service)

	_, err := service.Transition(context.Background(), settlement.ID, StateSentToBank, TransitionInput{}, opsActor(test))
	require.ErrorIs(test, err, ErrInvalidTransition)
}

func TestBankConfirmationRequiresUTR(test *testing.T) {
	test.Parallel()
	service := mustService(test, newStubStore())
	settlement := mustCreate(test, service)

	for _, to := range []State{StateFundsReserved, StateSentToBank} {
		_, err := service.Transition(context.Background(), settlement.ID, to, TransitionInput{}, opsActor(test))
		require.NoError(test, err)
	}

	_, err := service.Transition(context.Background(), settlement.ID, StateBankConfirmed, TransitionInput{}, opsActor(test))
	require.ErrorIs(test, err, ErrUTRRequired)
}

func TestAnyActiveStateMayFail(test *testing.T) {
	test.Parallel()
	service := mustService(test, newStubStore())
	settlement := mustCreate(test, service)

	failed, err := service.Transition(context.Background(), settlement.ID, StateFailed, TransitionInput{Reason: "bank timeout"}, opsActor(test))
	require.NoError(test, err)
	require.Equal(test, StateFailed, failed.State)
}

func TestSettledIsTerminal(test *testing.T) {
	test.Parallel()
	service := mustService(test, newStubStore())
	settlement := mustCreate(test, service)

	for _, step := range []struct {
		to    State
		input TransitionInput
	}{
		{StateFundsReserved, TransitionInput{}},
		{StateSentToBank, TransitionInput{}},
		{StateBankConfirmed, TransitionInput{UTR: "UTR1"}},
		{StateSettled, TransitionInput{}},
	} {
		_, err := service.Transition(context.Background(), settlement.ID, step.to, step.input, opsActor(test))
		require.NoError(test, err)
	}

	_, err := service.Transition(context.Background(), settlement.ID, StateFailed, TransitionInput{}, opsActor(test))
	require.ErrorIs(test, err, ErrInvalidTransition)
}

func TestRetryCyclesBackThroughFundsReserved(test *testing.T) {
	test.Parallel()
	service := mustService(test, newStubStore())
	settlement := mustCreate(test, service)

	_, err := service.Transition(context.Background(), settlement.ID, StateFailed, TransitionInput{}, opsActor(test))
	require.NoError(test, err)

	retried, err := service.Retry(context.Background(), settlement.ID, opsActor(test))
	require.NoError(test, err)
	require.Equal(test, StateRetried, retried.State)
	require.Equal(test, 1, retried.RetryCount)

	reserved, err := service.Transition(context.Background(), settlement.ID, StateFundsReserved, TransitionInput{}, opsActor(test))
	require.NoError(test, err)
	require.Equal(test, StateFundsReserved, reserved.State)
}

func TestRetryRequiresFailedState(test *testing.T) {
	test.Parallel()
	service := mustService(test, newStubStore())
	settlement := mustCreate(test, service)

	_, err := service.Retry(context.Background(), settlement.ID, opsActor(test))
	require.ErrorIs(test, err, ErrInvalidTransition)
}

func TestRetryStopsAtConfiguredLimit(test *testing.T) {
	test.Parallel()
	service := mustService(test, newStubStore(), WithMaxRetries(2))
	settlement := mustCreate(test, service)

	for attempt := 1; attempt <= 2; attempt++ {
		_, err := service.Transition(context.Background(), settlement.ID, StateFailed, TransitionInput{}, opsActor(test))
		require.NoError(test, err)
		retried, err := service.Retry(context.Background(), settlement.ID, opsActor(test))
		require.NoError(test, err)
		require.Equal(test, attempt, retried.RetryCount)
		_, err = service.Transition(context.Background(), settlement.ID, StateFundsReserved, TransitionInput{}, opsActor(test))
		require.NoError(test, err)
	}

	_, err := service.Transition(context.Background(), settlement.ID, StateFailed, TransitionInput{}, opsActor(test))
	require.NoError(test, err)
	_, err = service.Retry(context.Background(), settlement.ID, opsActor(test))
	require.ErrorIs(test, err, ErrRetriesExhausted)
}

func TestTransitionRefusesDirectRetry(test *testing.T) {
	test.Parallel()
	service := mustService(test, newStubStore(), WithMaxRetries(1))
	settlement := mustCreate(test, service)

	_, err := service.Transition(context.Background(), settlement.ID, StateFailed, TransitionInput{}, opsActor(test))
	require.NoError(test, err)

	// Re-entering the cycle without Retry would skip the counter and the
	// ceiling, so the generic path refuses RETRIED outright.
	for attempt := 0; attempt < 3; attempt++ {
		_, err = service.Transition(context.Background(), settlement.ID, StateRetried, TransitionInput{}, opsActor(test))
		require.ErrorIs(test, err, ErrInvalidTransition)
	}

	still, err := service.Get(context.Background(), settlement.ID)
	require.NoError(test, err)
	require.Equal(test, StateFailed, still.State)
	require.Zero(test, still.RetryCount)

	retried, err := service.Retry(context.Background(), settlement.ID, opsActor(test))
	require.NoError(test, err)
	require.Equal(test, 1, retried.RetryCount)

	_, err = service.Transition(context.Background(), settlement.ID, StateFailed, TransitionInput{}, opsActor(test))
	require.NoError(test, err)
	_, err = service.Retry(context.Background(), settlement.ID, opsActor(test))
	require.ErrorIs(test, err, ErrRetriesExhausted)
}

func TestAttachLedgerTransaction(test *testing.T) {
	test.Parallel()
	service := mustService(test, newStubStore())
	settlement := mustCreate(test, service)

	require.NoError(test, service.AttachLedgerTransaction(context.Background(), settlement.ID, "txn-42", opsActor(test)))

	attached, err := service.Get(context.Background(), settlement.ID)
	require.NoError(test, err)
	require.Equal(test, "txn-42", attached.LedgerTransactionID)
}

func TestTransitionUnknownSettlement(test *testing.T) {
	test.Parallel()
	service := mustService(test, newStubStore())

	_, err := service.Transition(context.Background(), "missing", StateFundsReserved, TransitionInput{}, opsActor(test))
	require.ErrorIs(test, err, ErrUnknownSettlement)
}
