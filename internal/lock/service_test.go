package lock

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
	locks map[string]ledger.Lock
}

func newStubStore() *stubStore {
	return &stubStore{locks: make(map[string]ledger.Lock)}
}

func (s *stubStore) InsertLock(ctx context.Context, lock ledger.Lock) error {
	s.locks[lock.ID] = lock
	return nil
}

func (s *stubStore) GetLock(ctx context.Context, id string) (ledger.Lock, error) {
	lock, ok := s.locks[id]
	if !ok {
		return ledger.Lock{}, fmt.Errorf("%w: %s", ErrUnknownLock, id)
	}
	return lock, nil
}

func (s *stubStore) ReleaseLock(ctx context.Context, id string, releasedBy string, releasedAt time.Time, notes string) error {
	lock, ok := s.locks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLock, id)
	}
	lock.ReleasedBy = releasedBy
	lock.ReleasedAt = &releasedAt
	lock.ReleaseNotes = notes
	s.locks[id] = lock
	return nil
}

func (s *stubStore) ListLocks(ctx context.Context, activeOnly bool, at time.Time) ([]ledger.Lock, error) {
	locks := make([]ledger.Lock, 0, len(s.locks))
	for _, lock := range s.locks {
		if activeOnly && !lock.Active(at) {
			continue
		}
		locks = append(locks, lock)
	}
	return locks, nil
}

func mustService(test *testing.T, store Store) *Service {
	test.Helper()
	service, err := NewService(store, fixedNow, nil)
	require.NoError(test, err)
	return service
}

func auditActor(test *testing.T) ledger.ActorID {
	test.Helper()
	actor, err := ledger.NewActorID("auditor")
	require.NoError(test, err)
	return actor
}

func TestApplyAuditLock(test *testing.T) {
	test.Parallel()
	service := mustService(test, newStubStore())

	applied, err := service.Apply(context.Background(), ledger.LockAudit, "merchant:M001", testClock, testClock.Add(48*time.Hour), "quarterly audit", auditActor(test))
	require.NoError(test, err)
	require.Equal(test, ledger.LockAudit, applied.Type)
	require.True(test, applied.Active(testClock.Add(time.Hour)))
	require.True(test, applied.Matches([]string{"merchant:M001"}))
	require.False(test, applied.Matches([]string{"merchant:M002"}))
}

func TestApplyDefaultsScopeToAll(test *testing.T) {
	test.Parallel()
	service := mustService(test, newStubStore())

	applied, err := service.Apply(context.Background(), ledger.LockReconciliation, "", testClock, testClock.Add(time.Hour), "recon run", auditActor(test))
	require.NoError(test, err)
	require.Equal(test, ledger.ScopeAll, applied.Scope)
	require.True(test, applied.Matches([]string{"tenant:anything"}))
}

func TestApplyRefusesPeriodLock(test *testing.T) {
	test.Parallel()
	service := mustService(test, newStubStore())

	_, err := service.Apply(context.Background(), ledger.LockPeriod, ledger.ScopeAll, testClock, testClock.Add(time.Hour), "manual freeze", auditActor(test))
	require.ErrorIs(test, err, ErrPeriodLock)
}

func TestApplyValidatesWindowAndReason(test *testing.T) {
	test.Parallel()
	service := mustService(test, newStubStore())
	actor := auditActor(test)

	_, err := service.Apply(context.Background(), ledger.LockAudit, ledger.ScopeAll, testClock, testClock.Add(-time.Hour), "backwards", actor)
	require.ErrorIs(test, err, ErrBadWindow)

	_, err = service.Apply(context.Background(), ledger.LockAudit, ledger.ScopeAll, testClock, testClock.Add(time.Hour), "", actor)
	require.ErrorIs(test, err, ErrReasonRequired)

	_, err = service.Apply(context.Background(), ledger.LockType("FREEZE"), ledger.ScopeAll, testClock, testClock.Add(time.Hour), "reason", actor)
	require.ErrorIs(test, err, ledger.ErrInvalidLockType)
}

func TestReleaseLiftsLock(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustService(test, store)
	actor := auditActor(test)

	applied, err := service.Apply(context.Background(), ledger.LockAudit, ledger.ScopeAll, testClock, testClock.Add(48*time.Hour), "audit", actor)
	require.NoError(test, err)

	require.NoError(test, service.Release(context.Background(), applied.ID, "audit finished early", actor))

	released := store.locks[applied.ID]
	require.NotNil(test, released.ReleasedAt)
	require.False(test, released.Active(testClock.Add(time.Hour)))
}

func TestReleaseRequiresNotes(test *testing.T) {
	test.Parallel()
	service := mustService(test, newStubStore())

	err := service.Release(context.Background(), "any", "", auditActor(test))
	require.ErrorIs(test, err, ErrReasonRequired)
}

func TestReleaseRefusesPeriodLock(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	store.locks["lock-period"] = ledger.Lock{ID: "lock-period", Type: ledger.LockPeriod, Scope: ledger.ScopeAll}
	service := mustService(test, store)

	err := service.Release(context.Background(), "lock-period", "trying anyway", auditActor(test))
	require.ErrorIs(test, err, ErrPeriodLock)
}

func TestReleaseRejectsDoubleRelease(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustService(test, store)
	actor := auditActor(test)

	applied, err := service.Apply(context.Background(), ledger.LockAudit, ledger.ScopeAll, testClock, testClock.Add(time.Hour), "audit", actor)
	require.NoError(test, err)
	require.NoError(test, service.Release(context.Background(), applied.ID, "done", actor))

	err = service.Release(context.Background(), applied.ID, "done again", actor)
	require.ErrorIs(test, err, ErrAlreadyReleased)
}

func TestListActiveOnly(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustService(test, store)
	actor := auditActor(test)

	active, err := service.Apply(context.Background(), ledger.LockAudit, ledger.ScopeAll, testClock.Add(-time.Hour), testClock.Add(time.Hour), "current", actor)
	require.NoError(test, err)
	_, err = service.Apply(context.Background(), ledger.LockAudit, ledger.ScopeAll, testClock.Add(-48*time.Hour), testClock.Add(-24*time.Hour), "expired", actor)
	require.NoError(test, err)

	locks, err := service.List(context.Background(), true)
	require.NoError(test, err)
	require.Len(test, locks, 1)
	require.Equal(test, active.ID, locks[0].ID)

	all, err := service.List(context.Background(), false)
	require.NoError(test, err)
	require.Len(test, all, 2)
}
