package recon

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/altipay/ledgercore/pkg/ledger"
	"github.com/stretchr/testify/require"
)

var testClock = time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testClock }

type stubStore struct {
	batches  map[string]Batch
	items    map[string]Item
	internal []Record
}

func newStubStore() *stubStore {
	return &stubStore{batches: make(map[string]Batch), items: make(map[string]Item)}
}

func (s *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	return fn(ctx, s)
}

func (s *stubStore) InsertBatch(ctx context.Context, batch Batch) error {
	s.batches[batch.ID] = batch
	return nil
}

func (s *stubStore) GetBatch(ctx context.Context, id string) (Batch, error) {
	batch, ok := s.batches[id]
	if !ok {
		return Batch{}, fmt.Errorf("%w: %s", ErrUnknownBatch, id)
	}
	return batch, nil
}

func (s *stubStore) ListBatches(ctx context.Context, limit int) ([]Batch, error) {
	batches := make([]Batch, 0, len(s.batches))
	for _, batch := range s.batches {
		batches = append(batches, batch)
	}
	return batches, nil
}

func (s *stubStore) CompleteBatch(ctx context.Context, id string, expected, actual, difference int64, completedAt time.Time) error {
	batch, ok := s.batches[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBatch, id)
	}
	if batch.Status != BatchInProgress {
		return fmt.Errorf("%w: %s", ErrBatchNotOpen, batch.Status)
	}
	batch.Status = BatchCompleted
	batch.ExpectedMinor = expected
	batch.ActualMinor = actual
	batch.DifferenceMinor = difference
	batch.CompletedAt = &completedAt
	s.batches[id] = batch
	return nil
}

func (s *stubStore) InsertItems(ctx context.Context, items []Item) error {
	for _, item := range items {
		s.items[item.ID] = item
	}
	return nil
}

func (s *stubStore) ListItems(ctx context.Context, batchID string) ([]Item, error) {
	items := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		if item.BatchID == batchID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (s *stubStore) UpdateItemResolution(ctx context.Context, itemID string, status ResolutionStatus, notes string, resolvedBy string, resolvedAt time.Time) error {
	item, ok := s.items[itemID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	item.ResolutionStatus = status
	item.ResolutionNotes = notes
	item.ResolvedBy = resolvedBy
	item.ResolvedAt = &resolvedAt
	s.items[itemID] = item
	return nil
}

func (s *stubStore) CountUnresolvedItems(ctx context.Context, batchID string) (int64, error) {
	var unresolved int64
	for _, item := range s.items {
		if item.BatchID == batchID && item.ResolutionStatus == ResolutionUnresolved {
			unresolved++
		}
	}
	return unresolved, nil
}

func (s *stubStore) InternalRecords(ctx context.Context, from, to time.Time, eventType string) ([]Record, error) {
	return append([]Record(nil), s.internal...), nil
}

func mustService(test *testing.T, store Store) *Service {
	test.Helper()
	service, err := NewService(store, fixedNow, nil)
	require.NoError(test, err)
	return service
}

func reconActor(test *testing.T) ledger.ActorID {
	test.Helper()
	actor, err := ledger.NewActorID("recon-bot")
	require.NoError(test, err)
	return actor
}

func mustBatch(test *testing.T, service *Service) Batch {
	test.Helper()
	batch, err := service.CreateBatch(context.Background(), "gateway", "razorpay", "period-1", reconActor(test))
	require.NoError(test, err)
	return batch
}

func TestCreateBatchOpensInProgress(test *testing.T) {
	test.Parallel()
	service := mustService(test, newStubStore())

	batch := mustBatch(test, service)
	require.Equal(test, BatchInProgress, batch.Status)
	require.Nil(test, batch.CompletedAt)
}

func TestCreateBatchRequiresAllFields(test *testing.T) {
	test.Parallel()
	service := mustService(test, newStubStore())

	_, err := service.CreateBatch(context.Background(), "gateway", "", "period-1", reconActor(test))
	require.ErrorIs(test, err, ledger.ErrValidation)
}

func TestMatchPersistsItemsAndAutoResolvesExact(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustService(test, store)
	batch := mustBatch(test, service)

	internal := []Record{
		{OrderRef: "order-1", AmountMinor: 50000},
		{OrderRef: "order-2", AmountMinor: 30000},
	}
	external := []Record{
		{OrderRef: "order-1", AmountMinor: 50000},
		{OrderRef: "order-2", AmountMinor: 29000},
	}
	items, err := service.Match(context.Background(), batch.ID, internal, external, reconActor(test))
	require.NoError(test, err)
	require.Len(test, items, 2)

	byRef := make(map[string]Item, len(items))
	for _, item := range items {
		byRef[item.OrderRef] = item
	}
	require.Equal(test, ResolutionResolved, byRef["order-1"].ResolutionStatus)
	require.Equal(test, ResolutionUnresolved, byRef["order-2"].ResolutionStatus)

	unresolved, err := store.CountUnresolvedItems(context.Background(), batch.ID)
	require.NoError(test, err)
	require.Equal(test, int64(1), unresolved)
}

func TestMatchRejectsCompletedBatch(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustService(test, store)
	batch := mustBatch(test, service)

	_, err := service.CompleteBatch(context.Background(), batch.ID, reconActor(test))
	require.NoError(test, err)

	_, err = service.Match(context.Background(), batch.ID, nil, nil, reconActor(test))
	require.ErrorIs(test, err, ErrBatchNotOpen)
}

func TestMatchStatementPullsBothSides(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	store.internal = []Record{{OrderRef: "order-1", AmountMinor: 50000}}
	service := mustService(test, store)
	batch := mustBatch(test, service)

	statement := "orderRef,amount\norder-1,500.00\n"
	items, err := service.MatchStatement(context.Background(), batch.ID, strings.NewReader(statement), testClock.AddDate(0, -1, 0), testClock, "payment_success", reconActor(test))
	require.NoError(test, err)
	require.Len(test, items, 1)
	require.Equal(test, StatusMatched, items[0].MatchStatus)
}

func TestMatchStatementRejectsBadCSV(test *testing.T) {
	test.Parallel()
	service := mustService(test, newStubStore())
	batch := mustBatch(test, service)

	_, err := service.MatchStatement(context.Background(), batch.ID, strings.NewReader("order-1,1.005\n"), testClock, testClock, "", reconActor(test))
	require.ErrorIs(test, err, ErrBadStatement)
}

func TestResolveItemRequiresNotes(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustService(test, store)
	batch := mustBatch(test, service)

	items, err := service.Match(context.Background(), batch.ID, []Record{{OrderRef: "order-1", AmountMinor: 100}}, nil, reconActor(test))
	require.NoError(test, err)
	require.Len(test, items, 1)

	err = service.ResolveItem(context.Background(), items[0].ID, ResolutionWrittenOff, "", reconActor(test))
	require.ErrorIs(test, err, ledger.ErrValidation)

	err = service.ResolveItem(context.Background(), items[0].ID, ResolutionStatus("fixed"), "notes", reconActor(test))
	require.ErrorIs(test, err, ErrInvalidResolution)

	err = service.ResolveItem(context.Background(), items[0].ID, ResolutionWrittenOff, "below write-off threshold", reconActor(test))
	require.NoError(test, err)
}

func TestCompleteBatchBlocksOnUnresolvedItems(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustService(test, store)
	batch := mustBatch(test, service)
	actor := reconActor(test)

	items, err := service.Match(context.Background(), batch.ID, []Record{{OrderRef: "order-1", AmountMinor: 100}}, nil, actor)
	require.NoError(test, err)

	_, err = service.CompleteBatch(context.Background(), batch.ID, actor)
	require.ErrorIs(test, err, ErrUnresolvedItems)

	require.NoError(test, service.ResolveItem(context.Background(), items[0].ID, ResolutionWrittenOff, "no external record after 90 days", actor))

	completed, err := service.CompleteBatch(context.Background(), batch.ID, actor)
	require.NoError(test, err)
	require.Equal(test, BatchCompleted, completed.Status)
	require.Equal(test, int64(100), completed.ExpectedMinor)
	require.Zero(test, completed.ActualMinor)
	require.Equal(test, int64(100), completed.DifferenceMinor)
	require.NotNil(test, completed.CompletedAt)

	_, err = service.CompleteBatch(context.Background(), batch.ID, actor)
	require.ErrorIs(test, err, ErrBatchNotOpen)
}
