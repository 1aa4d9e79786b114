package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/allshop-fulfillment/internal/core/domain"
)

var operator = domain.Actor{ID: "u-1", Email: "ops@allshop.test"}

func TestFulfillmentService_ScanAndCommit(t *testing.T) {
	store := newTestStore(t)
	events := &recordingPublisher{}
	svc := newTestService(t, store, events)
	ctx := context.Background()

	seed(t, store,
		[]domain.Order{newOrder("o1", item("phone", "black", 2), legacy("Gift wrap"), item("case", "", 1))},
		[]domain.Lot{
			newLot("lot-1", "phone", "BLACK", "80", "SN-1", "SN-2"),
			newLot("lot-2", "case", "", "5", "C-1", "C-2"),
		},
	)

	view, err := svc.OpenSession(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.False(t, view.Complete)

	for _, code := range []string{"sn-1", "C-1", "SN-2"} {
		view, err = svc.Scan(view.ID, code)
		require.NoError(t, err, code)
	}
	assert.True(t, view.Complete)
	assert.Equal(t, []string{"SN-1", "SN-2"}, view.Items[0].Serials)

	result, err := svc.Commit(ctx, view.ID, operator, "TRK-9")
	require.NoError(t, err)
	assert.Equal(t, "o1", result.OrderID)
	assert.Equal(t, []string{"SN-1", "C-1", "SN-2"}, result.Serials)
	assert.Equal(t, []string{"lot-1", "lot-2"}, result.LotsUpdated)

	order := loadOrder(t, store, "o1")
	assert.Equal(t, domain.OrderStatusShipped, order.Status)
	assert.True(t, order.IsFulfilled())
	assert.Equal(t, "TRK-9", order.TrackingNumber)
	assert.Equal(t, []string{"SN-1", "C-1", "SN-2"}, order.SerialNumbers)
	require.Len(t, order.StatusHistory, 2)
	assert.Equal(t, domain.OrderStatusPaid, order.StatusHistory[0].Status)
	assert.Equal(t, domain.OrderStatusShipped, order.StatusHistory[1].Status)
	assert.Equal(t, "Jane Doe", order.CustomerName)
	require.Len(t, order.Items, 3)
	assert.True(t, order.Items[1].IsLegacy())

	phones := loadLot(t, store, "lot-1")
	assert.Equal(t, 2, phones.QuantitySold)
	assert.Equal(t, domain.LotStatusSold, phones.Status)

	cases := loadLot(t, store, "lot-2")
	assert.Equal(t, 1, cases.QuantitySold)
	assert.Equal(t, domain.LotStatusPartial, cases.Status)
	assert.Equal(t, domain.UnitSold, unitStatus(cases, "C-1"))
	assert.Equal(t, domain.UnitAvailable, unitStatus(cases, "C-2"))

	var movement domain.StockMovement
	require.NoError(t, store.Get(ctx, CollectionMovements, result.MovementID, &movement))
	assert.Equal(t, domain.MovementSale, movement.Type)
	assert.Equal(t, "o1", movement.OrderID)

	published := events.published()
	require.Len(t, published, 1)
	assert.Equal(t, "o1", published[0].OrderID)
	assert.Equal(t, "TRK-9", published[0].TrackingNumber)

	_, err = svc.Session(view.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestFulfillmentService_OpenSessionRejects(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store, nil)
	ctx := context.Background()

	done := newOrder("done", item("phone", "", 1))
	done.FulfillmentStatus = domain.FulfillmentCompleted
	seed(t, store, []domain.Order{done, newOrder("old", legacy("Phone"), legacy("Case"))}, nil)

	_, err := svc.OpenSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = svc.OpenSession(ctx, "done")
	assert.ErrorIs(t, err, ErrAlreadyFulfilled)

	_, err = svc.OpenSession(ctx, "old")
	assert.ErrorIs(t, err, ErrNothingToFulfill)
}

func TestFulfillmentService_ScanErrorKeepsSession(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store, nil)
	ctx := context.Background()
	seed(t, store,
		[]domain.Order{newOrder("o1", item("phone", "", 1))},
		[]domain.Lot{newLot("lot-1", "phone", "", "80", "SN-1"), newLot("lot-2", "case", "", "5", "C-1")},
	)

	view, err := svc.OpenSession(ctx, "o1")
	require.NoError(t, err)

	view, err = svc.Scan(view.ID, "SN-1")
	require.NoError(t, err)

	view, err = svc.Scan(view.ID, "SN-1")
	assert.ErrorIs(t, err, ErrDuplicateScan)
	assert.Contains(t, view.LastError, "already scanned")
	assert.Equal(t, 1, view.Items[0].Scanned)

	view, err = svc.Scan(view.ID, "C-1")
	assert.ErrorIs(t, err, ErrNoMatchingLineItem)
	assert.Equal(t, 1, view.Items[0].Scanned)
	assert.True(t, view.Complete)
}

func TestFulfillmentService_CommitIncomplete(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store, nil)
	ctx := context.Background()
	seed(t, store,
		[]domain.Order{newOrder("o1", item("phone", "", 2))},
		[]domain.Lot{newLot("lot-1", "phone", "", "80", "SN-1", "SN-2")},
	)

	view, err := svc.OpenSession(ctx, "o1")
	require.NoError(t, err)
	_, err = svc.Scan(view.ID, "SN-1")
	require.NoError(t, err)

	_, err = svc.Commit(ctx, view.ID, operator, "")
	assert.ErrorIs(t, err, ErrIncompleteScan)

	order := loadOrder(t, store, "o1")
	assert.False(t, order.IsFulfilled())
	assert.Equal(t, 0, loadLot(t, store, "lot-1").QuantitySold)

	// session survives for further scanning
	view, err = svc.Scan(view.ID, "SN-2")
	require.NoError(t, err)
	assert.True(t, view.Complete)
}

func TestFulfillmentService_SelectUnitFromCandidates(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store, nil)
	ctx := context.Background()
	seed(t, store,
		[]domain.Order{newOrder("o1", item("phone", "black", 1))},
		[]domain.Lot{
			newLot("lot-1", "phone", "BLACK", "80", "SN-1"),
			newLot("lot-2", "phone", "WHITE", "80", "SN-W"),
		},
	)

	view, err := svc.OpenSession(ctx, "o1")
	require.NoError(t, err)

	candidates, err := svc.Candidates(view.ID, "phone::BLACK")
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	_, err = svc.SelectUnit(view.ID, "phone::BLACK", "SN-W")
	assert.ErrorIs(t, err, ErrNoMatchingLineItem)
	_, err = svc.SelectUnit(view.ID, "tablet", "SN-1")
	assert.ErrorIs(t, err, ErrUnknownLineItem)

	view, err = svc.SelectUnit(view.ID, "phone::BLACK", candidates[0].Serial)
	require.NoError(t, err)
	assert.True(t, view.Complete)

	candidates, err = svc.Candidates(view.ID, "phone::BLACK")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestFulfillmentService_StaleUnitAbortsEverything(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store, nil)
	ctx := context.Background()
	seed(t, store,
		[]domain.Order{
			newOrder("o1", item("phone", "", 1)),
			newOrder("o2", item("phone", "", 1), item("case", "", 1)),
		},
		[]domain.Lot{
			newLot("lot-1", "phone", "", "80", "SN-1", "SN-2"),
			newLot("lot-2", "case", "", "5", "C-1"),
		},
	)

	first, err := svc.OpenSession(ctx, "o1")
	require.NoError(t, err)
	second, err := svc.OpenSession(ctx, "o2")
	require.NoError(t, err)

	// both operators scan the same phone from their snapshots
	_, err = svc.Scan(first.ID, "SN-1")
	require.NoError(t, err)
	_, err = svc.Scan(second.ID, "SN-1")
	require.NoError(t, err)
	_, err = svc.Scan(second.ID, "C-1")
	require.NoError(t, err)

	_, err = svc.Commit(ctx, first.ID, operator, "")
	require.NoError(t, err)

	_, err = svc.Commit(ctx, second.ID, operator, "")
	assert.ErrorIs(t, err, ErrStaleUnit)

	// nothing of the second commit was written
	assert.False(t, loadOrder(t, store, "o2").IsFulfilled())
	cases := loadLot(t, store, "lot-2")
	assert.Equal(t, 0, cases.QuantitySold)
	assert.Equal(t, domain.UnitAvailable, unitStatus(cases, "C-1"))
	phones := loadLot(t, store, "lot-1")
	assert.Equal(t, 1, phones.QuantitySold)

	// stale scan was dropped, the other one kept
	view, err := svc.Session(second.ID)
	require.NoError(t, err)
	assert.False(t, view.Complete)
	assert.Empty(t, view.Items[0].Serials)
	assert.Equal(t, []string{"C-1"}, view.Items[1].Serials)
	assert.Contains(t, view.LastError, "claimed")

	_, err = svc.Scan(second.ID, "SN-1")
	assert.ErrorIs(t, err, ErrUnitUnavailable)

	_, err = svc.Scan(second.ID, "SN-2")
	require.NoError(t, err)
	_, err = svc.Commit(ctx, second.ID, operator, "")
	require.NoError(t, err)

	phones = loadLot(t, store, "lot-1")
	assert.Equal(t, 2, phones.QuantitySold)
	assert.Equal(t, domain.LotStatusSold, phones.Status)
}

func TestFulfillmentService_SecondCommitForSameOrder(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store, nil)
	ctx := context.Background()
	seed(t, store,
		[]domain.Order{newOrder("o1", item("phone", "", 1))},
		[]domain.Lot{newLot("lot-1", "phone", "", "80", "SN-1", "SN-2")},
	)

	a, err := svc.OpenSession(ctx, "o1")
	require.NoError(t, err)
	b, err := svc.OpenSession(ctx, "o1")
	require.NoError(t, err)
	_, err = svc.Scan(a.ID, "SN-1")
	require.NoError(t, err)
	_, err = svc.Scan(b.ID, "SN-2")
	require.NoError(t, err)

	_, err = svc.Commit(ctx, a.ID, operator, "")
	require.NoError(t, err)
	_, err = svc.Commit(ctx, b.ID, operator, "")
	assert.ErrorIs(t, err, ErrAlreadyFulfilled)

	lot := loadLot(t, store, "lot-1")
	assert.Equal(t, 1, lot.QuantitySold)
	assert.Equal(t, domain.UnitAvailable, unitStatus(lot, "SN-2"))

	_, err = svc.Session(b.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestFulfillmentService_ConcurrentCommitsOneWins(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store, nil)
	ctx := context.Background()

	const operators = 4
	serials := []string{"SN-1", "SN-2", "SN-3", "SN-4"}
	seed(t, store,
		[]domain.Order{newOrder("o1", item("phone", "", 1))},
		[]domain.Lot{newLot("lot-1", "phone", "", "80", serials...)},
	)

	sessions := make([]string, operators)
	for i := range sessions {
		view, err := svc.OpenSession(ctx, "o1")
		require.NoError(t, err)
		_, err = svc.Scan(view.ID, serials[i])
		require.NoError(t, err)
		sessions[i] = view.ID
	}

	errs := make([]error, operators)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, id := range sessions {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Commit(ctx, id, operator, "")
		}(i, id)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyFulfilled)
	}
	assert.Equal(t, 1, wins)

	lot := loadLot(t, store, "lot-1")
	assert.Equal(t, 1, lot.QuantitySold)
	sold := 0
	for _, u := range lot.Units {
		if u.Status == domain.UnitSold {
			sold++
		}
	}
	assert.Equal(t, 1, sold)
	assert.Len(t, loadOrder(t, store, "o1").StatusHistory, 2)
}

func TestFulfillmentService_PublishFailureDoesNotFailCommit(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store, &recordingPublisher{err: errBrokerDown})
	ctx := context.Background()
	seed(t, store,
		[]domain.Order{newOrder("o1", item("phone", "", 1))},
		[]domain.Lot{newLot("lot-1", "phone", "", "80", "SN-1")},
	)

	view, err := svc.OpenSession(ctx, "o1")
	require.NoError(t, err)
	_, err = svc.Scan(view.ID, "SN-1")
	require.NoError(t, err)

	_, err = svc.Commit(ctx, view.ID, operator, "")
	require.NoError(t, err)
	assert.True(t, loadOrder(t, store, "o1").IsFulfilled())
}

func TestFulfillmentService_Cancel(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store, nil)
	ctx := context.Background()
	seed(t, store,
		[]domain.Order{newOrder("o1", item("phone", "", 1))},
		[]domain.Lot{newLot("lot-1", "phone", "", "80", "SN-1")},
	)

	view, err := svc.OpenSession(ctx, "o1")
	require.NoError(t, err)
	_, err = svc.Scan(view.ID, "SN-1")
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(view.ID))
	assert.ErrorIs(t, svc.Cancel(view.ID), ErrSessionNotFound)

	_, err = svc.Scan(view.ID, "SN-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, domain.UnitAvailable, unitStatus(loadLot(t, store, "lot-1"), "SN-1"))
}

func TestFulfillmentService_ExpireSessions(t *testing.T) {
	store := newTestStore(t)
	now := testNow
	svc := NewFulfillmentService(store, nil, zap.NewNop(), WithClock(func() time.Time { return now }))
	ctx := context.Background()
	seed(t, store,
		[]domain.Order{newOrder("o1", item("phone", "", 1)), newOrder("o2", item("phone", "", 1))},
		[]domain.Lot{newLot("lot-1", "phone", "", "80", "SN-1", "SN-2")},
	)

	idle, err := svc.OpenSession(ctx, "o1")
	require.NoError(t, err)

	now = testNow.Add(20 * time.Minute)
	active, err := svc.OpenSession(ctx, "o2")
	require.NoError(t, err)

	assert.Equal(t, 1, svc.ExpireSessions(testNow.Add(10*time.Minute)))

	_, err = svc.Session(idle.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Session(active.ID)
	assert.NoError(t, err)
}

func TestFulfillmentService_SoldUnitRejectedThenAvailableCommits(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store, nil)
	ctx := context.Background()

	lot := newLot("lot-1", "P", "", "10", "U1", "U2")
	lot.Units[1].Status = domain.UnitSold
	seed(t, store, []domain.Order{newOrder("o1", item("P", "", 1))}, []domain.Lot{lot})

	view, err := svc.OpenSession(ctx, "o1")
	require.NoError(t, err)

	_, err = svc.Scan(view.ID, "U2")
	assert.ErrorIs(t, err, ErrUnitUnavailable)
	assert.Contains(t, err.Error(), "SOLD")

	view, err = svc.Scan(view.ID, "U1")
	require.NoError(t, err)
	assert.Empty(t, view.LastError)

	_, err = svc.Commit(ctx, view.ID, operator, "")
	require.NoError(t, err)

	got := loadLot(t, store, "lot-1")
	assert.Equal(t, 1, got.QuantitySold)
	assert.Equal(t, domain.LotStatusPartial, got.Status)
	assert.Equal(t, "o1", got.Units[0].OrderID)
	assert.Equal(t, domain.FulfillmentCompleted, loadOrder(t, store, "o1").FulfillmentStatus)
}

func TestFulfillmentService_WrongVariantNeverMatches(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store, nil)
	ctx := context.Background()
	seed(t, store,
		[]domain.Order{newOrder("o1", item("P", "Black", 2))},
		[]domain.Lot{newLot("lot-w", "P", "White", "10", "W1", "W2")},
	)

	view, err := svc.OpenSession(ctx, "o1")
	require.NoError(t, err)

	for _, code := range []string{"W1", "W2"} {
		view, err = svc.Scan(view.ID, code)
		assert.ErrorIs(t, err, ErrNoMatchingLineItem)
	}
	assert.Equal(t, 0, view.Items[0].Scanned)
}
