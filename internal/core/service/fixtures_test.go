package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/allshop-fulfillment/internal/adapter/storage"
	"github.com/rl1809/allshop-fulfillment/internal/core/domain"
	"github.com/rl1809/allshop-fulfillment/internal/port"
)

var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *storage.RedisAdapter {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return storage.NewRedisAdapter(client, 10)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.FulfillmentCompletedEvent
	err    error
}

func (p *recordingPublisher) PublishFulfillmentCompleted(_ context.Context, event domain.FulfillmentCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) published() []domain.FulfillmentCompletedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.FulfillmentCompletedEvent(nil), p.events...)
}

var errBrokerDown = errors.New("broker down")

type counterIDs struct {
	mu sync.Mutex
	n  int
}

func (c *counterIDs) next() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return fmt.Sprintf("id-%d", c.n)
}

func newTestService(t *testing.T, store port.DocumentStore, events port.EventPublisher) *FulfillmentService {
	t.Helper()
	ids := &counterIDs{}
	return NewFulfillmentService(store, events, zap.NewNop(),
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(ids.next),
	)
}

func item(productID, variant string, qty int) domain.LineItem {
	return domain.LineItem{Item: &domain.OrderItem{
		ProductID: productID,
		Name:      productID,
		Variant:   variant,
		Quantity:  qty,
		Price:     decimal.NewFromInt(100),
	}}
}

func legacy(name string) domain.LineItem {
	return domain.LineItem{Legacy: name}
}

func newOrder(id string, items ...domain.LineItem) domain.Order {
	return domain.Order{
		ID:                id,
		Items:             items,
		Total:             decimal.RequireFromString("249.90"),
		CustomerName:      "Jane Doe",
		Status:            domain.OrderStatusPaid,
		FulfillmentStatus: domain.FulfillmentPending,
		StatusHistory: []domain.StatusChange{
			{Status: domain.OrderStatusPaid, Note: "payment received", At: testNow.Add(-time.Hour)},
		},
		CreatedAt: testNow.Add(-2 * time.Hour),
		UpdatedAt: testNow.Add(-time.Hour),
	}
}

func newLot(id, productID, variant, price string, serials ...string) domain.Lot {
	lot := domain.Lot{
		ID:             id,
		ProductID:      productID,
		Variant:        variant,
		PurchasePrice:  decimal.RequireFromString(price),
		QuantityBought: len(serials),
		Status:         domain.LotStatusInStock,
		PurchasedAt:    testNow.Add(-24 * time.Hour),
		UpdatedAt:      testNow.Add(-24 * time.Hour),
	}
	for _, s := range serials {
		lot.Units = append(lot.Units, domain.Unit{Serial: s, Status: domain.UnitAvailable, CreatedAt: lot.PurchasedAt})
	}
	return lot
}

func seed(t *testing.T, store port.DocumentStore, orders []domain.Order, lots []domain.Lot) {
	t.Helper()
	ctx := context.Background()
	for _, o := range orders {
		require.NoError(t, store.Set(ctx, CollectionOrders, o.ID, o))
	}
	for _, l := range lots {
		require.NoError(t, store.Set(ctx, CollectionLots, l.ID, l))
	}
}

func loadOrder(t *testing.T, store port.DocumentStore, id string) domain.Order {
	t.Helper()
	var o domain.Order
	require.NoError(t, store.Get(context.Background(), CollectionOrders, id, &o))
	return o
}

func loadLot(t *testing.T, store port.DocumentStore, id string) domain.Lot {
	t.Helper()
	var l domain.Lot
	require.NoError(t, store.Get(context.Background(), CollectionLots, id, &l))
	return l
}

func unitStatus(lot domain.Lot, serial string) domain.UnitStatus {
	if idx := lot.UnitIndex(serial); idx >= 0 {
		return lot.Units[idx].Status
	}
	return ""
}
