package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vikdev/delta_trigger_bot/internal/domain"
	"go.uber.org/zap"
)

type orderHarness struct {
	svc      *TriggerOrderService
	feed     *PriceFeed
	store    *memStore
	gateway  *fakeGateway
	notifier *fakeNotifier
	clock    *fakeClock
	ctx      context.Context
}

func newOrderHarness(t *testing.T) *orderHarness {
	t.Helper()
	feed := NewPriceFeed()
	store := newMemStore()
	gateway := newFakeGateway()
	notifier := &fakeNotifier{}
	clock := newFakeClock()
	action := NewOrderAction(gateway, store, notifier, zap.NewNop())
	svc := NewTriggerOrderService(store, store, action, feed, notifier, clock, zap.NewNop())
	return &orderHarness{
		svc:      svc,
		feed:     feed,
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		clock:    clock,
		ctx:      context.Background(),
	}
}

func validSpec() OrderSpec {
	return OrderSpec{
		Symbol:       "BTCUSD",
		InstrumentID: 27,
		Side:         domain.OrderSideBuy,
		Size:         2,
		TriggerPrice: 50000,
		Condition:    domain.ConditionAbove,
	}
}

func TestAdd_Validation(t *testing.T) {
	h := newOrderHarness(t)

	cases := []struct {
		name   string
		mutate func(*OrderSpec)
		want   error
	}{
		{"missing symbol", func(s *OrderSpec) { s.Symbol = "" }, domain.ErrMissingField},
		{"missing instrument", func(s *OrderSpec) { s.InstrumentID = 0 }, domain.ErrMissingField},
		{"missing side", func(s *OrderSpec) { s.Side = "" }, domain.ErrMissingField},
		{"bad side", func(s *OrderSpec) { s.Side = "hold" }, domain.ErrInvalidParameter},
		{"zero size", func(s *OrderSpec) { s.Size = 0 }, domain.ErrMissingField},
		{"zero trigger price", func(s *OrderSpec) { s.TriggerPrice = 0 }, domain.ErrMissingField},
		{"bad condition", func(s *OrderSpec) { s.Condition = "near" }, domain.ErrMissingField},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := validSpec()
			tc.mutate(&spec)
			_, err := h.svc.Add(h.ctx, spec)
			require.ErrorIs(t, err, tc.want)
		})
	}

	assert.Empty(t, h.svc.ListPending())
}

func TestAdd_SetsExpiryFromTimeLimit(t *testing.T) {
	h := newOrderHarness(t)

	spec := validSpec()
	spec.TimeLimit = 15 * time.Minute
	id, err := h.svc.Add(h.ctx, spec)
	require.NoError(t, err)

	pending := h.svc.ListPending()
	require.Len(t, pending, 1)
	require.NotNil(t, pending[0].ExpiresAt)
	assert.Equal(t, h.clock.Now().Add(15*time.Minute), *pending[0].ExpiresAt)
	assert.Equal(t, domain.StatusPending, pending[0].Status)
	require.NotNil(t, h.store.storedOrder(id))
}

func TestAdd_NoTimeLimitMeansNoExpiry(t *testing.T) {
	h := newOrderHarness(t)

	_, err := h.svc.Add(h.ctx, validSpec())
	require.NoError(t, err)

	pending := h.svc.ListPending()
	require.Len(t, pending, 1)
	assert.Nil(t, pending[0].ExpiresAt)
}

func TestSweep_ExecutesExactlyOnceOnCrossing(t *testing.T) {
	h := newOrderHarness(t)
	h.feed.Update(49000)

	id, err := h.svc.Add(h.ctx, validSpec())
	require.NoError(t, err)

	for _, price := range []float64{49500, 50000, 50100} {
		h.feed.Update(price)
		h.svc.Sweep(h.ctx)
	}

	assert.Equal(t, 1, h.gateway.placeCalls())
	assert.Empty(t, h.svc.ListPending())

	stored := h.store.storedOrder(id)
	require.NotNil(t, stored)
	assert.Equal(t, domain.StatusExecuted, stored.Status)
	assert.Equal(t, "venue-1", stored.ResultOrderID)

	// Further sweeps must never re-evaluate the executed order.
	h.feed.Update(60000)
	h.svc.Sweep(h.ctx)
	assert.Equal(t, 1, h.gateway.placeCalls())
}

func TestSweep_BelowCondition(t *testing.T) {
	h := newOrderHarness(t)
	h.feed.Update(50000)

	spec := validSpec()
	spec.Side = domain.OrderSideSell
	spec.TriggerPrice = 48000
	spec.Condition = domain.ConditionBelow
	_, err := h.svc.Add(h.ctx, spec)
	require.NoError(t, err)

	h.feed.Update(48500)
	h.svc.Sweep(h.ctx)
	assert.Equal(t, 0, h.gateway.placeCalls())

	h.feed.Update(48000)
	h.svc.Sweep(h.ctx)
	assert.Equal(t, 1, h.gateway.placeCalls())
}

func TestSweep_ExpiryBeatsConditionCheck(t *testing.T) {
	h := newOrderHarness(t)
	h.feed.Update(49000)

	spec := validSpec()
	spec.TimeLimit = time.Minute
	id, err := h.svc.Add(h.ctx, spec)
	require.NoError(t, err)

	h.clock.Advance(61 * time.Second)
	// Price crosses in the same sweep the order expires; expiry wins.
	h.feed.Update(50100)
	h.svc.Sweep(h.ctx)

	assert.Equal(t, 0, h.gateway.placeCalls())
	stored := h.store.storedOrder(id)
	require.NotNil(t, stored)
	assert.Equal(t, domain.StatusExpired, stored.Status)
	assert.Empty(t, h.svc.ListPending())

	// A later crossing has no effect on the expired order.
	h.feed.Update(51000)
	h.svc.Sweep(h.ctx)
	assert.Equal(t, 0, h.gateway.placeCalls())
}

func TestSweep_FailedPlacementIsTerminal(t *testing.T) {
	h := newOrderHarness(t)
	h.gateway.PlaceErr = &domain.GatewayError{Op: "place_order", Err: errors.New("insufficient margin")}
	h.feed.Update(49000)

	id, err := h.svc.Add(h.ctx, validSpec())
	require.NoError(t, err)

	h.feed.Update(50100)
	h.svc.Sweep(h.ctx)

	assert.Equal(t, 1, h.gateway.placeCalls())
	stored := h.store.storedOrder(id)
	require.NotNil(t, stored)
	assert.Equal(t, domain.StatusFailed, stored.Status)

	// Failure is terminal: no retry on the next sweep.
	h.svc.Sweep(h.ctx)
	assert.Equal(t, 1, h.gateway.placeCalls())
	assert.Empty(t, h.svc.ListPending())
}

func TestCancel_PendingOrder(t *testing.T) {
	h := newOrderHarness(t)

	id, err := h.svc.Add(h.ctx, validSpec())
	require.NoError(t, err)

	require.NoError(t, h.svc.Cancel(h.ctx, id))
	assert.Empty(t, h.svc.ListPending())
	assert.Nil(t, h.store.storedOrder(id))

	// Cancelled order never executes.
	h.feed.Update(60000)
	h.svc.Sweep(h.ctx)
	assert.Equal(t, 0, h.gateway.placeCalls())
}

func TestCancel_UnknownID(t *testing.T) {
	h := newOrderHarness(t)
	err := h.svc.Cancel(h.ctx, "no-such-order")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancel_AfterExecutionRejected(t *testing.T) {
	h := newOrderHarness(t)
	h.feed.Update(50100)

	id, err := h.svc.Add(h.ctx, validSpec())
	require.NoError(t, err)

	h.svc.Sweep(h.ctx)
	require.Equal(t, 1, h.gateway.placeCalls())

	err = h.svc.Cancel(h.ctx, id)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRestore_LoadsOnlyPendingOrders(t *testing.T) {
	h := newOrderHarness(t)

	pending := &domain.TriggerOrder{
		ID: "p1", Symbol: "BTCUSD", InstrumentID: 27, Side: domain.OrderSideBuy,
		Size: 1, TriggerPrice: 50000, Condition: domain.ConditionAbove,
		Status: domain.StatusPending, CreatedAt: h.clock.Now(),
	}
	done := &domain.TriggerOrder{
		ID: "d1", Symbol: "BTCUSD", InstrumentID: 27, Side: domain.OrderSideBuy,
		Size: 1, TriggerPrice: 40000, Condition: domain.ConditionBelow,
		Status: domain.StatusExecuted, CreatedAt: h.clock.Now(),
	}
	require.NoError(t, h.store.UpsertTriggerOrder(h.ctx, pending))
	require.NoError(t, h.store.UpsertTriggerOrder(h.ctx, done))

	require.NoError(t, h.svc.Restore(h.ctx))

	got := h.svc.ListPending()
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)
}

func TestConcurrentAddAndSweep_NeverLosesAnOrder(t *testing.T) {
	h := newOrderHarness(t)
	h.feed.Update(50100) // every added order's condition is already true

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			spec := validSpec()
			spec.Symbol = fmt.Sprintf("BTCUSD-%d", i)
			_, err := h.svc.Add(h.ctx, spec)
			assert.NoError(t, err)
		}(i)
		if i%10 == 0 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.svc.Sweep(h.ctx)
			}()
		}
	}
	wg.Wait()
	h.svc.Sweep(h.ctx)

	// Every order ends up executed exactly once, none lost, none doubled.
	assert.Equal(t, n, h.gateway.placeCalls())
	assert.Empty(t, h.svc.ListPending())
}
