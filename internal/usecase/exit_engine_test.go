package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vikdev/delta_trigger_bot/internal/domain"
	"go.uber.org/zap"
)

type engineHarness struct {
	engine   *ExitEngine
	feed     *PriceFeed
	store    *memStore
	gateway  *fakeGateway
	notifier *fakeNotifier
	clock    *fakeClock
	ctx      context.Context
}

func newEngineHarness(t *testing.T) *engineHarness {
	t.Helper()
	feed := NewPriceFeed()
	store := newMemStore()
	gateway := newFakeGateway()
	notifier := &fakeNotifier{}
	clock := newFakeClock()
	action := NewExitAction(gateway, store, notifier, zap.NewNop())
	engine := NewExitEngine(feed, store, action, clock, zap.NewNop())
	return &engineHarness{
		engine:   engine,
		feed:     feed,
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		clock:    clock,
		ctx:      context.Background(),
	}
}

func strptr(s string) *string { return &s }

func (h *engineHarness) setLevels(t *testing.T, above, below string) {
	t.Helper()
	update := LevelUpdate{}
	if above != "" {
		update.Above = strptr(above)
	}
	if below != "" {
		update.Below = strptr(below)
	}
	_, err := h.engine.SetLevels(h.ctx, update)
	require.NoError(t, err)
}

func TestSetLevels_PartialUpdate(t *testing.T) {
	h := newEngineHarness(t)

	_, err := h.engine.SetLevels(h.ctx, LevelUpdate{
		Above:     strptr("110000"),
		AboveKind: strptr("target"),
	})
	require.NoError(t, err)

	levels := h.engine.Levels()
	require.True(t, levels.Above.Active())
	assert.Equal(t, 110000.0, *levels.Above.Price)
	assert.Equal(t, domain.ExitKindTarget, levels.Above.Kind)
	assert.False(t, levels.Below.Active())

	// Updating below must not disturb above.
	_, err = h.engine.SetLevels(h.ctx, LevelUpdate{
		Below:     strptr("95000"),
		BelowKind: strptr("sl"),
	})
	require.NoError(t, err)

	levels = h.engine.Levels()
	require.True(t, levels.Above.Active())
	assert.Equal(t, 110000.0, *levels.Above.Price)
	require.True(t, levels.Below.Active())
	assert.Equal(t, 95000.0, *levels.Below.Price)
	assert.Equal(t, domain.ExitKindStopLoss, levels.Below.Kind)
}

func TestSetLevels_EmptyStringClearsSlot(t *testing.T) {
	h := newEngineHarness(t)
	h.setLevels(t, "110000", "95000")

	_, err := h.engine.SetLevels(h.ctx, LevelUpdate{Above: strptr("")})
	require.NoError(t, err)

	levels := h.engine.Levels()
	assert.False(t, levels.Above.Active())
	assert.True(t, levels.Below.Active())
}

func TestSetLevels_InvalidPriceLeavesStateUntouched(t *testing.T) {
	h := newEngineHarness(t)
	h.setLevels(t, "110000", "")

	_, err := h.engine.SetLevels(h.ctx, LevelUpdate{
		Above: strptr("not-a-number"),
		Below: strptr("95000"),
	})
	require.ErrorIs(t, err, domain.ErrInvalidParameter)

	levels := h.engine.Levels()
	require.True(t, levels.Above.Active())
	assert.Equal(t, 110000.0, *levels.Above.Price)
	assert.False(t, levels.Below.Active(), "below must not be applied when above fails to parse")

	_, err = h.engine.SetLevels(h.ctx, LevelUpdate{Above: strptr("-5")})
	require.ErrorIs(t, err, domain.ErrInvalidParameter)
	assert.Equal(t, 110000.0, *h.engine.Levels().Above.Price)
}

func TestClearLevels_Idempotent(t *testing.T) {
	h := newEngineHarness(t)
	h.setLevels(t, "110000", "95000")

	h.engine.ClearLevels(h.ctx)
	levels := h.engine.Levels()
	assert.False(t, levels.Above.Active())
	assert.False(t, levels.Below.Active())

	h.engine.ClearLevels(h.ctx)
	levels = h.engine.Levels()
	assert.False(t, levels.Above.Active())
	assert.False(t, levels.Below.Active())
}

func TestTick_AboveHasPriorityWhenBothTrue(t *testing.T) {
	h := newEngineHarness(t)
	// Inverted levels so a single price satisfies both conditions.
	h.setLevels(t, "100000", "120000")
	h.feed.Update(110000)

	h.engine.Tick(h.ctx)

	status := h.engine.CountdownStatus()
	require.True(t, status.Active)
	assert.Equal(t, domain.SideAbove, status.Level)
	assert.Equal(t, 100000.0, status.TriggerPrice)
}

func TestTick_NoPriceNoArm(t *testing.T) {
	h := newEngineHarness(t)
	h.setLevels(t, "100000", "")

	h.engine.Tick(h.ctx)

	assert.False(t, h.engine.CountdownStatus().Active)
}

func TestCountdown_FiresOnlyAfterDelay(t *testing.T) {
	h := newEngineHarness(t)
	h.setLevels(t, "100000", "")
	h.feed.Update(100500)

	h.engine.Tick(h.ctx)
	require.True(t, h.engine.CountdownStatus().Active)
	assert.Equal(t, 0, h.gateway.closeCalls())

	// One second short of the deadline: still armed, nothing fires.
	h.clock.Advance(ExitDelay - time.Second)
	h.engine.Tick(h.ctx)
	assert.True(t, h.engine.CountdownStatus().Active)
	assert.Equal(t, 0, h.gateway.closeCalls())

	h.clock.Advance(time.Second)
	h.engine.Tick(h.ctx)
	assert.Equal(t, 1, h.gateway.closeCalls())
	assert.False(t, h.engine.CountdownStatus().Active)
}

func TestCountdown_ExecutionClearsBothSlots(t *testing.T) {
	h := newEngineHarness(t)
	h.setLevels(t, "100000", "90000")
	h.feed.Update(100500)

	h.engine.Tick(h.ctx)
	h.clock.Advance(ExitDelay)
	h.engine.Tick(h.ctx)

	levels := h.engine.Levels()
	assert.False(t, levels.Above.Active())
	assert.False(t, levels.Below.Active())

	// The still-true condition must not re-arm on the next tick.
	h.engine.Tick(h.ctx)
	assert.False(t, h.engine.CountdownStatus().Active)
	assert.Equal(t, 1, h.gateway.closeCalls())
}

func TestCancelCountdown_BeforeDeadlinePreventsExecution(t *testing.T) {
	h := newEngineHarness(t)
	h.setLevels(t, "100000", "")
	h.feed.Update(100500)

	h.engine.Tick(h.ctx)
	require.True(t, h.engine.CountdownStatus().Active)

	h.clock.Advance(3 * time.Second)
	require.NoError(t, h.engine.CancelCountdown())

	assert.False(t, h.engine.CountdownStatus().Active)
	assert.Equal(t, 0, h.gateway.closeCalls())
	// Cancellation is silent to the notifier.
	assert.Equal(t, 0, h.notifier.count())
}

func TestCancelCountdown_AfterDeadlineRejectedAndExecutionWins(t *testing.T) {
	h := newEngineHarness(t)
	h.setLevels(t, "100000", "")
	h.feed.Update(100500)

	h.engine.Tick(h.ctx)
	h.clock.Advance(ExitDelay + time.Second)

	err := h.engine.CancelCountdown()
	require.ErrorIs(t, err, domain.ErrRaceRejected)

	h.engine.Tick(h.ctx)
	assert.Equal(t, 1, h.gateway.closeCalls())
}

func TestCancelCountdown_Inactive(t *testing.T) {
	h := newEngineHarness(t)
	err := h.engine.CancelCountdown()
	require.ErrorIs(t, err, domain.ErrRaceRejected)
}

func TestCountdown_NoRearmWhileArmed(t *testing.T) {
	h := newEngineHarness(t)
	h.setLevels(t, "100000", "120000")
	h.feed.Update(100500)

	h.engine.Tick(h.ctx)
	armed := h.engine.CountdownStatus()
	require.True(t, armed.Active)
	require.Equal(t, domain.SideAbove, armed.Level)

	// The below condition also holds now, but the armed countdown keeps
	// exclusive claim.
	h.feed.Update(110000)
	h.clock.Advance(time.Second)
	h.engine.Tick(h.ctx)

	status := h.engine.CountdownStatus()
	assert.Equal(t, domain.SideAbove, status.Level)
	assert.Equal(t, armed.TriggerPrice, status.TriggerPrice)
}

func TestCountdown_ExecutesAtCurrentPriceNotArmPrice(t *testing.T) {
	h := newEngineHarness(t)
	h.setLevels(t, "100000", "")
	h.feed.Update(100500)

	h.engine.Tick(h.ctx)
	h.feed.Update(101250)
	h.clock.Advance(ExitDelay)
	h.engine.Tick(h.ctx)

	trades, err := h.store.ListTrades(h.ctx, 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, 101250.0, trades[0].Price)
	assert.Equal(t, "index_exit", trades[0].OrderType)
}

func TestCountdown_StatusReportsRemainingSeconds(t *testing.T) {
	h := newEngineHarness(t)
	h.setLevels(t, "100000", "")
	h.feed.Update(100500)

	h.engine.Tick(h.ctx)
	status := h.engine.CountdownStatus()
	require.True(t, status.Active)
	assert.Equal(t, 7, status.RemainingSeconds)

	h.clock.Advance(4 * time.Second)
	assert.Equal(t, 3, h.engine.CountdownStatus().RemainingSeconds)
}

func TestExitExecution_NotifiesOnlyWhenCloseSucceeds(t *testing.T) {
	h := newEngineHarness(t)
	h.gateway.CloseErr = &domain.GatewayError{Op: "close_all_positions", Err: context.DeadlineExceeded}
	h.setLevels(t, "100000", "")
	h.feed.Update(100500)

	h.engine.Tick(h.ctx)
	h.clock.Advance(ExitDelay)
	h.engine.Tick(h.ctx)

	assert.Equal(t, 1, h.gateway.closeCalls())
	assert.Equal(t, 0, h.notifier.count())
	// Levels still cleared so the stale condition cannot re-trigger.
	assert.False(t, h.engine.Levels().Above.Active())
}

func TestRestore_LoadsPersistedLevels(t *testing.T) {
	h := newEngineHarness(t)
	price := 105000.0
	require.NoError(t, h.store.SaveExitLevels(h.ctx, domain.ExitLevels{
		Above: domain.ExitLevel{Price: &price, Kind: domain.ExitKindTarget},
	}))

	fresh := NewExitEngine(h.feed, h.store, NewExitAction(h.gateway, h.store, h.notifier, zap.NewNop()), h.clock, zap.NewNop())
	require.NoError(t, fresh.Restore(h.ctx))

	levels := fresh.Levels()
	require.True(t, levels.Above.Active())
	assert.Equal(t, 105000.0, *levels.Above.Price)
	assert.Equal(t, domain.ExitKindTarget, levels.Above.Kind)
}
