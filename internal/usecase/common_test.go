package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vikdev/delta_trigger_bot/internal/domain"
)

// fakeClock drives countdown and expiry logic without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeGateway counts venue calls and can be told to fail placements or
// position closes.
type fakeGateway struct {
	mu sync.Mutex

	PlaceCalls    int
	CancelCalls   int
	CloseCalls    int
	PlacedOrderID string
	PlaceErr      error
	CloseErr      error
	OpenOrders    []domain.OpenOrder
	MarkPrice     float64
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{PlacedOrderID: "venue-1"}
}

func (g *fakeGateway) PlaceOrder(ctx context.Context, instrumentID int64, side domain.OrderSide, size int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.PlaceCalls++
	if g.PlaceErr != nil {
		return "", g.PlaceErr
	}
	return g.PlacedOrderID, nil
}

func (g *fakeGateway) CancelOrder(ctx context.Context, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CancelCalls++
	return nil
}

func (g *fakeGateway) ListOpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.OpenOrders, nil
}

func (g *fakeGateway) CloseAllPositions(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CloseCalls++
	return g.CloseErr
}

func (g *fakeGateway) GetPositions(ctx context.Context) ([]domain.Position, error) {
	return nil, nil
}

func (g *fakeGateway) GetWalletBalances(ctx context.Context) ([]domain.Balance, error) {
	return nil, nil
}

func (g *fakeGateway) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.MarkPrice == 0 {
		return 0, errors.New("no price")
	}
	return g.MarkPrice, nil
}

func (g *fakeGateway) GetDailyClose(ctx context.Context, symbol string, day time.Time) (float64, error) {
	return 0, errors.New("no candle")
}

func (g *fakeGateway) placeCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.PlaceCalls
}

func (g *fakeGateway) closeCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.CloseCalls
}

// fakeNotifier records every sent message.
type fakeNotifier struct {
	mu       sync.Mutex
	Messages []string
}

func (n *fakeNotifier) Send(text string) {
	n.mu.Lock()
	n.Messages = append(n.Messages, text)
	n.mu.Unlock()
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Messages)
}

// memStore is an in-memory stand-in for the SQLite store. It implements all
// three repository interfaces.
type memStore struct {
	mu     sync.Mutex
	levels *domain.ExitLevels
	orders map[string]*domain.TriggerOrder
	trades []*domain.TradeRecord
}

func newMemStore() *memStore {
	return &memStore{orders: make(map[string]*domain.TriggerOrder)}
}

func (m *memStore) SaveExitLevels(ctx context.Context, levels domain.ExitLevels) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels = &levels
	return nil
}

func (m *memStore) LoadExitLevels(ctx context.Context) (domain.ExitLevels, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.levels == nil {
		return domain.ExitLevels{}, false, nil
	}
	return *m.levels, true, nil
}

func (m *memStore) UpsertTriggerOrder(ctx context.Context, order *domain.TriggerOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *order
	m.orders[order.ID] = &copied
	return nil
}

func (m *memStore) DeleteTriggerOrder(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.orders, id)
	return nil
}

func (m *memStore) UpdateTriggerOrderStatus(ctx context.Context, id string, status domain.OrderStatus, resultOrderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[id]; ok {
		o.Status = status
		o.ResultOrderID = resultOrderID
	}
	return nil
}

func (m *memStore) ListPendingTriggerOrders(ctx context.Context) ([]*domain.TriggerOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.TriggerOrder
	for _, o := range m.orders {
		if o.Status == domain.StatusPending {
			copied := *o
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memStore) SaveTrade(ctx context.Context, trade *domain.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *trade
	m.trades = append(m.trades, &copied)
	return nil
}

func (m *memStore) ListTrades(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.TradeRecord
	for i := len(m.trades) - 1; i >= 0 && len(out) < limit; i-- {
		copied := *m.trades[i]
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memStore) storedOrder(id string) *domain.TriggerOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[id]; ok {
		copied := *o
		return &copied
	}
	return nil
}
