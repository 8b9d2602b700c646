package domain

import (
	"context"
	"time"
)

// Gateway executes orders and position commands against the trading venue.
// All calls are synchronous with a bounded timeout. Implementations must be
// safe for concurrent use: both engine loops may call them at the same time.
type Gateway interface {
	// PlaceOrder submits a market order and returns the venue order id.
	PlaceOrder(ctx context.Context, instrumentID int64, side OrderSide, size int) (string, error)
	CancelOrder(ctx context.Context, orderID string) error
	ListOpenOrders(ctx context.Context) ([]OpenOrder, error)
	CloseAllPositions(ctx context.Context) error
	GetPositions(ctx context.Context) ([]Position, error)
	GetWalletBalances(ctx context.Context) ([]Balance, error)

	// GetMarkPrice returns the current mark price for a symbol.
	GetMarkPrice(ctx context.Context, symbol string) (float64, error)
	// GetDailyClose returns the close of the last full UTC day.
	GetDailyClose(ctx context.Context, symbol string, day time.Time) (float64, error)
}

// Notifier delivers human-readable messages to the operator. Fire and
// forget: failures are logged by the implementation, never propagated into
// engine decisions.
type Notifier interface {
	Send(text string)
}

// ExitLevelRepository persists the index exit level slots.
type ExitLevelRepository interface {
	SaveExitLevels(ctx context.Context, levels ExitLevels) error
	// LoadExitLevels returns the stored slots, or ok=false when none were
	// ever saved.
	LoadExitLevels(ctx context.Context) (levels ExitLevels, ok bool, err error)
}

// TriggerOrderRepository persists trigger orders. The engine reads pending
// orders once at startup and writes through on every committed mutation.
type TriggerOrderRepository interface {
	UpsertTriggerOrder(ctx context.Context, order *TriggerOrder) error
	DeleteTriggerOrder(ctx context.Context, id string) error
	UpdateTriggerOrderStatus(ctx context.Context, id string, status OrderStatus, resultOrderID string) error
	ListPendingTriggerOrders(ctx context.Context) ([]*TriggerOrder, error)
}

// TradeRepository persists the trade history.
type TradeRepository interface {
	SaveTrade(ctx context.Context, trade *TradeRecord) error
	ListTrades(ctx context.Context, limit int) ([]*TradeRecord, error)
}
