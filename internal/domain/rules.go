package domain

import "time"

// ExitKind classifies an index exit level.
type ExitKind string

const (
	ExitKindNone     ExitKind = ""
	ExitKindStopLoss ExitKind = "sl"
	ExitKindTarget   ExitKind = "target"
)

// LevelSide identifies which of the two exit slots triggered.
type LevelSide string

const (
	SideAbove LevelSide = "above"
	SideBelow LevelSide = "below"
)

// ExitLevel is one slot of the index exit configuration.
// A nil Price means the slot is inactive; Kind is meaningless then.
type ExitLevel struct {
	Price *float64 `json:"price"`
	Kind  ExitKind `json:"kind"`
}

// Active reports whether the slot holds a live threshold.
func (l ExitLevel) Active() bool {
	return l.Price != nil
}

// ExitLevels holds both slots. The slots are independent and may both be
// active at the same time.
type ExitLevels struct {
	Above ExitLevel `json:"above"`
	Below ExitLevel `json:"below"`
}

// OrderSide is the direction of a venue order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// TriggerCondition tells when a threshold counts as crossed.
type TriggerCondition string

const (
	ConditionAbove TriggerCondition = "above" // price >= threshold
	ConditionBelow TriggerCondition = "below" // price <= threshold
)

// OrderStatus is the lifecycle state of a trigger order. Everything except
// StatusPending is terminal.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusExecuted  OrderStatus = "executed"
	StatusFailed    OrderStatus = "failed"
	StatusExpired   OrderStatus = "expired"
	StatusCancelled OrderStatus = "cancelled"
)

// TriggerOrder is a one-shot conditional order placement.
type TriggerOrder struct {
	ID            string           `json:"id"`
	Symbol        string           `json:"symbol"`
	InstrumentID  int64            `json:"instrument_id"`
	Side          OrderSide        `json:"side"`
	Size          int              `json:"size"`
	TriggerPrice  float64          `json:"trigger_price"`
	Condition     TriggerCondition `json:"condition"`
	TimeLimit     time.Duration    `json:"time_limit"` // zero means no expiry
	ExpiresAt     *time.Time       `json:"expires_at"`
	Status        OrderStatus      `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	ExecutedAt    *time.Time       `json:"executed_at"`
	ResultOrderID string           `json:"result_order_id,omitempty"`
	Error         string           `json:"error,omitempty"`
}

// PriceAlert is an informational price threshold. It fires a notification
// once and is then removed; no trading action is attached.
type PriceAlert struct {
	ID        string           `json:"id"`
	Price     float64          `json:"price"`
	Condition TriggerCondition `json:"condition"`
	CreatedAt time.Time        `json:"created_at"`
}

// TradeRecord is one row of the trade history: an executed trigger order or
// an index exit event.
type TradeRecord struct {
	ID           int64     `json:"id"`
	Symbol       string    `json:"symbol"`
	InstrumentID int64     `json:"instrument_id"`
	Side         string    `json:"side"` // buy, sell or exit
	Size         int       `json:"size"`
	Price        float64   `json:"price"`
	OrderID      string    `json:"order_id"`
	OrderType    string    `json:"order_type"` // "trigger" or "index_exit"
	ExitKind     ExitKind  `json:"exit_kind,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
