package domain

// Position is an open position on the venue.
type Position struct {
	InstrumentID  int64   `json:"instrument_id"`
	Symbol        string  `json:"symbol"`
	Size          float64 `json:"size"` // negative for shorts
	EntryPrice    float64 `json:"entry_price"`
	MarkPrice     float64 `json:"mark_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// OpenOrder is a resting order on the venue, as returned by the gateway.
type OpenOrder struct {
	OrderID      string  `json:"order_id"`
	InstrumentID int64   `json:"instrument_id"`
	Symbol       string  `json:"symbol"`
	Side         string  `json:"side"`
	Size         float64 `json:"size"`
	LimitPrice   float64 `json:"limit_price"`
}

// Balance is one wallet entry on the venue.
type Balance struct {
	Asset     string  `json:"asset"`
	Available float64 `json:"available"`
}
