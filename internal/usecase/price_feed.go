package usecase

import (
	"sync"
	"time"
)

// FeedSnapshot is a consistent read of the price feed.
type FeedSnapshot struct {
	Price          float64   `json:"price"`
	PrevPrice      float64   `json:"prev_price"`
	PrevDayClose   float64   `json:"prev_day_close"`
	ChangePct      float64   `json:"change_pct"`       // vs previous poll
	CloseChangePct float64   `json:"close_change_pct"` // vs previous day close
	UpdatedAt      time.Time `json:"updated_at"`
}

// PriceFeed holds the latest known market price and the previous-session
// reference close. Written by the feed updater, read by both engine loops.
type PriceFeed struct {
	mu           sync.RWMutex
	price        float64
	prevPrice    float64
	prevDayClose float64
	updatedAt    time.Time
}

func NewPriceFeed() *PriceFeed {
	return &PriceFeed{}
}

// Update records a new live price, shifting the previous one.
func (f *PriceFeed) Update(price float64) {
	if price <= 0 {
		return
	}
	f.mu.Lock()
	f.prevPrice = f.price
	f.price = price
	f.updatedAt = time.Now()
	f.mu.Unlock()

	mtxLivePrice.Set(price)
}

// Price returns the latest price. ok is false until the first update.
func (f *PriceFeed) Price() (price float64, ok bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.price, f.price > 0
}

// SetPrevDayClose stores the previous UTC day close used for the 24h change
// readout.
func (f *PriceFeed) SetPrevDayClose(close float64) {
	f.mu.Lock()
	f.prevDayClose = close
	f.mu.Unlock()
}

func (f *PriceFeed) PrevDayClose() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.prevDayClose
}

// Snapshot returns a consistent view for the operator surface.
func (f *PriceFeed) Snapshot() FeedSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()

	snap := FeedSnapshot{
		Price:        f.price,
		PrevPrice:    f.prevPrice,
		PrevDayClose: f.prevDayClose,
		UpdatedAt:    f.updatedAt,
	}
	if f.prevPrice > 0 {
		snap.ChangePct = (f.price - f.prevPrice) / f.prevPrice * 100
	}
	if f.prevDayClose > 0 {
		snap.CloseChangePct = (f.price - f.prevDayClose) / f.prevDayClose * 100
	}
	return snap
}
