package usecase

import (
	"context"
	"time"

	"github.com/vikdev/delta_trigger_bot/internal/domain"
	"go.uber.org/zap"
)

// istOffset is UTC+5:30; the previous-day close refreshes at 05:30 IST,
// matching the venue's daily session boundary.
var istOffset = 5*time.Hour + 30*time.Minute

// FeedUpdater keeps the PriceFeed current. The primary source is the
// websocket stream registered by the caller; this loop polls REST as a
// fallback so a stalled stream degrades to a slower feed instead of a frozen
// one, and refreshes the previous-day close once per day.
type FeedUpdater struct {
	feed     *PriceFeed
	gateway  domain.Gateway
	symbol   string
	interval time.Duration
	logger   *zap.Logger

	lastCloseRefresh time.Time
}

func NewFeedUpdater(feed *PriceFeed, gateway domain.Gateway, symbol string, interval time.Duration, logger *zap.Logger) *FeedUpdater {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &FeedUpdater{
		feed:     feed,
		gateway:  gateway,
		symbol:   symbol,
		interval: interval,
		logger:   logger,
	}
}

func (u *FeedUpdater) Start(ctx context.Context) {
	u.logger.Info("Starting price feed updater",
		zap.String("symbol", u.symbol), zap.Duration("interval", u.interval))

	u.refreshDailyClose(ctx)

	go func() {
		ticker := time.NewTicker(u.interval)
		defer ticker.Stop()
		closeTicker := time.NewTicker(time.Minute)
		defer closeTicker.Stop()

		for {
			select {
			case <-ctx.Done():
				u.logger.Info("Price feed updater stopped")
				return
			case <-ticker.C:
				u.poll(ctx)
			case <-closeTicker.C:
				u.maybeRefreshDailyClose(ctx)
			}
		}
	}()
}

func (u *FeedUpdater) poll(ctx context.Context) {
	price, err := u.gateway.GetMarkPrice(ctx, u.symbol)
	if err != nil {
		mtxGatewayErrors.WithLabelValues("get_mark_price").Inc()
		u.logger.Warn("Price poll failed", zap.Error(err))
		return
	}
	u.feed.Update(price)
}

// maybeRefreshDailyClose refreshes once per IST day at 05:30.
func (u *FeedUpdater) maybeRefreshDailyClose(ctx context.Context) {
	ist := time.Now().UTC().Add(istOffset)
	if ist.Hour() != 5 || ist.Minute() != 30 {
		return
	}
	if !u.lastCloseRefresh.IsZero() && time.Since(u.lastCloseRefresh) < time.Hour {
		return
	}
	u.refreshDailyClose(ctx)
	if close := u.feed.PrevDayClose(); close > 0 {
		u.logger.Info("Daily close auto-refreshed", zap.Float64("close", close))
	}
}

func (u *FeedUpdater) refreshDailyClose(ctx context.Context) {
	close, err := u.gateway.GetDailyClose(ctx, u.symbol, time.Now().UTC().AddDate(0, 0, -1))
	if err != nil {
		mtxGatewayErrors.WithLabelValues("get_daily_close").Inc()
		u.logger.Warn("Failed to fetch previous day close", zap.Error(err))
		return
	}
	u.feed.SetPrevDayClose(close)
	u.lastCloseRefresh = time.Now()
}
