package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/vikdev/delta_trigger_bot/internal/domain"
	"go.uber.org/zap"
)

// StatusReporter sends a periodic market snapshot to the operator: live
// price, change versus previous close, and the pending work the engine is
// watching.
type StatusReporter struct {
	feed     *PriceFeed
	orders   *TriggerOrderService
	engine   *ExitEngine
	notifier domain.Notifier
	interval time.Duration
	logger   *zap.Logger
}

func NewStatusReporter(
	feed *PriceFeed,
	orders *TriggerOrderService,
	engine *ExitEngine,
	notifier domain.Notifier,
	interval time.Duration,
	logger *zap.Logger,
) *StatusReporter {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &StatusReporter{
		feed:     feed,
		orders:   orders,
		engine:   engine,
		notifier: notifier,
		interval: interval,
		logger:   logger,
	}
}

func (r *StatusReporter) Start(ctx context.Context) {
	r.logger.Info("Starting status reporter", zap.Duration("interval", r.interval))
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				r.logger.Info("Status reporter stopped")
				return
			case <-ticker.C:
				r.report()
			}
		}
	}()
}

func (r *StatusReporter) report() {
	snap := r.feed.Snapshot()
	if snap.Price == 0 {
		return
	}

	msg := "📊 <b>BTC Update</b>\n" +
		fmt.Sprintf("Price: $%.2f\n", snap.Price)
	if snap.PrevDayClose > 0 {
		msg += fmt.Sprintf("vs Prev Close: %+.2f%%\n", snap.CloseChangePct)
	}
	msg += fmt.Sprintf("Pending trigger orders: %d\n", len(r.orders.ListPending()))

	levels := r.engine.Levels()
	if levels.Above.Active() {
		msg += fmt.Sprintf("Exit Above: $%.2f (%s)\n", *levels.Above.Price, exitKindLabel(levels.Above.Kind))
	}
	if levels.Below.Active() {
		msg += fmt.Sprintf("Exit Below: $%.2f (%s)\n", *levels.Below.Price, exitKindLabel(levels.Below.Kind))
	}
	msg += fmt.Sprintf("Time: %s", time.Now().Format("15:04:05"))

	r.notifier.Send(msg)
}
