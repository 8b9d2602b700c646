package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// EvaluatorWorker drives the exit engine on a fixed tick. Ticks are strictly
// sequential within the loop; a slow gateway call delays the next tick but
// never overlaps it.
type EvaluatorWorker struct {
	engine   *ExitEngine
	interval time.Duration
	logger   *zap.Logger
}

func NewEvaluatorWorker(engine *ExitEngine, interval time.Duration, logger *zap.Logger) *EvaluatorWorker {
	if interval <= 0 {
		interval = time.Second
	}
	return &EvaluatorWorker{engine: engine, interval: interval, logger: logger}
}

func (w *EvaluatorWorker) Start(ctx context.Context) {
	w.logger.Info("Starting alert evaluator", zap.Duration("interval", w.interval))
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				w.logger.Info("Alert evaluator stopped")
				return
			case <-ticker.C:
				w.engine.Tick(ctx)
			}
		}
	}()
}

// MonitorWorker drives the trigger order sweep and the informational alert
// sweep on a fixed tick, independently of the evaluator.
type MonitorWorker struct {
	orders   *TriggerOrderService
	alerts   *AlertBook
	feed     *PriceFeed
	interval time.Duration
	logger   *zap.Logger
}

func NewMonitorWorker(orders *TriggerOrderService, alerts *AlertBook, feed *PriceFeed, interval time.Duration, logger *zap.Logger) *MonitorWorker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &MonitorWorker{orders: orders, alerts: alerts, feed: feed, interval: interval, logger: logger}
}

func (w *MonitorWorker) Start(ctx context.Context) {
	w.logger.Info("Starting trigger order monitor", zap.Duration("interval", w.interval))
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				w.logger.Info("Trigger order monitor stopped")
				return
			case <-ticker.C:
				w.orders.Sweep(ctx)
				if price, ok := w.feed.Price(); ok {
					w.alerts.Sweep(price)
				}
			}
		}
	}()
}
