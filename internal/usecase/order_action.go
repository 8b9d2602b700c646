package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vikdev/delta_trigger_bot/internal/domain"
	"go.uber.org/zap"
)

// OrderAction places a matched trigger order on the venue and records the
// outcome on the order itself. Placement is non-retryable: a failure is
// terminal for the order.
type OrderAction struct {
	gateway  domain.Gateway
	trades   domain.TradeRepository
	notifier domain.Notifier
	logger   *zap.Logger
}

func NewOrderAction(gateway domain.Gateway, trades domain.TradeRepository, notifier domain.Notifier, logger *zap.Logger) *OrderAction {
	return &OrderAction{
		gateway:  gateway,
		trades:   trades,
		notifier: notifier,
		logger:   logger,
	}
}

// Place executes the order and moves it to executed or failed. The caller
// persists the new status.
func (a *OrderAction) Place(ctx context.Context, order *domain.TriggerOrder, price float64) {
	venueOrderID, err := a.gateway.PlaceOrder(ctx, order.InstrumentID, order.Side, order.Size)
	if err != nil {
		mtxGatewayErrors.WithLabelValues("place_order").Inc()
		mtxTriggerOrders.WithLabelValues("failed").Inc()
		order.Status = domain.StatusFailed
		order.Error = err.Error()
		a.logger.Error("Trigger order placement failed",
			zap.String("id", order.ID), zap.String("symbol", order.Symbol), zap.Error(err))
		a.notifier.Send(orderFailedMessage(order))
		return
	}

	now := time.Now()
	order.Status = domain.StatusExecuted
	order.ExecutedAt = &now
	order.ResultOrderID = venueOrderID

	mtxTriggerOrders.WithLabelValues("executed").Inc()
	a.logger.Info("Trigger order executed",
		zap.String("id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.String("venue_order_id", venueOrderID),
		zap.Float64("price", price))

	record := &domain.TradeRecord{
		Symbol:       order.Symbol,
		InstrumentID: order.InstrumentID,
		Side:         string(order.Side),
		Size:         order.Size,
		Price:        price,
		OrderID:      venueOrderID,
		OrderType:    "trigger",
		CreatedAt:    now,
	}
	if err := a.trades.SaveTrade(ctx, record); err != nil {
		a.logger.Error("Failed to save trade record", zap.String("id", order.ID), zap.Error(err))
	}

	a.notifier.Send(orderExecutedMessage(order, price))
}

func upper(side domain.OrderSide) string {
	return strings.ToUpper(string(side))
}

func orderExecutedMessage(o *domain.TriggerOrder, price float64) string {
	return "✅ <b>Trigger Order Executed</b>\n" +
		fmt.Sprintf("Symbol: %s\n", o.Symbol) +
		fmt.Sprintf("Action: %s\n", upper(o.Side)) +
		fmt.Sprintf("Quantity: %d\n", o.Size) +
		fmt.Sprintf("Trigger: %s %.2f\n", o.Condition, o.TriggerPrice) +
		fmt.Sprintf("Executed At: %.2f", price)
}

func orderFailedMessage(o *domain.TriggerOrder) string {
	return "🚫 <b>Trigger Order Failed</b>\n" +
		fmt.Sprintf("Symbol: %s\n", o.Symbol) +
		fmt.Sprintf("Action: %s\n", upper(o.Side)) +
		fmt.Sprintf("Quantity: %d\n", o.Size) +
		fmt.Sprintf("Error: %s", o.Error)
}
