package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/vikdev/delta_trigger_bot/internal/domain"
	"go.uber.org/zap"
)

// ExitAction flattens the account: cancel every open order, close all
// positions, record the event, and notify the operator. Shared by the
// evaluator loop; safe for concurrent use with the order monitor because it
// only talks to the gateway and repositories.
type ExitAction struct {
	gateway  domain.Gateway
	trades   domain.TradeRepository
	notifier domain.Notifier
	logger   *zap.Logger
}

func NewExitAction(gateway domain.Gateway, trades domain.TradeRepository, notifier domain.Notifier, logger *zap.Logger) *ExitAction {
	return &ExitAction{
		gateway:  gateway,
		trades:   trades,
		notifier: notifier,
		logger:   logger,
	}
}

// Execute performs the full exit sequence. A failed order cancel never stops
// the position close; the notification only goes out when the close itself
// reported success.
func (a *ExitAction) Execute(ctx context.Context, reason string, kind domain.ExitKind, level domain.LevelSide, price float64) error {
	orders, err := a.gateway.ListOpenOrders(ctx)
	if err != nil {
		mtxGatewayErrors.WithLabelValues("list_open_orders").Inc()
		a.logger.Error("Failed to list open orders before exit", zap.Error(err))
	}
	for _, o := range orders {
		if err := a.gateway.CancelOrder(ctx, o.OrderID); err != nil {
			mtxGatewayErrors.WithLabelValues("cancel_order").Inc()
			a.logger.Error("Failed to cancel order", zap.String("order_id", o.OrderID), zap.Error(err))
			continue
		}
		a.logger.Info("Cancelled order", zap.String("order_id", o.OrderID))
	}

	closeErr := a.gateway.CloseAllPositions(ctx)
	if closeErr != nil {
		mtxGatewayErrors.WithLabelValues("close_all_positions").Inc()
		a.logger.Error("Close positions failed", zap.Error(closeErr))
	} else {
		a.logger.Info("All positions closed", zap.String("reason", reason))
	}

	mtxExits.WithLabelValues(exitKindLabel(kind)).Inc()

	record := &domain.TradeRecord{
		Symbol:    "BTCUSD",
		Side:      "exit",
		Price:     price,
		OrderType: "index_exit",
		ExitKind:  kind,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	if err := a.trades.SaveTrade(ctx, record); err != nil {
		a.logger.Error("Failed to save exit trade record", zap.Error(err))
	}

	if closeErr == nil {
		a.notifier.Send(exitMessage(kind, reason, price))
	}
	return closeErr
}

func exitKindLabel(kind domain.ExitKind) string {
	switch kind {
	case domain.ExitKindStopLoss:
		return "sl"
	case domain.ExitKindTarget:
		return "target"
	default:
		return "general"
	}
}

func exitMessage(kind domain.ExitKind, reason string, price float64) string {
	var head string
	switch kind {
	case domain.ExitKindStopLoss:
		head = "🔴 <b>STOP LOSS HIT!</b>\n"
	case domain.ExitKindTarget:
		head = "🟢 <b>TARGET HIT!</b>\n"
	default:
		head = "⚠️ <b>EXIT EXECUTED!</b>\n"
	}
	return head +
		fmt.Sprintf("<b>Reason:</b> %s\n", reason) +
		fmt.Sprintf("<b>BTC Price:</b> $%.2f\n", price) +
		fmt.Sprintf("<b>Time:</b> %s\n", time.Now().Format("15:04:05")) +
		"All positions closed and orders cancelled."
}
