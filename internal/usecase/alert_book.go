package usecase

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vikdev/delta_trigger_bot/internal/domain"
	"go.uber.org/zap"
)

// AlertBook holds informational price alerts. An alert fires a single
// notification when its condition first matches and is then removed; no
// trading action is attached.
type AlertBook struct {
	mu     sync.Mutex
	alerts []domain.PriceAlert

	notifier domain.Notifier
	logger   *zap.Logger
}

func NewAlertBook(notifier domain.Notifier, logger *zap.Logger) *AlertBook {
	return &AlertBook{
		notifier: notifier,
		logger:   logger,
	}
}

func (b *AlertBook) Add(price float64, condition domain.TriggerCondition) (string, error) {
	if price <= 0 {
		return "", fmt.Errorf("%w: price", domain.ErrInvalidParameter)
	}
	if condition != domain.ConditionAbove && condition != domain.ConditionBelow {
		return "", fmt.Errorf("%w: condition %q", domain.ErrInvalidParameter, condition)
	}

	alert := domain.PriceAlert{
		ID:        uuid.NewString(),
		Price:     price,
		Condition: condition,
		CreatedAt: time.Now(),
	}
	b.mu.Lock()
	b.alerts = append(b.alerts, alert)
	b.mu.Unlock()

	b.logger.Info("Price alert set",
		zap.String("id", alert.ID),
		zap.String("condition", string(condition)),
		zap.Float64("price", price))
	return alert.ID, nil
}

func (b *AlertBook) List() []domain.PriceAlert {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.PriceAlert, len(b.alerts))
	copy(out, b.alerts)
	return out
}

func (b *AlertBook) Delete(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, a := range b.alerts {
		if a.ID == id {
			b.alerts = append(b.alerts[:i], b.alerts[i+1:]...)
			b.logger.Info("Price alert deleted", zap.String("id", id))
			return nil
		}
	}
	return fmt.Errorf("%w: alert %s", domain.ErrNotFound, id)
}

// Sweep fires and removes every alert whose condition matches the price.
func (b *AlertBook) Sweep(price float64) {
	b.mu.Lock()
	var fired []domain.PriceAlert
	live := b.alerts[:0]
	for _, a := range b.alerts {
		if conditionMet(a.Condition, price, a.Price) {
			fired = append(fired, a)
		} else {
			live = append(live, a)
		}
	}
	b.alerts = live
	b.mu.Unlock()

	for _, a := range fired {
		b.logger.Info("Price alert fired",
			zap.String("id", a.ID),
			zap.Float64("alert_price", a.Price),
			zap.Float64("price", price))
		b.notifier.Send(fmt.Sprintf(
			"🔔 <b>BTC Price Alert</b>\nPrice $%.2f crossed %s $%.2f",
			price, a.Condition, a.Price))
	}
}
