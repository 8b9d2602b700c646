package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vikdev/delta_trigger_bot/internal/domain"
	"go.uber.org/zap"
)

// OrderSpec is the operator input for a new trigger order.
type OrderSpec struct {
	Symbol       string
	InstrumentID int64
	Side         domain.OrderSide
	Size         int
	TriggerPrice float64
	Condition    domain.TriggerCondition
	TimeLimit    time.Duration // zero means no expiry
}

// TriggerOrderService owns the pending trigger order list and its sweep
// logic. One coarse mutex covers the list; Add and Cancel take it too, so a
// cancel can never interleave with the placement of the same order.
type TriggerOrderService struct {
	mu      sync.Mutex
	pending []*domain.TriggerOrder

	repo     domain.TriggerOrderRepository
	trades   domain.TradeRepository
	action   *OrderAction
	feed     *PriceFeed
	notifier domain.Notifier
	clock    Clock
	logger   *zap.Logger
}

func NewTriggerOrderService(
	repo domain.TriggerOrderRepository,
	trades domain.TradeRepository,
	action *OrderAction,
	feed *PriceFeed,
	notifier domain.Notifier,
	clock Clock,
	logger *zap.Logger,
) *TriggerOrderService {
	if clock == nil {
		clock = SystemClock
	}
	return &TriggerOrderService{
		repo:     repo,
		trades:   trades,
		action:   action,
		feed:     feed,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}
}

// Restore loads pending orders from the durable store. Called once at
// startup; terminal orders are never loaded back.
func (s *TriggerOrderService) Restore(ctx context.Context) error {
	orders, err := s.repo.ListPendingTriggerOrders(ctx)
	if err != nil {
		return fmt.Errorf("load pending trigger orders: %w", err)
	}
	s.mu.Lock()
	s.pending = orders
	s.mu.Unlock()
	s.logger.Info("Restored pending trigger orders", zap.Int("count", len(orders)))
	return nil
}

// Add validates the spec, assigns an id, computes the expiry, persists and
// registers the order for evaluation.
func (s *TriggerOrderService) Add(ctx context.Context, spec OrderSpec) (string, error) {
	if err := validateSpec(spec); err != nil {
		return "", err
	}

	now := s.clock.Now()
	order := &domain.TriggerOrder{
		ID:           uuid.NewString(),
		Symbol:       spec.Symbol,
		InstrumentID: spec.InstrumentID,
		Side:         spec.Side,
		Size:         spec.Size,
		TriggerPrice: spec.TriggerPrice,
		Condition:    spec.Condition,
		TimeLimit:    spec.TimeLimit,
		Status:       domain.StatusPending,
		CreatedAt:    now,
	}
	if spec.TimeLimit > 0 {
		expires := now.Add(spec.TimeLimit)
		order.ExpiresAt = &expires
	}

	if err := s.repo.UpsertTriggerOrder(ctx, order); err != nil {
		s.logger.Error("Failed to persist trigger order", zap.String("id", order.ID), zap.Error(err))
	}

	s.mu.Lock()
	s.pending = append(s.pending, order)
	s.mu.Unlock()

	mtxTriggerOrders.WithLabelValues("added").Inc()
	s.logger.Info("Trigger order added",
		zap.String("id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.String("condition", string(order.Condition)),
		zap.Float64("trigger_price", order.TriggerPrice))
	s.notifier.Send(orderAddedMessage(order))
	return order.ID, nil
}

// Cancel removes a pending order. Returns ErrNotFound when no pending order
// has that id: either it never existed or it already reached a terminal
// state.
func (s *TriggerOrderService) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	var cancelled *domain.TriggerOrder
	for i, o := range s.pending {
		if o.ID == id && o.Status == domain.StatusPending {
			o.Status = domain.StatusCancelled
			cancelled = o
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if cancelled == nil {
		return fmt.Errorf("%w: trigger order %s", domain.ErrNotFound, id)
	}

	if err := s.repo.DeleteTriggerOrder(ctx, id); err != nil {
		s.logger.Error("Failed to delete trigger order", zap.String("id", id), zap.Error(err))
	}
	mtxTriggerOrders.WithLabelValues("cancelled").Inc()
	s.logger.Info("Trigger order cancelled", zap.String("id", id))
	s.notifier.Send(orderCancelledMessage(cancelled))
	return nil
}

// ListPending returns a snapshot of the live evaluation set in insertion
// order.
func (s *TriggerOrderService) ListPending() []*domain.TriggerOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.TriggerOrder, len(s.pending))
	for i, o := range s.pending {
		copied := *o
		out[i] = &copied
	}
	return out
}

// Sweep runs one monitor pass: expiry first, then the trigger condition.
// Each order leaves pending at most once; a failed placement is terminal and
// never retried. Terminal orders are dropped from the in-memory set at the
// end of the pass.
func (s *TriggerOrderService) Sweep(ctx context.Context) {
	price, ok := s.feed.Price()
	if !ok {
		return
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, order := range s.pending {
		if order.Status != domain.StatusPending {
			continue
		}

		if order.ExpiresAt != nil && now.After(*order.ExpiresAt) {
			order.Status = domain.StatusExpired
			order.Error = "time limit expired"
			s.persistStatus(ctx, order)
			mtxTriggerOrders.WithLabelValues("expired").Inc()
			s.logger.Info("Trigger order expired",
				zap.String("id", order.ID), zap.String("symbol", order.Symbol))
			s.notifier.Send(orderExpiredMessage(order))
			continue
		}

		if !conditionMet(order.Condition, price, order.TriggerPrice) {
			continue
		}

		s.action.Place(ctx, order, price)
		s.persistStatus(ctx, order)
	}

	// Prune terminal orders; they remain queryable via the store only.
	live := s.pending[:0]
	for _, o := range s.pending {
		if o.Status == domain.StatusPending {
			live = append(live, o)
		}
	}
	s.pending = live
}

func (s *TriggerOrderService) persistStatus(ctx context.Context, order *domain.TriggerOrder) {
	if err := s.repo.UpdateTriggerOrderStatus(ctx, order.ID, order.Status, order.ResultOrderID); err != nil {
		s.logger.Error("Failed to persist trigger order status",
			zap.String("id", order.ID), zap.String("status", string(order.Status)), zap.Error(err))
	}
}

func conditionMet(cond domain.TriggerCondition, price, trigger float64) bool {
	if cond == domain.ConditionAbove {
		return price >= trigger
	}
	return price <= trigger
}

func validateSpec(spec OrderSpec) error {
	if spec.Symbol == "" {
		return fmt.Errorf("%w: symbol", domain.ErrMissingField)
	}
	if spec.InstrumentID == 0 {
		return fmt.Errorf("%w: instrument_id", domain.ErrMissingField)
	}
	if spec.Side == "" {
		return fmt.Errorf("%w: side", domain.ErrMissingField)
	}
	if spec.Side != domain.OrderSideBuy && spec.Side != domain.OrderSideSell {
		return fmt.Errorf("%w: side %q", domain.ErrInvalidParameter, spec.Side)
	}
	if spec.Size <= 0 {
		return fmt.Errorf("%w: size", domain.ErrMissingField)
	}
	if spec.TriggerPrice <= 0 {
		return fmt.Errorf("%w: trigger_price", domain.ErrMissingField)
	}
	if spec.Condition != domain.ConditionAbove && spec.Condition != domain.ConditionBelow {
		return fmt.Errorf("%w: condition", domain.ErrMissingField)
	}
	return nil
}

func orderAddedMessage(o *domain.TriggerOrder) string {
	msg := "⚠️ <b>New Trigger Order Added</b>\n\n" +
		fmt.Sprintf("<b>Symbol:</b> %s\n", o.Symbol) +
		fmt.Sprintf("<b>Action:</b> %s\n", upper(o.Side)) +
		fmt.Sprintf("<b>Quantity:</b> %d\n", o.Size) +
		fmt.Sprintf("<b>Trigger:</b> %s %.2f\n", o.Condition, o.TriggerPrice)
	if o.TimeLimit > 0 {
		msg += fmt.Sprintf("<b>Time Limit:</b> %d minutes\n", int(o.TimeLimit.Minutes()))
	}
	return msg + "<b>Status:</b> Pending"
}

func orderCancelledMessage(o *domain.TriggerOrder) string {
	return "❌ <b>Trigger Order Cancelled</b>\n\n" +
		fmt.Sprintf("<b>Symbol:</b> %s\n", o.Symbol) +
		fmt.Sprintf("<b>Action:</b> %s\n", upper(o.Side)) +
		fmt.Sprintf("<b>Quantity:</b> %d\n", o.Size) +
		fmt.Sprintf("<b>Trigger:</b> %s %.2f", o.Condition, o.TriggerPrice)
}

func orderExpiredMessage(o *domain.TriggerOrder) string {
	limit := "N/A"
	if o.TimeLimit > 0 {
		limit = fmt.Sprintf("%d minutes", int(o.TimeLimit.Minutes()))
	}
	return "⏰ <b>Trigger Order Expired</b>\n" +
		fmt.Sprintf("Symbol: %s\n", o.Symbol) +
		fmt.Sprintf("Action: %s\n", upper(o.Side)) +
		fmt.Sprintf("Quantity: %d\n", o.Size) +
		fmt.Sprintf("Trigger: %s %.2f\n", o.Condition, o.TriggerPrice) +
		fmt.Sprintf("Time Limit: %s\n", limit) +
		"Reason: Time limit exceeded"
}
