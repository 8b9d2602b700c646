package usecase

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/vikdev/delta_trigger_bot/internal/domain"
	"go.uber.org/zap"
)

// ExitDelay is the fixed cancellation window between an exit level condition
// becoming true and the exit action actually firing.
const ExitDelay = 7 * time.Second

// PendingExit is the single-slot countdown state. At most one instance is
// armed system-wide; while armed, no other level may arm a second one.
type PendingExit struct {
	Active       bool             `json:"active"`
	ArmedAt      time.Time        `json:"armed_at"`
	Deadline     time.Time        `json:"deadline"`
	Level        domain.LevelSide `json:"level"`
	Kind         domain.ExitKind  `json:"kind"`
	TriggerPrice float64          `json:"trigger_price"`
	Reason       string           `json:"reason"`
}

// CountdownStatus is the operator-facing view of the pending exit.
type CountdownStatus struct {
	Active           bool             `json:"active"`
	RemainingSeconds int              `json:"remaining_seconds"`
	Level            domain.LevelSide `json:"level,omitempty"`
	Kind             domain.ExitKind  `json:"kind,omitempty"`
	TriggerPrice     float64          `json:"trigger_price,omitempty"`
	Reason           string           `json:"reason,omitempty"`
}

// LevelUpdate carries a partial update of the exit level slots. A nil field
// leaves the slot untouched; an empty string clears it.
type LevelUpdate struct {
	Above     *string
	AboveKind *string
	Below     *string
	BelowKind *string
}

// ExitEngine owns the index exit level slots and the pending-exit countdown.
// Both live under one mutex: the evaluator loop and operator commands
// (set/clear levels, cancel countdown) serialize on it.
type ExitEngine struct {
	mu      sync.Mutex
	levels  domain.ExitLevels
	pending PendingExit

	feed   *PriceFeed
	repo   domain.ExitLevelRepository
	action *ExitAction
	clock  Clock
	logger *zap.Logger
}

func NewExitEngine(feed *PriceFeed, repo domain.ExitLevelRepository, action *ExitAction, clock Clock, logger *zap.Logger) *ExitEngine {
	if clock == nil {
		clock = SystemClock
	}
	return &ExitEngine{
		feed:   feed,
		repo:   repo,
		action: action,
		clock:  clock,
		logger: logger,
	}
}

// Restore loads the persisted level slots. Called once at startup.
func (e *ExitEngine) Restore(ctx context.Context) error {
	levels, ok, err := e.repo.LoadExitLevels(ctx)
	if err != nil {
		return fmt.Errorf("load exit levels: %w", err)
	}
	if !ok {
		return nil
	}
	e.mu.Lock()
	e.levels = levels
	e.mu.Unlock()
	e.logger.Info("Restored exit levels",
		zap.Bool("above", levels.Above.Active()),
		zap.Bool("below", levels.Below.Active()))
	return nil
}

// SetLevels applies a partial update. Parsing happens before any mutation, so
// a bad price leaves the prior state untouched.
func (e *ExitEngine) SetLevels(ctx context.Context, update LevelUpdate) (domain.ExitLevels, error) {
	abovePrice, aboveSet, err := parsePriceField(update.Above)
	if err != nil {
		return domain.ExitLevels{}, err
	}
	belowPrice, belowSet, err := parsePriceField(update.Below)
	if err != nil {
		return domain.ExitLevels{}, err
	}

	e.mu.Lock()
	if aboveSet {
		if abovePrice == nil {
			e.levels.Above = domain.ExitLevel{}
		} else {
			e.levels.Above.Price = abovePrice
		}
	}
	if update.AboveKind != nil && e.levels.Above.Active() {
		e.levels.Above.Kind = parseKind(*update.AboveKind)
	}
	if belowSet {
		if belowPrice == nil {
			e.levels.Below = domain.ExitLevel{}
		} else {
			e.levels.Below.Price = belowPrice
		}
	}
	if update.BelowKind != nil && e.levels.Below.Active() {
		e.levels.Below.Kind = parseKind(*update.BelowKind)
	}
	levels := e.levels
	e.mu.Unlock()

	e.persistLevels(ctx, levels)
	e.logger.Info("Exit levels updated",
		zap.Any("above", levels.Above), zap.Any("below", levels.Below))
	return levels, nil
}

// Levels returns a snapshot of both slots.
func (e *ExitEngine) Levels() domain.ExitLevels {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.levels
}

// ClearLevels sets both slots inactive. Idempotent.
func (e *ExitEngine) ClearLevels(ctx context.Context) {
	e.mu.Lock()
	e.levels = domain.ExitLevels{}
	e.mu.Unlock()
	e.persistLevels(ctx, domain.ExitLevels{})
	e.logger.Info("Exit levels cleared")
}

// CountdownStatus reports the pending exit for the operator surface.
func (e *ExitEngine) CountdownStatus() CountdownStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.pending.Active {
		return CountdownStatus{}
	}
	remaining := int(e.pending.Deadline.Sub(e.clock.Now()).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return CountdownStatus{
		Active:           true,
		RemainingSeconds: remaining,
		Level:            e.pending.Level,
		Kind:             e.pending.Kind,
		TriggerPrice:     e.pending.TriggerPrice,
		Reason:           e.pending.Reason,
	}
}

// CancelCountdown aborts an armed countdown before its deadline. Once the
// deadline has passed execution wins the race and the cancel is rejected
// with ErrRaceRejected.
func (e *ExitEngine) CancelCountdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.pending.Active {
		return domain.ErrRaceRejected
	}
	if !e.clock.Now().Before(e.pending.Deadline) {
		return domain.ErrRaceRejected
	}
	e.logger.Info("Exit countdown cancelled by operator",
		zap.String("level", string(e.pending.Level)),
		zap.Float64("trigger_price", e.pending.TriggerPrice))
	e.pending = PendingExit{}
	mtxCountdowns.WithLabelValues("cancelled").Inc()
	// Cancellation before firing is intentionally silent to the notifier.
	return nil
}

// Tick runs one evaluation pass. While a countdown is armed, levels are not
// re-checked; the armed countdown has exclusive claim until it resolves.
func (e *ExitEngine) Tick(ctx context.Context) {
	price, ok := e.feed.Price()
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	if e.pending.Active {
		if now.Before(e.pending.Deadline) {
			return
		}
		e.executeLocked(ctx, price)
		return
	}

	// Above has priority when both conditions hold in the same tick.
	if e.levels.Above.Active() && price >= *e.levels.Above.Price {
		e.armLocked(domain.SideAbove, e.levels.Above, price, now)
		return
	}
	if e.levels.Below.Active() && price <= *e.levels.Below.Price {
		e.armLocked(domain.SideBelow, e.levels.Below, price, now)
	}
}

func (e *ExitEngine) armLocked(side domain.LevelSide, level domain.ExitLevel, price float64, now time.Time) {
	reason := buildTriggerReason(side, level.Kind, *level.Price, price)
	e.pending = PendingExit{
		Active:       true,
		ArmedAt:      now,
		Deadline:     now.Add(ExitDelay),
		Level:        side,
		Kind:         level.Kind,
		TriggerPrice: *level.Price,
		Reason:       reason,
	}
	mtxCountdowns.WithLabelValues("armed").Inc()
	// Log only. The notification goes out when the exit actually executes.
	e.logger.Info("Exit countdown armed",
		zap.String("level", string(side)),
		zap.String("kind", string(level.Kind)),
		zap.Float64("trigger_price", *level.Price),
		zap.Float64("price", price),
		zap.String("reason", reason))
}

// executeLocked fires the exit action and resets the engine. The gateway
// calls are bounded by timeouts, so holding the lock keeps the cancel race
// trivial: any cancel arriving now is already too late.
func (e *ExitEngine) executeLocked(ctx context.Context, price float64) {
	p := e.pending
	e.pending = PendingExit{}
	// Clear both slots before calling out so the same still-true condition
	// cannot re-arm on the next tick.
	e.levels = domain.ExitLevels{}
	e.persistLevels(ctx, domain.ExitLevels{})

	mtxCountdowns.WithLabelValues("executed").Inc()
	e.logger.Info("Executing exit after countdown",
		zap.String("level", string(p.Level)),
		zap.String("kind", string(p.Kind)),
		zap.Float64("price", price),
		zap.String("reason", p.Reason))

	if err := e.action.Execute(ctx, p.Reason, p.Kind, p.Level, price); err != nil {
		e.logger.Error("Exit action failed", zap.Error(err))
	}
}

func (e *ExitEngine) persistLevels(ctx context.Context, levels domain.ExitLevels) {
	if err := e.repo.SaveExitLevels(ctx, levels); err != nil {
		// Degraded but not fatal: in-memory state stays authoritative for
		// this process lifetime.
		e.logger.Error("Failed to persist exit levels", zap.Error(err))
	}
}

func parsePriceField(raw *string) (price *float64, set bool, err error) {
	if raw == nil {
		return nil, false, nil
	}
	if *raw == "" {
		return nil, true, nil
	}
	v, perr := strconv.ParseFloat(*raw, 64)
	if perr != nil || v <= 0 {
		return nil, false, fmt.Errorf("%w: price %q", domain.ErrInvalidParameter, *raw)
	}
	return &v, true, nil
}

func parseKind(raw string) domain.ExitKind {
	switch domain.ExitKind(raw) {
	case domain.ExitKindStopLoss, domain.ExitKindTarget:
		return domain.ExitKind(raw)
	default:
		return domain.ExitKindNone
	}
}

func buildTriggerReason(side domain.LevelSide, kind domain.ExitKind, triggerPrice, price float64) string {
	cmp := ">="
	suffix := "(Above)"
	if side == domain.SideBelow {
		cmp = "<="
		suffix = "(Below)"
	}
	switch kind {
	case domain.ExitKindStopLoss:
		return fmt.Sprintf("Stop Loss Hit! BTC price $%.2f %s $%.2f %s", price, cmp, triggerPrice, suffix)
	case domain.ExitKindTarget:
		return fmt.Sprintf("Target Hit! BTC price $%.2f %s $%.2f %s", price, cmp, triggerPrice, suffix)
	default:
		if side == domain.SideAbove {
			return fmt.Sprintf("Exit Above triggered! BTC price $%.2f >= $%.2f", price, triggerPrice)
		}
		return fmt.Sprintf("Exit Below triggered! BTC price $%.2f <= $%.2f", price, triggerPrice)
	}
}
