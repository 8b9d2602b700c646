package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vikdev/delta_trigger_bot/internal/domain"
)

// SQLiteStore implements the exit level, trigger order and trade
// repositories on a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS exit_levels (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			above_price REAL,
			above_kind TEXT NOT NULL DEFAULT '',
			below_price REAL,
			below_kind TEXT NOT NULL DEFAULT '',
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS trigger_orders (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			instrument_id INTEGER NOT NULL,
			side TEXT NOT NULL,
			size INTEGER NOT NULL,
			trigger_price REAL NOT NULL,
			condition TEXT NOT NULL,
			time_limit_ms INTEGER NOT NULL DEFAULT 0,
			expires_at DATETIME,
			status TEXT NOT NULL,
			result_order_id TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			executed_at DATETIME
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trigger_orders_status ON trigger_orders(status);`,
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			instrument_id INTEGER NOT NULL DEFAULT 0,
			side TEXT NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			price REAL NOT NULL,
			order_id TEXT NOT NULL DEFAULT '',
			order_type TEXT NOT NULL,
			exit_kind TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ExitLevelRepository implementation

func (s *SQLiteStore) SaveExitLevels(ctx context.Context, levels domain.ExitLevels) error {
	query := `INSERT INTO exit_levels (id, above_price, above_kind, below_price, below_kind, updated_at)
			  VALUES (1, ?, ?, ?, ?, ?)
			  ON CONFLICT(id) DO UPDATE SET
			  above_price=excluded.above_price,
			  above_kind=excluded.above_kind,
			  below_price=excluded.below_price,
			  below_kind=excluded.below_kind,
			  updated_at=excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query,
		levels.Above.Price, string(levels.Above.Kind),
		levels.Below.Price, string(levels.Below.Kind),
		time.Now().UTC())
	return err
}

func (s *SQLiteStore) LoadExitLevels(ctx context.Context) (domain.ExitLevels, bool, error) {
	query := `SELECT above_price, above_kind, below_price, below_kind FROM exit_levels WHERE id = 1`
	row := s.db.QueryRowContext(ctx, query)

	var abovePrice, belowPrice sql.NullFloat64
	var aboveKind, belowKind string
	err := row.Scan(&abovePrice, &aboveKind, &belowPrice, &belowKind)
	if err == sql.ErrNoRows {
		return domain.ExitLevels{}, false, nil
	}
	if err != nil {
		return domain.ExitLevels{}, false, err
	}

	var levels domain.ExitLevels
	if abovePrice.Valid {
		p := abovePrice.Float64
		levels.Above = domain.ExitLevel{Price: &p, Kind: domain.ExitKind(aboveKind)}
	}
	if belowPrice.Valid {
		p := belowPrice.Float64
		levels.Below = domain.ExitLevel{Price: &p, Kind: domain.ExitKind(belowKind)}
	}
	return levels, true, nil
}

// TriggerOrderRepository implementation

func (s *SQLiteStore) UpsertTriggerOrder(ctx context.Context, order *domain.TriggerOrder) error {
	query := `INSERT INTO trigger_orders (id, symbol, instrument_id, side, size, trigger_price, condition, time_limit_ms, expires_at, status, result_order_id, error, created_at, executed_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(id) DO UPDATE SET
			  status=excluded.status,
			  result_order_id=excluded.result_order_id,
			  error=excluded.error,
			  executed_at=excluded.executed_at`
	_, err := s.db.ExecContext(ctx, query,
		order.ID, order.Symbol, order.InstrumentID, string(order.Side), order.Size,
		order.TriggerPrice, string(order.Condition), order.TimeLimit.Milliseconds(),
		order.ExpiresAt, string(order.Status), order.ResultOrderID, order.Error,
		order.CreatedAt, order.ExecutedAt)
	return err
}

func (s *SQLiteStore) DeleteTriggerOrder(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM trigger_orders WHERE id = ?", id)
	return err
}

func (s *SQLiteStore) UpdateTriggerOrderStatus(ctx context.Context, id string, status domain.OrderStatus, resultOrderID string) error {
	query := `UPDATE trigger_orders SET status = ?, result_order_id = ?, executed_at = ? WHERE id = ?`
	var executedAt *time.Time
	if status == domain.StatusExecuted {
		now := time.Now().UTC()
		executedAt = &now
	}
	_, err := s.db.ExecContext(ctx, query, string(status), resultOrderID, executedAt, id)
	return err
}

func (s *SQLiteStore) ListPendingTriggerOrders(ctx context.Context) ([]*domain.TriggerOrder, error) {
	query := `SELECT id, symbol, instrument_id, side, size, trigger_price, condition, time_limit_ms, expires_at, status, result_order_id, error, created_at, executed_at
			  FROM trigger_orders WHERE status = ? ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, string(domain.StatusPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.TriggerOrder
	for rows.Next() {
		var o domain.TriggerOrder
		var side, condition, status string
		var timeLimitMs int64
		var expiresAt, executedAt sql.NullTime
		if err := rows.Scan(&o.ID, &o.Symbol, &o.InstrumentID, &side, &o.Size,
			&o.TriggerPrice, &condition, &timeLimitMs, &expiresAt, &status,
			&o.ResultOrderID, &o.Error, &o.CreatedAt, &executedAt); err != nil {
			return nil, err
		}
		o.Side = domain.OrderSide(side)
		o.Condition = domain.TriggerCondition(condition)
		o.Status = domain.OrderStatus(status)
		o.TimeLimit = time.Duration(timeLimitMs) * time.Millisecond
		if expiresAt.Valid {
			t := expiresAt.Time
			o.ExpiresAt = &t
		}
		if executedAt.Valid {
			t := executedAt.Time
			o.ExecutedAt = &t
		}
		orders = append(orders, &o)
	}
	return orders, rows.Err()
}

// TradeRepository implementation

func (s *SQLiteStore) SaveTrade(ctx context.Context, trade *domain.TradeRecord) error {
	query := `INSERT INTO trades (symbol, instrument_id, side, size, price, order_id, order_type, exit_kind, reason, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		trade.Symbol, trade.InstrumentID, trade.Side, trade.Size, trade.Price,
		trade.OrderID, trade.OrderType, string(trade.ExitKind), trade.Reason, trade.CreatedAt)
	return err
}

func (s *SQLiteStore) ListTrades(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	query := `SELECT id, symbol, instrument_id, side, size, price, order_id, order_type, exit_kind, reason, created_at
			  FROM trades ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*domain.TradeRecord
	for rows.Next() {
		var t domain.TradeRecord
		var exitKind string
		if err := rows.Scan(&t.ID, &t.Symbol, &t.InstrumentID, &t.Side, &t.Size,
			&t.Price, &t.OrderID, &t.OrderType, &exitKind, &t.Reason, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.ExitKind = domain.ExitKind(exitKind)
		trades = append(trades, &t)
	}
	return trades, rows.Err()
}
