package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/fx_trade_engine/internal/domain"
)

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
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			type TEXT NOT NULL,
			side TEXT NOT NULL,
			volume REAL NOT NULL,
			price REAL NOT NULL,
			stop_loss REAL NOT NULL DEFAULT 0,
			take_profit REAL NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			reason TEXT,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);`,
		`CREATE TABLE IF NOT EXISTS position_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			volume REAL NOT NULL,
			entry_price REAL NOT NULL,
			exit_price REAL NOT NULL,
			realized_pnl REAL NOT NULL,
			closed_at DATETIME NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	return nil
}

// TradeRepository Implementation

func (s *SQLiteStore) SaveOrder(ctx context.Context, order *domain.Order) error {
	query := `INSERT INTO orders (id, symbol, type, side, volume, price, stop_loss, take_profit, status, reason, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		order.ID, order.Symbol, order.Type, order.Side, order.Volume,
		order.Price, order.StopLoss, order.TakeProfit, order.Status, order.Reason, order.CreatedAt)
	return err
}

func (s *SQLiteStore) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus, reason string) error {
	query := `UPDATE orders SET status = ?, reason = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, status, reason, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("update order %s: %w", id, domain.ErrOrderNotFound)
	}
	return err
}

func (s *SQLiteStore) ListOrders(ctx context.Context, limit int) ([]*domain.Order, error) {
	query := `SELECT id, symbol, type, side, volume, price, stop_loss, take_profit, status, reason, created_at
			  FROM orders ORDER BY created_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		var o domain.Order
		var reason sql.NullString
		if err := rows.Scan(&o.ID, &o.Symbol, &o.Type, &o.Side, &o.Volume, &o.Price,
			&o.StopLoss, &o.TakeProfit, &o.Status, &reason, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.Reason = reason.String
		orders = append(orders, &o)
	}
	return orders, rows.Err()
}

func (s *SQLiteStore) SavePositionHistory(ctx context.Context, history *domain.PositionHistory) error {
	query := `INSERT INTO position_history (symbol, side, volume, entry_price, exit_price, realized_pnl, closed_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		history.Symbol, history.Side, history.Volume, history.EntryPrice,
		history.ExitPrice, history.RealizedPnL, history.ClosedAt)
	return err
}

func (s *SQLiteStore) ListPositionHistory(ctx context.Context, limit int) ([]*domain.PositionHistory, error) {
	query := `SELECT id, symbol, side, volume, entry_price, exit_price, realized_pnl, closed_at
			  FROM position_history ORDER BY closed_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.PositionHistory
	for rows.Next() {
		var h domain.PositionHistory
		if err := rows.Scan(&h.ID, &h.Symbol, &h.Side, &h.Volume, &h.EntryPrice,
			&h.ExitPrice, &h.RealizedPnL, &h.ClosedAt); err != nil {
			return nil, err
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
