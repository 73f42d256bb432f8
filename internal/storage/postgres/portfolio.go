package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/trogers1052/portfolio-service/internal/models"
	"github.com/trogers1052/portfolio-service/internal/storage"
)

// GetPosition retrieves the position for (userID, ticker).
func (s *Store) GetPosition(ctx context.Context, userID, ticker string) (*models.Position, error) {
	uid, err := parseID(userID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT user_id, ticker, quantity, cost_price, updated_at
		FROM positions
		WHERE user_id = $1 AND ticker = $2
	`
	var p models.Position
	var dbUserID int64
	err = s.conn.QueryRowContext(ctx, query, uid, ticker).Scan(
		&dbUserID, &p.Ticker, &p.Quantity, &p.CostPrice, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	p.UserID = strconv.FormatInt(dbUserID, 10)
	return &p, nil
}

// GetPositions retrieves all positions held by a user, ordered by ticker.
func (s *Store) GetPositions(ctx context.Context, userID string) ([]models.Position, error) {
	uid, err := parseID(userID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ticker, quantity, cost_price, updated_at
		FROM positions
		WHERE user_id = $1
		ORDER BY ticker
	`
	rows, err := s.conn.QueryContext(ctx, query, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}
	defer rows.Close()

	positions := []models.Position{}
	for rows.Next() {
		var p models.Position
		if err := rows.Scan(&p.Ticker, &p.Quantity, &p.CostPrice, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}

	return positions, nil
}

// GetOrders retrieves all order records for a user in chronological order.
func (s *Store) GetOrders(ctx context.Context, userID string) ([]models.Order, error) {
	uid, err := parseID(userID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, ticker, action, quantity, price, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at, id
	`
	rows, err := s.conn.QueryContext(ctx, query, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to get orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var o models.Order
		var id, dbUserID int64
		if err := rows.Scan(&id, &dbUserID, &o.Ticker, &o.Action, &o.Quantity, &o.Price, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.ID = strconv.FormatInt(id, 10)
		o.UserID = strconv.FormatInt(dbUserID, 10)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}

	return orders, nil
}

// ExecuteOrder appends the order record and writes the recomputed position in a
// single transaction. A zero-quantity position is deleted instead of upserted, so
// closed holdings never linger as empty rows.
func (s *Store) ExecuteOrder(ctx context.Context, pos *models.Position, order *models.Order) (string, error) {
	uid, err := parseID(pos.UserID)
	if err != nil {
		return "", err
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	var orderID int64
	insertOrder := `
		INSERT INTO orders (user_id, ticker, action, quantity, price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, insertOrder,
		uid, order.Ticker, order.Action, order.Quantity, order.Price, now,
	).Scan(&orderID)
	if err != nil {
		return "", fmt.Errorf("failed to insert order: %w", err)
	}

	if pos.Quantity.IsZero() {
		deletePos := `DELETE FROM positions WHERE user_id = $1 AND ticker = $2`
		if _, err := tx.ExecContext(ctx, deletePos, uid, pos.Ticker); err != nil {
			return "", fmt.Errorf("failed to delete closed position: %w", err)
		}
	} else {
		upsertPos := `
			INSERT INTO positions (user_id, ticker, quantity, cost_price, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id, ticker)
			DO UPDATE SET
				quantity = EXCLUDED.quantity,
				cost_price = EXCLUDED.cost_price,
				updated_at = EXCLUDED.updated_at
		`
		if _, err := tx.ExecContext(ctx, upsertPos, uid, pos.Ticker, pos.Quantity, pos.CostPrice, now); err != nil {
			return "", fmt.Errorf("failed to upsert position: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	order.ID = strconv.FormatInt(orderID, 10)
	order.CreatedAt = now
	pos.UpdatedAt = now
	return order.ID, nil
}
