// Package engine implements buy/sell order processing with average-cost
// accounting. It is the only place position arithmetic happens; the storage
// backends persist whatever it computes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/portfolio-service/internal/models"
	"github.com/trogers1052/portfolio-service/internal/storage"
)

var (
	// ErrInvalidAction is returned when the action is neither buy nor sell.
	ErrInvalidAction = errors.New("invalid action")
	// ErrInvalidQuantity is returned when the order quantity is not positive.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrInsufficientHoldings is returned when a sell exceeds the held quantity.
	// It is a business-rule rejection, not a system fault.
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	// ErrPriceUnavailable wraps a price-oracle failure for the ordered ticker.
	ErrPriceUnavailable = errors.New("price unavailable")
)

// PriceSource resolves the current market price for a ticker.
type PriceSource interface {
	GlobalQuote(ctx context.Context, ticker string) (decimal.Decimal, error)
}

// Engine applies orders against a portfolio store. Calls for the same
// (user, ticker) pair are serialized by a per-key lock so concurrent
// read-modify-write cycles cannot lose updates; calls for different keys run in
// parallel.
type Engine struct {
	store  storage.PortfolioStore
	prices PriceSource
	locks  keyedMutex
}

// New creates an Engine bound to a store and a price source.
func New(store storage.PortfolioStore, prices PriceSource) *Engine {
	return &Engine{store: store, prices: prices}
}

// ApplyOrder executes a buy or sell: it fetches the current price, recomputes
// the position under the per-key lock and persists position and order record
// atomically. It returns the updated position (zero quantity when the holding
// closed) and the appended order.
func (e *Engine) ApplyOrder(ctx context.Context, userID, ticker, action string, quantity decimal.Decimal) (models.Position, models.Order, error) {
	if action != models.ActionBuy && action != models.ActionSell {
		return models.Position{}, models.Order{}, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if !quantity.IsPositive() {
		return models.Position{}, models.Order{}, fmt.Errorf("%w: %s", ErrInvalidQuantity, quantity)
	}

	// The oracle call is blocking network I/O; resolve it before taking the
	// per-key lock so the lock is never held across the request.
	price, err := e.prices.GlobalQuote(ctx, ticker)
	if err != nil {
		return models.Position{}, models.Order{}, fmt.Errorf("%w for %s: %w", ErrPriceUnavailable, ticker, err)
	}

	unlock := e.locks.lock(userID + ":" + ticker)
	defer unlock()

	pos, err := e.store.GetPosition(ctx, userID, ticker)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return models.Position{}, models.Order{}, fmt.Errorf("failed to read position: %w", err)
		}
		// Absent position means nothing held yet.
		pos = &models.Position{UserID: userID, Ticker: ticker, Quantity: decimal.Zero, CostPrice: decimal.Zero}
	}

	updated, err := apply(*pos, action, quantity, price)
	if err != nil {
		return models.Position{}, models.Order{}, err
	}

	order := models.Order{
		UserID:   userID,
		Ticker:   ticker,
		Action:   action,
		Quantity: quantity,
		Price:    price,
	}

	if _, err := e.store.ExecuteOrder(ctx, &updated, &order); err != nil {
		return models.Position{}, models.Order{}, fmt.Errorf("failed to persist order: %w", err)
	}

	slog.Info("order executed",
		slog.String("user_id", userID),
		slog.String("ticker", ticker),
		slog.String("action", action),
		slog.String("quantity", quantity.String()),
		slog.String("price", price.String()),
		slog.String("order_id", order.ID))

	return updated, order, nil
}

// apply recomputes a position for one executed order.
//
// Buy adds quantity*price to the cost basis. Sell shrinks the cost basis
// proportionally, cost' = cost * (held-q)/held, which keeps the average cost
// per remaining share unchanged; the sale price never feeds back into the
// basis (average-cost accounting, no realized P&L).
func apply(pos models.Position, action string, quantity, price decimal.Decimal) (models.Position, error) {
	switch action {
	case models.ActionBuy:
		pos.Quantity = pos.Quantity.Add(quantity)
		pos.CostPrice = pos.CostPrice.Add(quantity.Mul(price))
	case models.ActionSell:
		if quantity.GreaterThan(pos.Quantity) {
			return models.Position{}, fmt.Errorf("%w: %s held in %s, tried to sell %s",
				ErrInsufficientHoldings, pos.Quantity, pos.Ticker, quantity)
		}
		remaining := pos.Quantity.Sub(quantity)
		if remaining.IsZero() {
			// Fully closed; the proportional formula would yield zero anyway,
			// set it explicitly so no residual rounding survives.
			pos.CostPrice = decimal.Zero
		} else {
			pos.CostPrice = pos.CostPrice.Mul(remaining).Div(pos.Quantity)
		}
		pos.Quantity = remaining
	}
	return pos, nil
}
