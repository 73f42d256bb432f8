package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents a user's current holding in one ticker. CostPrice is the
// aggregate amount paid for the shares still held, so CostPrice/Quantity is the
// average cost per share. One position exists per (user, ticker) pair.
type Position struct {
	UserID    string          `json:"user_id,omitempty"`
	Ticker    string          `json:"ticker"`
	Quantity  decimal.Decimal `json:"quantity"`
	CostPrice decimal.Decimal `json:"cost_price"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
}

// AverageCost returns the average cost per held share, or zero for an empty position.
func (p *Position) AverageCost() decimal.Decimal {
	if p.Quantity.IsZero() {
		return decimal.Zero
	}
	return p.CostPrice.Div(p.Quantity)
}
