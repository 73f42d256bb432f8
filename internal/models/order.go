package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order actions.
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
)

// Order is an immutable record of one executed buy or sell. Price is the market
// price observed at execution time.
type Order struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id,omitempty"`
	Ticker    string          `json:"ticker"`
	Action    string          `json:"action"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}
