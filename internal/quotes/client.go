// Package quotes is the Alpha Vantage client. The engine only uses GlobalQuote;
// the remaining lookups are raw passthroughs for the market-data endpoints.
package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/trogers1052/portfolio-service/internal/config"
)

var (
	// ErrSymbolNotFound is returned when the provider has no quote for the ticker.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrInvalidFrequency is returned for a time-series frequency outside
	// INTRADAY and DAILY.
	ErrInvalidFrequency = errors.New("invalid frequency")
)

// Time-series frequencies accepted by TimeSeries.
const (
	FrequencyIntraday = "INTRADAY"
	FrequencyDaily    = "DAILY"
)

// Client calls the Alpha Vantage HTTP API.
type Client struct {
	client *resty.Client
	apiKey string
}

// New builds a Client from the quote API configuration.
func New(cfg config.QuoteAPIConfig) *Client {
	client := resty.New().
		SetDebug(cfg.Debug).
		SetTimeout(cfg.Timeout).
		SetBaseURL(cfg.URL)
	return &Client{client: client, apiKey: cfg.Key}
}

// globalQuoteResponse mirrors the provider's GLOBAL_QUOTE shape; field names are
// the provider's numbered keys.
type globalQuoteResponse struct {
	GlobalQuote struct {
		Price string `json:"05. price"`
	} `json:"Global Quote"`
}

// GlobalQuote returns the current market price for a ticker.
func (c *Client) GlobalQuote(ctx context.Context, ticker string) (decimal.Decimal, error) {
	body, err := c.get(ctx, map[string]string{
		"function": "GLOBAL_QUOTE",
		"symbol":   ticker,
	})
	if err != nil {
		return decimal.Decimal{}, err
	}

	var parsed globalQuoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to parse quote response: %w", err)
	}

	// The provider answers an empty quote object for unknown symbols.
	if parsed.GlobalQuote.Price == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, ticker)
	}

	price, err := decimal.NewFromString(parsed.GlobalQuote.Price)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to parse price %q: %w", parsed.GlobalQuote.Price, err)
	}
	return price, nil
}

// Search proxies a SYMBOL_SEARCH lookup and returns the provider payload as-is.
func (c *Client) Search(ctx context.Context, query string) (json.RawMessage, error) {
	return c.get(ctx, map[string]string{
		"function": "SYMBOL_SEARCH",
		"keywords": query,
	})
}

// TimeSeries proxies an intraday or daily price series for a ticker.
func (c *Client) TimeSeries(ctx context.Context, ticker, frequency string) (json.RawMessage, error) {
	if frequency != FrequencyIntraday && frequency != FrequencyDaily {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFrequency, frequency)
	}
	params := map[string]string{
		"function": "TIME_SERIES_" + frequency,
		"symbol":   ticker,
	}
	// Only the intraday series takes an interval.
	if frequency == FrequencyIntraday {
		params["interval"] = "5min"
	}
	return c.get(ctx, params)
}

// HistoricalOptions proxies the expired options contracts lookup for a ticker.
func (c *Client) HistoricalOptions(ctx context.Context, ticker, date string) (json.RawMessage, error) {
	params := map[string]string{
		"function": "HISTORICAL_OPTIONS",
		"symbol":   ticker,
	}
	if date != "" {
		params["date"] = date
	}
	return c.get(ctx, params)
}

func (c *Client) get(ctx context.Context, params map[string]string) (json.RawMessage, error) {
	params["apikey"] = c.apiKey

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get("")
	if err != nil {
		slog.Error("quote provider request failed",
			slog.String("function", params["function"]),
			slog.String("err", err.Error()))
		return nil, fmt.Errorf("quote provider request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("quote provider returned status %d", resp.StatusCode())
	}

	return json.RawMessage(resp.Body()), nil
}
