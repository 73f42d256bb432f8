package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/trogers1052/portfolio-service/internal/engine"
	"github.com/trogers1052/portfolio-service/internal/models"
	"github.com/trogers1052/portfolio-service/internal/storage"
)

// OrderEngine executes buy/sell orders against the portfolio.
type OrderEngine interface {
	ApplyOrder(ctx context.Context, userID, ticker, action string, quantity decimal.Decimal) (models.Position, models.Order, error)
}

// MarketData proxies raw quote-provider lookups.
type MarketData interface {
	Search(ctx context.Context, query string) (json.RawMessage, error)
	TimeSeries(ctx context.Context, ticker, frequency string) (json.RawMessage, error)
	HistoricalOptions(ctx context.Context, ticker, date string) (json.RawMessage, error)
}

// QuoteCache caches provider payloads for the market-data endpoints.
type QuoteCache interface {
	GetQuotePayload(ctx context.Context, function, arg string) (json.RawMessage, error)
	SetQuotePayload(ctx context.Context, function, arg string, payload json.RawMessage) error
	Ping(ctx context.Context) error
}

// EventPublisher emits order events after execution.
type EventPublisher interface {
	PublishOrderExecuted(ctx context.Context, order models.Order) error
}

// HealthChecker reports reachability of a backing service.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	engine    OrderEngine
	portfolio storage.PortfolioStore
	users     storage.UserStore
	market    MarketData
	cache     QuoteCache
	producer  EventPublisher
	storeHC   HealthChecker
}

// NewHandler creates a new Handler. cache and producer may be nil; the related
// features degrade gracefully.
func NewHandler(eng OrderEngine, portfolio storage.PortfolioStore, users storage.UserStore,
	market MarketData, cache QuoteCache, producer EventPublisher, storeHC HealthChecker) *Handler {
	return &Handler{
		engine:    eng,
		portfolio: portfolio,
		users:     users,
		market:    market,
		cache:     cache,
		producer:  producer,
		storeHC:   storeHC,
	}
}

// GetPortfolio handles GET /portfolio/{user_id}.
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	positions, err := h.portfolio.GetPositions(r.Context(), userID)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	// The response exposes holdings only, never the owning user id.
	type holding struct {
		Ticker    string          `json:"ticker"`
		Quantity  decimal.Decimal `json:"quantity"`
		CostPrice decimal.Decimal `json:"cost_price"`
	}
	holdings := make([]holding, 0, len(positions))
	for _, p := range positions {
		holdings = append(holdings, holding{Ticker: p.Ticker, Quantity: p.Quantity, CostPrice: p.CostPrice})
	}

	respondJSON(w, http.StatusOK, holdings)
}

type createOrderRequest struct {
	UserID   string          `json:"user_id"`
	Ticker   string          `json:"ticker"`
	Action   string          `json:"action"`
	Quantity decimal.Decimal `json:"quantity"`
}

// CreateOrder handles POST /orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Ticker == "" || req.Action == "" {
		respondError(w, http.StatusBadRequest, "user_id, ticker and action are required")
		return
	}

	_, order, err := h.engine.ApplyOrder(r.Context(), req.UserID, req.Ticker, req.Action, req.Quantity)
	if err != nil {
		respondOrderError(w, err)
		return
	}

	if h.producer != nil {
		if pubErr := h.producer.PublishOrderExecuted(r.Context(), order); pubErr != nil {
			// Event delivery never fails the request.
			slog.Error("failed to publish order event",
				slog.String("order_id", order.ID),
				slog.String("err", pubErr.Error()))
		}
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"order_id":    order.ID,
		"ticker":      order.Ticker,
		"action":      order.Action,
		"quantity":    order.Quantity,
		"order_price": order.Price,
	})
}

// GetOrders handles GET /orders/{user_id}.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	orders, err := h.portfolio.GetOrders(r.Context(), userID)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, orders)
}

// respondOrderError maps engine failures onto the HTTP surface: business-rule
// rejections are 400s, a dead oracle is an upstream failure, anything else is a
// persistence fault.
func respondOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidAction),
		errors.Is(err, engine.ErrInvalidQuantity),
		errors.Is(err, engine.ErrInsufficientHoldings),
		errors.Is(err, storage.ErrInvalidID):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrPriceUnavailable):
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func respondStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidID):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrDuplicateUsername), errors.Is(err, storage.ErrDuplicateEmail):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	services := map[string]string{}
	allHealthy := true

	if h.storeHC != nil {
		if err := h.storeHC.Ping(ctx); err != nil {
			services["store"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			services["store"] = "healthy"
		}
	} else {
		services["store"] = "not configured"
		allHealthy = false
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			services["redis"] = "unhealthy: " + err.Error()
		} else {
			services["redis"] = "healthy"
		}
	} else {
		services["redis"] = "not configured"
	}

	if h.producer != nil {
		services["kafka"] = "configured"
	} else {
		services["kafka"] = "not configured"
	}

	if !allHealthy {
		health["status"] = "degraded"
	}
	health["services"] = services

	respondJSON(w, http.StatusOK, health)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
