package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/trogers1052/portfolio-service/internal/quotes"
)

// SearchStocks handles GET /market/search/{query}.
func (h *Handler) SearchStocks(w http.ResponseWriter, r *http.Request) {
	query := mux.Vars(r)["query"]

	payload, err := h.cachedLookup(r.Context(), "search", query, func(ctx context.Context) (json.RawMessage, error) {
		return h.market.Search(ctx, query)
	})
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondRaw(w, payload)
}

// GetStockInfo handles GET /market/info/{ticker}?frequency=INTRADAY|DAILY.
func (h *Handler) GetStockInfo(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]
	frequency := r.URL.Query().Get("frequency")

	payload, err := h.cachedLookup(r.Context(), "info", ticker+":"+frequency, func(ctx context.Context) (json.RawMessage, error) {
		return h.market.TimeSeries(ctx, ticker, frequency)
	})
	if err != nil {
		if errors.Is(err, quotes.ErrInvalidFrequency) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondRaw(w, payload)
}

// GetStockHistory handles GET /market/history/{ticker}?date=YYYY-MM-DD.
func (h *Handler) GetStockHistory(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]
	date := r.URL.Query().Get("date")

	payload, err := h.cachedLookup(r.Context(), "history", ticker+":"+date, func(ctx context.Context) (json.RawMessage, error) {
		return h.market.HistoricalOptions(ctx, ticker, date)
	})
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondRaw(w, payload)
}

// cachedLookup serves a provider payload from the quote cache when possible,
// falling through to the provider and caching the fresh answer. Cache failures
// only cost the caching, never the request.
func (h *Handler) cachedLookup(ctx context.Context, function, arg string,
	fetch func(ctx context.Context) (json.RawMessage, error)) (json.RawMessage, error) {

	if h.cache != nil {
		if payload, err := h.cache.GetQuotePayload(ctx, function, arg); err == nil {
			return payload, nil
		}
	}

	payload, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.SetQuotePayload(ctx, function, arg, payload); err != nil {
			slog.Warn("failed to cache quote payload",
				slog.String("function", function),
				slog.String("arg", arg),
				slog.String("err", err.Error()))
		}
	}

	return payload, nil
}

func respondRaw(w http.ResponseWriter, payload json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}
