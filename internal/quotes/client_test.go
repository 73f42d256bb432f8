package quotes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/portfolio-service/internal/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(config.QuoteAPIConfig{
		URL:     srv.URL,
		Key:     "test-key",
		Timeout: 2 * time.Second,
	})
}

func TestGlobalQuote_ParsesPrice(t *testing.T) {
	var gotQuery map[string]string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"function": r.URL.Query().Get("function"),
			"symbol":   r.URL.Query().Get("symbol"),
			"apikey":   r.URL.Query().Get("apikey"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Global Quote": {"01. symbol": "IBM", "05. price": "258.0472"}}`))
	})

	price, err := client.GlobalQuote(context.Background(), "IBM")
	require.NoError(t, err)
	assert.Equal(t, "258.0472", price.String())
	assert.Equal(t, "GLOBAL_QUOTE", gotQuery["function"])
	assert.Equal(t, "IBM", gotQuery["symbol"])
	assert.Equal(t, "test-key", gotQuery["apikey"])
}

func TestGlobalQuote_UnknownSymbol(t *testing.T) {
	// The provider answers an empty quote object for unknown symbols.
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Global Quote": {}}`))
	})

	_, err := client.GlobalQuote(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrSymbolNotFound)
}

func TestGlobalQuote_ProviderError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := client.GlobalQuote(context.Background(), "IBM")
	assert.Error(t, err)
}

func TestTimeSeries_Frequencies(t *testing.T) {
	var gotFunction string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotFunction = r.URL.Query().Get("function")
		w.Write([]byte(`{"Meta Data": {}}`))
	})

	_, err := client.TimeSeries(context.Background(), "IBM", FrequencyIntraday)
	require.NoError(t, err)
	assert.Equal(t, "TIME_SERIES_INTRADAY", gotFunction)

	_, err = client.TimeSeries(context.Background(), "IBM", FrequencyDaily)
	require.NoError(t, err)
	assert.Equal(t, "TIME_SERIES_DAILY", gotFunction)

	_, err = client.TimeSeries(context.Background(), "IBM", "WEEKLY")
	assert.ErrorIs(t, err, ErrInvalidFrequency)
}

func TestSearch_PassesPayloadThrough(t *testing.T) {
	payload := `{"bestMatches": [{"1. symbol": "AAPL"}]}`
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SYMBOL_SEARCH", r.URL.Query().Get("function"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("keywords"))
		w.Write([]byte(payload))
	})

	got, err := client.Search(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(got))
}

func TestHistoricalOptions_IncludesDate(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "HISTORICAL_OPTIONS", r.URL.Query().Get("function"))
		assert.Equal(t, "2025-02-20", r.URL.Query().Get("date"))
		w.Write([]byte(`{"data": []}`))
	})

	_, err := client.HistoricalOptions(context.Background(), "IBM", "2025-02-20")
	require.NoError(t, err)
}
