package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes.
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(RequestID, RequestLogger, RequestMetrics)

	// Portfolio and orders
	api.HandleFunc("/portfolio/{user_id}", handler.GetPortfolio).Methods("GET")
	api.HandleFunc("/orders", handler.CreateOrder).Methods("POST")
	api.HandleFunc("/orders/{user_id}", handler.GetOrders).Methods("GET")

	// User directory
	api.HandleFunc("/users", handler.ListUsers).Methods("GET")
	api.HandleFunc("/users", handler.CreateUser).Methods("POST")
	api.HandleFunc("/users/{id}", handler.GetUser).Methods("GET")
	api.HandleFunc("/users/{id}", handler.UpdateUser).Methods("PATCH")

	// Market data proxy
	api.HandleFunc("/market/search/{query}", handler.SearchStocks).Methods("GET")
	api.HandleFunc("/market/info/{ticker}", handler.GetStockInfo).Methods("GET")
	api.HandleFunc("/market/history/{ticker}", handler.GetStockHistory).Methods("GET")

	return r
}
