package server

import (
	"net/http"
	"time"
)

// New wires the service routes. metricsHandler and api may be nil.
func New(addr string, healthHandler http.Handler, metricsHandler http.Handler, api *API) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /health", healthHandler)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	if api != nil {
		mux.HandleFunc("POST /v1/results/{type}", api.PostResult)
		mux.HandleFunc("GET /v1/results/{auditID}", api.GetResult)
		mux.HandleFunc("GET /v1/aggregates", api.ListAggregates)
		mux.HandleFunc("GET /v1/sanity/{model}", api.LatestSanity)
	}

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
