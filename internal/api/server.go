package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"streamsniff/internal/ratelimit"
)

// SetupRoutes configures all HTTP routes
func (h *Handler) SetupRoutes(rateLimiter *ratelimit.Limiter, requestsPerHour int) *mux.Router {
	r := mux.NewRouter()

	// The one functional endpoint (rate limited)
	scrape := r.PathPrefix("/scrape").Subrouter()
	scrape.Use(RateLimitMiddleware(rateLimiter, requestsPerHour))
	scrape.HandleFunc("", h.Scrape).Methods("GET")

	r.HandleFunc("/healthz", h.Healthz).Methods("GET")

	// Observability endpoints (not rate limited)
	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/sessions", h.ListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", h.GetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}/events", h.SessionEvents).Methods("GET")

	// CORS middleware
	r.Use(corsMiddleware)

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
