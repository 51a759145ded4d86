package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"llmgate/internal/models"
)

// RouteOption configures optional route behavior.
type RouteOption func(*mux.Router)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(r *mux.Router) {
		r.Use(otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" &&
					r.URL.Path != "/api/v1/health" &&
					r.URL.Path != "/metrics"
			}),
		))
	}
}

// WithRateLimiter adds inbound rate limiting middleware to the router.
func WithRateLimiter(middleware func(http.Handler) http.Handler) RouteOption {
	return func(r *mux.Router) {
		r.Use(middleware)
	}
}

// SetupRoutes configures the HTTP routes for the API
func SetupRoutes(handlers *Handlers, config *models.Config, opts ...RouteOption) *mux.Router {
	router := mux.NewRouter()

	for _, opt := range opts {
		opt(router)
	}

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/generate", handlers.Generate).Methods("POST")
	api.HandleFunc("/generate", methodNotAllowedHandler).Methods("GET", "PUT", "DELETE", "PATCH")
	api.HandleFunc("/generate/batch", handlers.BatchGenerate).Methods("POST")

	api.HandleFunc("/usage", handlers.Usage).Methods("GET")
	api.HandleFunc("/ratelimit", handlers.RateLimitInfo).Methods("GET")
	api.HandleFunc("/retries", handlers.RetryHistory).Methods("GET")
	api.HandleFunc("/retries", handlers.ClearRetryHistory).Methods("DELETE")
	api.HandleFunc("/calls", handlers.RecentCalls).Methods("GET")

	// Admin operations - bearer-token authenticated.
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(adminAuthMiddleware(config.Security.AdminToken))
	admin.HandleFunc("/keys/rotate", handlers.RotateKey).Methods("POST")
	admin.HandleFunc("/model", handlers.GetModel).Methods("GET")
	admin.HandleFunc("/model", handlers.SwitchModel).Methods("POST")
	admin.HandleFunc("/flow/reset", handlers.ResetFlow).Methods("POST")

	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	router.HandleFunc("/api/v1/health", handlers.HealthCheck).Methods("GET")

	router.Use(requestIDMiddleware)
	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)

	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)

	return router
}

// methodNotAllowedHandler handles requests with invalid HTTP methods
func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	errorResp := models.NewErrorResponse("Method not allowed", models.ErrorCodeBadRequest)
	json.NewEncoder(w).Encode(errorResp)
}
