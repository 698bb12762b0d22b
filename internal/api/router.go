package api

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"portfolio-edge/internal/api/handlers"
	"portfolio-edge/internal/ratelimit"
)

// Limits are the per-endpoint rate limit windows.
type Limits struct {
	Registry *ratelimit.Registry
	Chat     ratelimit.Config
	GitHub   ratelimit.Config
}

// SetupRouter configures HTTP routes
func SetupRouter(handler *handlers.Handler, limits Limits, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter()

	router.Use(RequestIDMiddleware)
	router.Use(func(next http.Handler) http.Handler {
		return LoggingMiddleware(logger, next)
	})
	router.Use(MetricsMiddleware)

	// Health check
	router.HandleFunc("/health", handler.HealthHandler).Methods(http.MethodGet)

	// Metrics endpoint
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// API routes stay on the root router so a method mismatch on one path is
	// answered with 405 rather than swallowed by a sibling route.
	chatLimit := RateLimitMiddleware(limits.Registry, limits.Chat, logger)
	router.Handle("/api/chat", chatLimit(http.HandlerFunc(handler.ChatHandler))).Methods(http.MethodPost)

	githubLimit := RateLimitMiddleware(limits.Registry, limits.GitHub, logger)
	router.Handle("/api/github", githubLimit(http.HandlerFunc(handler.GitHubHandler))).Methods(http.MethodGet)

	// Rate limited per persona stream inside the handler
	router.HandleFunc("/api/duel/ws", handler.DuelHandler).Methods(http.MethodGet)

	return router
}

// ------------------------------------------------------------------------------------------------------
// WithCORS answers preflight requests and exposes the rate limit headers to
// browser callers.
func WithCORS(next http.Handler, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Client-Info", "Apikey", requestIDHeader},
		ExposedHeaders: []string{
			ratelimit.HeaderRemaining,
			ratelimit.HeaderReset,
			ratelimit.HeaderRetryAfter,
			requestIDHeader,
		},
		MaxAge: 300,
	})(next)
}
