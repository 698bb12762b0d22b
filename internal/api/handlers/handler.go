package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apperror "portfolio-edge/internal/error"
	"portfolio-edge/internal/github"
	"portfolio-edge/internal/ratelimit"
	"portfolio-edge/internal/service"
)

// ActivitySource provides the GitHub activity summary.
type ActivitySource interface {
	Activity(ctx context.Context) (*github.Activity, error)
}

// Options holds the handler dependencies.
type Options struct {
	ChatService service.ChatService
	GitHub      ActivitySource
	// Limiter and ChatLimit meter the duel websocket, which bypasses the
	// HTTP rate limit middleware once upgraded.
	Limiter        *ratelimit.Registry
	ChatLimit      ratelimit.Config
	AllowedOrigins []string
	Logger         *zap.Logger
}

type Handler struct {
	chatService service.ChatService
	github      ActivitySource
	limiter     *ratelimit.Registry
	chatLimit   ratelimit.Config
	logger      *zap.Logger
	upgrader    websocket.Upgrader
}

// ------------------------------------------------------------------------------------------------------
func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.NewRegistry()
	}
	origins := opts.AllowedOrigins

	return &Handler{
		chatService: opts.ChatService,
		github:      opts.GitHub,
		limiter:     limiter,
		chatLimit:   opts.ChatLimit,
		logger:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(origins, r.Header.Get("Origin"))
			},
		},
	}
}

// ------------------------------------------------------------------------------------------------------
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := "OK"

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// ------------------------------------------------------------------------------------------------------
func (h *Handler) sendErrorResponse(w http.ResponseWriter, err error) {
	statusCode := apperror.GetHTTPStatusCode(err)
	errorResponse := apperror.NewErrorResponse(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if encodeErr := json.NewEncoder(w).Encode(errorResponse); encodeErr != nil {
		h.logger.Error("Failed to encode error response",
			zap.Error(encodeErr),
			zap.Error(err),
		)
	}
}

// ------------------------------------------------------------------------------------------------------
func (h *Handler) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// originAllowed accepts requests without an Origin header, any origin when
// the list is empty or contains "*", and otherwise exact matches only.
func originAllowed(allowed []string, origin string) bool {
	if origin == "" || len(allowed) == 0 {
		return true
	}
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
