package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"portfolio-edge/internal/metrics"
)

// ------------------------------------------------------------------------------------------------------
func (h *Handler) GitHubHandler(w http.ResponseWriter, r *http.Request) {
	activity, err := h.github.Activity(r.Context())
	if err != nil {
		h.logger.Error("GitHub activity unavailable", zap.Error(err))
		metrics.GitHubResponses.WithLabelValues("error").Inc()
		h.sendErrorResponse(w, err)
		return
	}

	source := "upstream"
	if activity.Cached {
		source = "cache"
	}
	metrics.GitHubResponses.WithLabelValues(source).Inc()

	w.Header().Set("Cache-Control", "public, max-age=60")
	h.sendJSON(w, http.StatusOK, activity)
}
