package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	apperror "portfolio-edge/internal/error"
	"portfolio-edge/internal/metrics"
	"portfolio-edge/internal/service"
)

const (
	maxChatBody     = 256 * 1024
	relayBufferSize = 4 * 1024
)

// ------------------------------------------------------------------------------------------------------
// ChatHandler opens the gateway stream for the request and pipes its SSE bytes
// to the client unmodified, flushing after every chunk.
func (h *Handler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req service.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", zap.Error(err))
		h.sendErrorResponse(w, apperror.NewValidationError("Invalid JSON in request body", err))
		return
	}

	persona := metrics.PersonaLabel(req.IsGabriel)

	body, err := h.chatService.OpenChatStream(r.Context(), &req)
	if err != nil {
		h.logger.Error("Chat stream failed to open",
			zap.String("persona", persona),
			zap.Error(err),
		)
		metrics.ChatStreamsTotal.WithLabelValues(persona, outcomeFor(err)).Inc()
		h.sendErrorResponse(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	written, err := pipeStream(w, body)
	metrics.ChatStreamBytes.Add(float64(written))

	if err != nil {
		h.logger.Warn("Chat stream interrupted",
			zap.String("persona", persona),
			zap.Int64("bytes", written),
			zap.Error(err),
		)
		metrics.ChatStreamsTotal.WithLabelValues(persona, "interrupted").Inc()
		return
	}

	metrics.ChatStreamsTotal.WithLabelValues(persona, "completed").Inc()
}

// pipeStream copies src to w, flushing after every read so tokens reach the
// browser as soon as the gateway emits them.
func pipeStream(w http.ResponseWriter, src io.Reader) (int64, error) {
	rc := http.NewResponseController(w)
	buf := make([]byte, relayBufferSize)
	var total int64

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			written, err := w.Write(buf[:n])
			total += int64(written)
			if err != nil {
				return total, err
			}
			if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
				return total, err
			}
		}
		if errors.Is(readErr, io.EOF) {
			return total, nil
		}
		if readErr != nil {
			return total, readErr
		}
	}
}

func outcomeFor(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return string(appErr.Type)
	}
	return string(apperror.ErrorTypeInternal)
}
