package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apperror "portfolio-edge/internal/error"
	"portfolio-edge/internal/metrics"
	"portfolio-edge/internal/ratelimit"
	"portfolio-edge/internal/relay"
	"portfolio-edge/internal/service"
)

// Client frame types
const (
	frameMessage = "message"
	frameReveal  = "reveal"
	frameReset   = "reset"
)

// Server frame types
const (
	frameUpdate   = "update"
	frameToast    = "toast"
	frameRejected = "rejected"
	frameRevealed = "revealed"
)

// maxDuelFrame bounds a single client frame, matching the chat body limit.
const maxDuelFrame = maxChatBody

type clientFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

type serverFrame struct {
	Type      string          `json:"type"`
	Persona   relay.Persona   `json:"persona,omitempty"`
	Messages  []relay.Message `json:"messages,omitempty"`
	Loading   *bool           `json:"loading,omitempty"`
	Message   string          `json:"message,omitempty"`
	Authentic relay.Persona   `json:"authentic,omitempty"`
}

// ------------------------------------------------------------------------------------------------------
// DuelHandler upgrades to a websocket and runs one duel per connection. Both
// persona streams are produced in-process and each consumes a chat rate limit
// slot for the caller.
func (h *Handler) DuelHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxDuelFrame)

	metrics.DuelConnections.Inc()
	defer metrics.DuelConnections.Dec()

	clientID := ratelimit.IdentifyClient(r)
	logger := h.logger.With(zap.String("client", clientID))

	var writeMu sync.Mutex
	send := func(frame serverFrame) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(frame); err != nil {
			logger.Debug("Failed to write websocket frame", zap.String("type", frame.Type), zap.Error(err))
		}
	}

	duel := relay.NewDuel(h.duelOpener(clientID), relay.Options{
		OnUpdate: func(u relay.Update) {
			loading := u.State.IsLoading
			send(serverFrame{
				Type:     frameUpdate,
				Persona:  u.Persona,
				Messages: u.State.Messages,
				Loading:  &loading,
			})
		},
		OnError: func(p relay.Persona, err error) {
			send(serverFrame{Type: frameToast, Persona: p, Message: toastMessage(err)})
		},
		Logger: logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	var inflight sync.WaitGroup
	defer inflight.Wait()
	defer cancel()

	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("WebSocket read ended", zap.Error(err))
			}
			return
		}

		switch frame.Type {
		case frameMessage:
			if err := checkSendable(duel); err != nil {
				send(serverFrame{Type: frameRejected, Message: err.Error()})
				continue
			}
			inflight.Add(1)
			go func(text string) {
				defer inflight.Done()
				if err := duel.Send(ctx, text); err != nil {
					send(serverFrame{Type: frameRejected, Message: err.Error()})
				}
			}(frame.Content)

		case frameReveal:
			send(serverFrame{Type: frameRevealed, Authentic: duel.Reveal()})

		case frameReset:
			duel.Reset()

		default:
			send(serverFrame{Type: frameRejected, Message: "unknown frame type"})
		}
	}
}

// checkSendable answers the obvious rejections before a goroutine is spent.
// Send repeats the checks under its own lock.
func checkSendable(duel *relay.Duel) error {
	if duel.Revealed() {
		return relay.ErrRevealed
	}
	for _, p := range relay.Personas {
		if duel.Snapshot(p).IsLoading {
			return relay.ErrBusy
		}
	}
	return nil
}

// duelOpener calls the chat service directly, charging the caller's chat
// rate limit once per persona stream.
func (h *Handler) duelOpener(clientID string) relay.Opener {
	return relay.OpenerFunc(func(ctx context.Context, req relay.Request) (io.ReadCloser, error) {
		res := h.limiter.CheckAndConsume(clientID, h.chatLimit)
		if !res.Allowed {
			metrics.RateLimitRejections.WithLabelValues(h.chatLimit.KeyPrefix).Inc()
			return nil, apperror.NewRateLimitError(ratelimit.Rejection(res).Message, nil)
		}

		chatReq := &service.ChatRequest{
			Messages:  make([]service.Message, 0, len(req.Messages)),
			IsGabriel: req.Authentic,
		}
		for _, m := range req.Messages {
			chatReq.Messages = append(chatReq.Messages, service.Message{Role: string(m.Role), Content: m.Content})
		}

		persona := metrics.PersonaLabel(req.Authentic)
		body, err := h.chatService.OpenChatStream(ctx, chatReq)
		if err != nil {
			metrics.ChatStreamsTotal.WithLabelValues(persona, outcomeFor(err)).Inc()
			return nil, err
		}
		metrics.ChatStreamsTotal.WithLabelValues(persona, "opened").Inc()
		return body, nil
	})
}

func toastMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Failed to get a response"
}
