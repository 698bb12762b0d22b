package service

import (
	"fmt"

	apperror "portfolio-edge/internal/error"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message as sent by the browser
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the chat edge function's body. IsGabriel picks the system
// prompt and is never forwarded to the gateway.
type ChatRequest struct {
	Messages  []Message `json:"messages"`
	IsGabriel bool      `json:"isGabriel"`
}

// ------------------------------------------------------------------------------------------------------
func (r *ChatRequest) Validate() error {
	if len(r.Messages) == 0 {
		return apperror.NewValidationError("messages cannot be empty", apperror.ErrMessagesEmpty)
	}

	for i, msg := range r.Messages {
		if msg.Role != RoleUser && msg.Role != RoleAssistant {
			return apperror.NewValidationError(
				fmt.Sprintf("invalid role '%s' at index %d: must be 'user' or 'assistant'", msg.Role, i),
				apperror.ErrInvalidRole,
			)
		}
		if msg.Content == "" {
			return apperror.NewValidationError(
				fmt.Sprintf("empty content at index %d", i),
				apperror.ErrEmptyContent,
			)
		}
	}

	lastMsg := r.Messages[len(r.Messages)-1]
	if lastMsg.Role != RoleUser {
		return apperror.NewValidationError(
			fmt.Sprintf("last message must be from user, got '%s'", lastMsg.Role),
			apperror.ErrLastMessageNotUser,
		)
	}

	return nil
}
