package service

import (
	"context"
	"io"

	"portfolio-edge/internal/llm"
)

// ChatService defines the interface for chat operations
type ChatService interface {
	OpenChatStream(ctx context.Context, req *ChatRequest) (io.ReadCloser, error)
}

// TokenCounter estimates the prompt size of a conversation.
type TokenCounter interface {
	CountTokens(messages []llm.Message) (int, error)
}
