package service

import (
	"context"
	"fmt"
	"io"

	apperror "portfolio-edge/internal/error"
	"portfolio-edge/internal/llm"
	"portfolio-edge/internal/persona"
)

// Options tunes how conversations are forwarded.
type Options struct {
	MaxTokens      int
	MaxInputTokens int
	MaxExchanges   int
}

// chatService forwards persona conversations to the LLM gateway
type chatService struct {
	llmClient llm.Client
	prompts   persona.Prompts
	counter   TokenCounter // Can be nil; the token budget is then not enforced
	opts      Options
}

// ------------------------------------------------------------------------------------------------------
// NewChatService creates a new chat service with injected dependencies
func NewChatService(llmClient llm.Client, prompts persona.Prompts, counter TokenCounter, opts Options) ChatService {
	return &chatService{
		llmClient: llmClient,
		prompts:   prompts,
		counter:   counter,
		opts:      opts,
	}
}

// ------------------------------------------------------------------------------------------------------
// OpenChatStream validates the request, prepends the persona's system prompt
// and opens the upstream stream. The returned body is the gateway's SSE
// stream, unmodified.
func (s *chatService) OpenChatStream(ctx context.Context, req *ChatRequest) (io.ReadCloser, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	history := trimToMaxExchanges(req.Messages, s.opts.MaxExchanges)

	llmMessages := make([]llm.Message, 0, len(history)+1)
	llmMessages = append(llmMessages, llm.Message{Role: "system", Content: s.prompts.For(req.IsGabriel)})
	for _, msg := range history {
		llmMessages = append(llmMessages, llm.Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	if err := s.checkBudget(llmMessages); err != nil {
		return nil, err
	}

	return s.llmClient.OpenStream(ctx, llmMessages, s.opts.MaxTokens)
}

func (s *chatService) checkBudget(messages []llm.Message) error {
	if s.counter == nil || s.opts.MaxInputTokens <= 0 {
		return nil
	}

	count, err := s.counter.CountTokens(messages)
	if err != nil {
		return apperror.NewInternalError("failed to count tokens", err)
	}
	if count > s.opts.MaxInputTokens {
		return apperror.NewValidationError(
			fmt.Sprintf("conversation is too long (%d tokens, limit %d)", count, s.opts.MaxInputTokens),
			apperror.ErrTokenBudget,
		)
	}
	return nil
}
