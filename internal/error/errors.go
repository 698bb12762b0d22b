package error

import "errors"

var (
	ErrMessagesEmpty      = errors.New("messages cannot be empty")
	ErrInvalidRole        = errors.New("invalid message role")
	ErrEmptyContent       = errors.New("empty message content")
	ErrLastMessageNotUser = errors.New("last message must be from user")
	ErrTokenBudget        = errors.New("conversation exceeds token budget")
	ErrGatewayStatus      = errors.New("gateway returned non-2xx status")
	ErrGitHubStatus       = errors.New("github returned non-2xx status")
)
