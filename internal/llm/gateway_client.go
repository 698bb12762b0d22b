package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperror "portfolio-edge/internal/error"
)

const (
	defaultHeaderTimeout = 10 * time.Second
	maxErrorBody         = 4 * 1024
)

// Client opens streaming chat completions against the LLM gateway.
type Client interface {
	OpenStream(ctx context.Context, messages []Message, maxTokens int) (io.ReadCloser, error)
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents the request to the gateway
type ChatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	Stream    bool      `json:"stream"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

// GatewayClient talks to an OpenAI-compatible chat-completions endpoint.
type GatewayClient struct {
	apiKey        string
	baseURL       string
	model         string
	headerTimeout time.Duration
	httpClient    *http.Client
}

// ------------------------------------------------------------------------------------------------------
// NewGatewayClient creates a gateway client. headerTimeout bounds the wait
// for the response headers; the body itself may stream for longer.
func NewGatewayClient(apiKey, baseURL, model string, headerTimeout time.Duration) *GatewayClient {
	if headerTimeout <= 0 {
		headerTimeout = defaultHeaderTimeout
	}
	return &GatewayClient{
		apiKey:        apiKey,
		baseURL:       baseURL,
		model:         model,
		headerTimeout: headerTimeout,
		httpClient:    &http.Client{},
	}
}

// ------------------------------------------------------------------------------------------------------
// OpenStream sends the conversation with stream=true and returns the raw SSE
// body. The caller owns the body and must close it.
func (c *GatewayClient) OpenStream(ctx context.Context, messages []Message, maxTokens int) (io.ReadCloser, error) {
	reqBody := ChatRequest{
		Model:     c.model,
		Messages:  messages,
		Stream:    true,
		MaxTokens: maxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, apperror.NewInternalError("failed to marshal request", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		cancel()
		return nil, apperror.NewInternalError("failed to create request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	timer := time.AfterFunc(c.headerTimeout, cancel)
	resp, err := c.httpClient.Do(req)
	timedOut := !timer.Stop()

	if err != nil || timedOut {
		if resp != nil {
			resp.Body.Close()
		}
		cancel()
		if timedOut {
			return nil, apperror.NewTimeoutError("AI gateway timed out", context.DeadlineExceeded)
		}
		return nil, apperror.NewGatewayError("AI gateway error", fmt.Errorf("failed to send request: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer cancel()
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, statusError(resp.StatusCode, bodyBytes)
	}

	return &streamBody{ReadCloser: resp.Body, cancel: cancel}, nil
}

// statusError maps gateway statuses onto what the browser is told.
func statusError(status int, body []byte) error {
	cause := fmt.Errorf("%w: status %d, body: %s", apperror.ErrGatewayStatus, status, string(body))
	switch status {
	case http.StatusTooManyRequests:
		return apperror.NewRateLimitError("Rate limits exceeded, please try again later.", cause)
	case http.StatusPaymentRequired:
		return apperror.NewCreditsError("AI credits depleted, please add funds to continue.", cause)
	default:
		return apperror.NewGatewayError("AI gateway error", cause)
	}
}

// streamBody releases the request context once the body is closed.
type streamBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *streamBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
