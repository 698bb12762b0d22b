package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 64 * 1024

// Request is what a stream needs from the chat endpoint.
type Request struct {
	Messages  []Message
	Authentic bool
}

// Opener starts one persona's chat stream and returns its SSE body.
type Opener interface {
	Open(ctx context.Context, req Request) (io.ReadCloser, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, req Request) (io.ReadCloser, error)

func (f OpenerFunc) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	return f(ctx, req)
}

// StatusError is returned when the chat endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat endpoint returned %d: %s", e.StatusCode, e.Message)
}

// chatPayload is the edge function's request body.
type chatPayload struct {
	Messages  []Message `json:"messages"`
	IsGabriel bool      `json:"isGabriel"`
}

// HTTPOpener calls the chat edge function over HTTP.
type HTTPOpener struct {
	Endpoint string
	// Token is passed through as a bearer token when set.
	Token  string
	Client *http.Client
}

// ------------------------------------------------------------------------------------------------------
func (o *HTTPOpener) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	jsonData, err := json.Marshal(chatPayload{Messages: req.Messages, IsGabriel: req.Authentic})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.Endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if token := strings.TrimSpace(o.Token); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, bodyBytes)}
	}

	return resp.Body, nil
}

// errorMessage pulls a human readable reason out of the endpoint's error
// bodies: {"message": ...}, {"error": {"message": ...}} or {"error": "..."}.
func errorMessage(status int, body []byte) string {
	var parsed struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		var detail struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(parsed.Error, &detail); err == nil && detail.Message != "" {
			return detail.Message
		}
		var text string
		if err := json.Unmarshal(parsed.Error, &text); err == nil && text != "" {
			return text
		}
	}
	return http.StatusText(status)
}
