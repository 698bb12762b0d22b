package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPOpener_Open(t *testing.T) {
	var got chatPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, sseBody("hey"))
	}))
	defer srv.Close()

	opener := &HTTPOpener{Endpoint: srv.URL, Token: "anon-key"}
	body, err := opener.Open(context.Background(), Request{
		Messages:  []Message{{Role: RoleUser, Content: "hi"}},
		Authentic: true,
	})
	require.NoError(t, err)

	text, err := Consume(context.Background(), body, nil)
	require.NoError(t, err)
	require.Equal(t, "hey", text)
	require.Equal(t, "Bearer anon-key", auth)
	require.True(t, got.IsGabriel)
	require.Equal(t, []Message{{Role: RoleUser, Content: "hi"}}, got.Messages)
}

func TestHTTPOpener_StatusErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{
			name:    "rate limited",
			status:  http.StatusTooManyRequests,
			body:    `{"error":"Too many requests","retryAfter":12,"message":"Rate limit exceeded. Please try again in 12 seconds."}`,
			message: "Rate limit exceeded. Please try again in 12 seconds.",
		},
		{
			name:    "app error envelope",
			status:  http.StatusPaymentRequired,
			body:    `{"error":{"type":"credits_error","message":"AI credits depleted."}}`,
			message: "AI credits depleted.",
		},
		{
			name:    "plain error",
			status:  http.StatusInternalServerError,
			body:    `{"error":"AI gateway error"}`,
			message: "AI gateway error",
		},
		{
			name:    "not json",
			status:  http.StatusBadGateway,
			body:    `upstream down`,
			message: http.StatusText(http.StatusBadGateway),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := (&HTTPOpener{Endpoint: srv.URL}).Open(context.Background(), Request{})
			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			require.Equal(t, tt.status, statusErr.StatusCode)
			require.Equal(t, tt.message, statusErr.Message)
		})
	}
}
