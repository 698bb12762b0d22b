package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
)

const (
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// RejectionBody is the JSON payload returned with a 429.
type RejectionBody struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter"`
	Message    string `json:"message"`
}

// ------------------------------------------------------------------------------------------------------
// Headers builds the rate limit headers for a result. Retry-After is only
// present when the request was blocked.
func Headers(res Result) http.Header {
	h := http.Header{}
	h.Set(HeaderRemaining, strconv.Itoa(res.Remaining))
	h.Set(HeaderReset, strconv.FormatInt(res.ResetTime.Unix(), 10))
	if !res.Allowed {
		h.Set(HeaderRetryAfter, strconv.Itoa(res.RetryAfter))
	}
	return h
}

// ------------------------------------------------------------------------------------------------------
func Rejection(res Result) RejectionBody {
	return RejectionBody{
		Error:      "Too many requests",
		RetryAfter: res.RetryAfter,
		Message:    fmt.Sprintf("Rate limit exceeded. Please try again in %d seconds.", res.RetryAfter),
	}
}
