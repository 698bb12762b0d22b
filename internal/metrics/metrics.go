package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Rate limiter
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)

	RateLimitExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_entries_expired_total",
			Help: "Rate limit entries removed by the expiry sweep",
		},
	)

	RateLimitKeys = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limit_tracked_keys",
			Help: "Rate limit keys currently tracked",
		},
	)

	// Chat relay
	ChatStreamsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_streams_total",
			Help: "Chat streams by persona and outcome",
		},
		[]string{"persona", "outcome"},
	)

	ChatStreamBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_stream_bytes_total",
			Help: "Bytes relayed from the LLM gateway",
		},
	)

	DuelConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "duel_websocket_connections",
			Help: "Open duel websocket connections",
		},
	)

	// GitHub proxy
	GitHubResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "github_activity_responses_total",
			Help: "GitHub activity responses by source",
		},
		[]string{"source"},
	)
)

// PersonaLabel is the metric label for a chat request's persona.
func PersonaLabel(authentic bool) string {
	if authentic {
		return "authentic"
	}
	return "generic"
}
