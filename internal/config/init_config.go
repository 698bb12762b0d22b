package config

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"portfolio-edge/internal/api"
	"portfolio-edge/internal/api/handlers"
	"portfolio-edge/internal/github"
	"portfolio-edge/internal/llm"
	"portfolio-edge/internal/logging"
	"portfolio-edge/internal/persona"
	"portfolio-edge/internal/ratelimit"
	"portfolio-edge/internal/service"
	"portfolio-edge/internal/storage"
)

const redisConnectTimeout = 3 * time.Second

// ------------------------------------------------------------------------------------------------------
func (c *Config) NewLogger() (*zap.Logger, error) {
	if err := logging.Init(c.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logging.Logger, nil
}

// ------------------------------------------------------------------------------------------------------
// NewCacheStore connects to Redis when REDIS_ADDR is set and falls back to a
// process-local store otherwise.
func (c *Config) NewCacheStore(logger *zap.Logger) storage.CacheStore {
	if c.RedisAddr == "" {
		logger.Info("REDIS_ADDR not set, using in-memory cache")
		return storage.NewMemoryStore()
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()

	redisStore, err := storage.NewRedisStore(ctx, c.RedisAddr, c.RedisPassword)
	if err != nil {
		logger.Warn("Failed to connect to Redis, continuing with in-memory cache",
			zap.Error(err),
		)
		return storage.NewMemoryStore()
	}
	logger.Info("Connected to Redis", zap.String("addr", c.RedisAddr))
	return redisStore
}

// ------------------------------------------------------------------------------------------------------
func (c *Config) NewLLMClient() llm.Client {
	return llm.NewGatewayClient(c.LLMAPIKey, c.LLMGatewayURL, c.Model, c.UpstreamTimeout)
}

// ------------------------------------------------------------------------------------------------------
func (c *Config) NewPrompts() (persona.Prompts, error) {
	prompts, err := persona.Load(c.PersonaFile)
	if err != nil {
		return persona.Prompts{}, fmt.Errorf("failed to load persona prompts: %w", err)
	}
	return prompts, nil
}

// ------------------------------------------------------------------------------------------------------
// NewTokenCounter returns nil when the tokenizer cannot be loaded; the chat
// service then skips the input budget.
func (c *Config) NewTokenCounter(logger *zap.Logger) service.TokenCounter {
	if c.MaxInputTokens <= 0 {
		return nil
	}
	counter, err := service.NewTiktokenCounter()
	if err != nil {
		logger.Warn("Tokenizer unavailable, input token budget disabled", zap.Error(err))
		return nil
	}
	return counter
}

// ------------------------------------------------------------------------------------------------------
func (c *Config) NewChatService(logger *zap.Logger) (service.ChatService, error) {
	prompts, err := c.NewPrompts()
	if err != nil {
		return nil, err
	}

	chatService := service.NewChatService(c.NewLLMClient(), prompts, c.NewTokenCounter(logger), service.Options{
		MaxTokens:      c.MaxTokens,
		MaxInputTokens: c.MaxInputTokens,
		MaxExchanges:   c.MaxExchanges,
	})

	return chatService, nil
}

// ------------------------------------------------------------------------------------------------------
func (c *Config) NewGitHubClient(cache storage.CacheStore, logger *zap.Logger) *github.Client {
	if c.GitHubUser == "" {
		logger.Warn("GITHUB_USER not set, /api/github will fail")
	}
	if c.GitHubToken == "" {
		logger.Info("GITHUB_TOKEN not set, using unauthenticated GitHub rate limits")
	}

	return &github.Client{
		BaseURL: c.GitHubAPIURL,
		User:    c.GitHubUser,
		Token:   c.GitHubToken,
		PerPage: c.GitHubPerPage,
		Timeout: c.UpstreamTimeout,
		Cache:   cache,
		Logger:  logger,
	}
}

// ------------------------------------------------------------------------------------------------------
func (c *Config) NewRateLimits() api.Limits {
	return api.Limits{
		Registry: ratelimit.NewRegistry(),
		Chat: ratelimit.Config{
			MaxRequests: c.ChatRateLimit,
			Window:      c.ChatRateWindow,
			KeyPrefix:   "chat",
		},
		GitHub: ratelimit.Config{
			MaxRequests: c.GitHubRateLimit,
			Window:      c.GitHubRateWindow,
			KeyPrefix:   "github",
		},
	}
}

// ------------------------------------------------------------------------------------------------------
func (c *Config) NewHandler(chatService service.ChatService, gh handlers.ActivitySource, limits api.Limits, logger *zap.Logger) *handlers.Handler {
	if len(c.AllowedOrigins) == 0 {
		logger.Warn("ALLOWED_ORIGINS not set, accepting browser requests and websockets from any origin")
	}

	return handlers.NewHandler(handlers.Options{
		ChatService:    chatService,
		GitHub:         gh,
		Limiter:        limits.Registry,
		ChatLimit:      limits.Chat,
		AllowedOrigins: c.AllowedOrigins,
		Logger:         logger,
	})
}

// ------------------------------------------------------------------------------------------------------
func (c *Config) NewRouter(handler *handlers.Handler, limits api.Limits, logger *zap.Logger) *mux.Router {
	return api.SetupRouter(handler, limits, logger)
}

// ------------------------------------------------------------------------------------------------------
// NewHTTPServer leaves WriteTimeout unset: chat responses stream for as long
// as the gateway keeps producing tokens.
func (c *Config) NewHTTPServer(router *mux.Router) *http.Server {
	return &http.Server{
		Addr:              ":" + c.Port,
		Handler:           api.WithCORS(router, c.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
