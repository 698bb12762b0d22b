package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port     string
	LogLevel string

	LLMAPIKey       string
	LLMGatewayURL   string
	Model           string
	MaxTokens       int
	MaxInputTokens  int
	MaxExchanges    int
	UpstreamTimeout time.Duration
	PersonaFile     string

	GitHubToken   string
	GitHubUser    string
	GitHubAPIURL  string
	GitHubPerPage int

	RedisAddr     string
	RedisPassword string

	ChatRateLimit    int
	ChatRateWindow   time.Duration
	GitHubRateLimit  int
	GitHubRateWindow time.Duration
	SweepInterval    time.Duration

	AllowedOrigins []string
}

// ------------------------------------------------------------------------------------------------------
func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{
		Port:     getEnv("PORT", "8000"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		LLMAPIKey:       getEnv("LLM_API_KEY", ""),
		LLMGatewayURL:   getEnv("LLM_GATEWAY_URL", "https://ai.gateway.lovable.dev/v1/chat/completions"),
		Model:           getEnv("MODEL", "google/gemini-2.5-flash"),
		MaxTokens:       getEnvAsInt("MAX_TOKENS", 1024),
		MaxInputTokens:  getEnvAsInt("MAX_INPUT_TOKENS", 8000),
		MaxExchanges:    getEnvAsInt("MAX_EXCHANGES", 20),
		UpstreamTimeout: getEnvAsDuration("UPSTREAM_TIMEOUT", 10*time.Second),
		PersonaFile:     getEnv("PERSONA_FILE", ""),

		GitHubToken:   getEnv("GITHUB_TOKEN", ""),
		GitHubUser:    getEnv("GITHUB_USER", ""),
		GitHubAPIURL:  getEnv("GITHUB_API_URL", "https://api.github.com"),
		GitHubPerPage: getEnvAsInt("GITHUB_PER_PAGE", 30),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		ChatRateLimit:    getEnvAsInt("CHAT_RATE_LIMIT", 20),
		ChatRateWindow:   getEnvAsDuration("CHAT_RATE_WINDOW", time.Minute),
		GitHubRateLimit:  getEnvAsInt("GITHUB_RATE_LIMIT", 30),
		GitHubRateWindow: getEnvAsDuration("GITHUB_RATE_WINDOW", time.Minute),
		SweepInterval:    getEnvAsDuration("SWEEP_INTERVAL", time.Minute),

		AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS"),
	}

	if cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("LLM_API_KEY environment variable is required")
	}
	if cfg.ChatRateLimit <= 0 || cfg.GitHubRateLimit <= 0 {
		return nil, fmt.Errorf("rate limits must be positive")
	}

	return cfg, nil
}

// ------------------------------------------------------------------------------------------------------
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ------------------------------------------------------------------------------------------------------
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// ------------------------------------------------------------------------------------------------------
// getEnvAsDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if seconds, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(seconds) * time.Second
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

// ------------------------------------------------------------------------------------------------------
func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
