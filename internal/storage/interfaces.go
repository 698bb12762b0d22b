package storage

import (
	"context"
	"time"
)

// CacheStore defines the interface for caching upstream payloads
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}
