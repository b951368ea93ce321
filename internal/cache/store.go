package cache

import (
	"context"
	"time"
)

// Store represents a TTL-keyed cache shared across the application.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
	// ListPrefix returns the live (unexpired) keys sharing the supplied prefix.
	ListPrefix(ctx context.Context, prefix string) ([]string, error)
}
