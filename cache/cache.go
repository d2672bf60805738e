package cache

import (
	"context"
	"time"
)

// Cache is a string key/value store with per-key expiry. The bus uses it to
// remember de-duplication keys.
type Cache interface {
	Set(ctx context.Context, key string, value string, expiry time.Duration) error
	// SetNX stores value only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value string, expiry time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}
