// Package cache defines the result cache used by nearby searches.
package cache

import (
	"context"
	"time"
)

type Interface interface {
	// Name is the driver label used in metrics and logs.
	Name() string
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// PurgePrefix removes every key starting with prefix and reports how many.
	PurgePrefix(ctx context.Context, prefix string) (int, error)
}
