package cache

import (
	"context"
	"time"
)

// Cache stores JSON-encodable values by key. A miss returns ok=false with a nil error.
type Cache[T any] interface {
	Get(ctx context.Context, key string) (*T, bool, error)
	Set(ctx context.Context, key string, value *T, ttl time.Duration) error
}

type Noop[T any] struct{}

func (Noop[T]) Get(_ context.Context, _ string) (*T, bool, error) {
	return nil, false, nil
}

func (Noop[T]) Set(_ context.Context, _ string, _ *T, _ time.Duration) error {
	return nil
}
