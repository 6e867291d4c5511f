// Package cache abstracts the optional Redis layer used for batch summaries.
// Deployments without Redis run on the noop implementation and every read is
// simply a miss.
package cache

import (
	"context"
	"time"
)

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type NoopCache struct{}

var _ Cache = (*NoopCache)(nil)

func NewNoop() *NoopCache { return &NoopCache{} }

func (*NoopCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (*NoopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (*NoopCache) Delete(context.Context, string) error { return nil }
