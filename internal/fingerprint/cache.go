package fingerprint

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "fingerprint:resolve:"

// CachedProvider is a read-through Redis cache in front of a Provider. The
// provider issues stable identifiers per identity, so a short-lived cache of
// resolutions keyed by the signal digest is safe and keeps hot callers off
// the provider's rate limits.
//
// Cache failures are never fatal: a broken Redis degrades to direct provider
// calls.
type CachedProvider struct {
	next   Provider
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedProvider wraps next with a Redis cache.
func NewCachedProvider(next Provider, client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *CachedProvider {
	return &CachedProvider{next: next, client: client, ttl: ttl, logger: logger}
}

func (p *CachedProvider) Resolve(ctx context.Context, signals Signals) (string, error) {
	key := cacheKeyPrefix + signals.Digest()

	visitorID, err := p.client.Get(ctx, key).Result()
	if err == nil && visitorID != "" {
		return visitorID, nil
	}
	if err != nil && err != redis.Nil {
		p.logger.WarnContext(ctx, "fingerprint cache read failed", "error", err.Error())
	}

	visitorID, err = p.next.Resolve(ctx, signals)
	if err != nil {
		return "", err
	}

	if err := p.client.Set(ctx, key, visitorID, p.ttl).Err(); err != nil {
		p.logger.WarnContext(ctx, "fingerprint cache write failed", "error", err.Error())
	}
	return visitorID, nil
}
