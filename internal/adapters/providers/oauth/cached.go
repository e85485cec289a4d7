package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hospitalcare/appointments/internal/domain/providers"
)

// Cached serves a token remembered in the shared cache. Placed first in a
// chain it lets replicas reuse a token obtained by any one of them.
type Cached struct {
	cache providers.CacheProvider
	key   string
	clock providers.Clock
}

var _ providers.TokenSink = (*Cached)(nil)

// NewCached returns nil when no cache is configured
func NewCached(cache providers.CacheProvider, key string, clock providers.Clock) providers.TokenProvider {
	if cache == nil {
		return nil
	}
	return &Cached{cache: cache, key: "oauth:token:" + key, clock: clock}
}

func (c *Cached) Name() string { return "cache" }

func (c *Cached) Token(ctx context.Context) (*providers.Token, error) {
	data, err := c.cache.Get(ctx, c.key)
	if err != nil {
		if errors.Is(err, providers.ErrCacheMiss) {
			return nil, errors.New("no cached token")
		}
		return nil, err
	}

	var token providers.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to decode cached token: %w", err)
	}
	if !token.Valid(c.clock.Now()) {
		return nil, errors.New("cached token expired")
	}
	return &token, nil
}

// Store caches token until shortly before it expires
func (c *Cached) Store(ctx context.Context, token *providers.Token) error {
	ttl := time.Hour
	if !token.ExpiresAt.IsZero() {
		ttl = token.ExpiresAt.Sub(c.clock.Now()) - time.Minute
	}
	if ttl < time.Second {
		return nil
	}

	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return c.cache.Set(ctx, c.key, data, int(ttl.Seconds()))
}
