package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

// cachedGateway caches vectors by content hash. Safe because the gateway
// contract requires idempotent embedding for identical text.
type cachedGateway struct {
	next  Gateway
	cache *expirable.LRU[string, []float32]
}

// WithCache wraps a Gateway with an expirable LRU cache. A size or TTL of
// zero disables caching and returns the gateway unchanged.
func WithCache(gw Gateway, size int, ttl time.Duration) Gateway {
	if gw == nil || size <= 0 || ttl <= 0 {
		return gw
	}
	return &cachedGateway{
		next:  gw,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

func (c *cachedGateway) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(c.next.Model(), text)
	if vec, ok := c.cache.Get(key); ok {
		logging.From(ctx).Debug("embedding cache hit", "model", c.next.Model())
		return cloneVector(vec), nil
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, cloneVector(vec))
	return vec, nil
}

func (c *cachedGateway) Model() string {
	return c.next.Model()
}

func (c *cachedGateway) Dimension() int {
	return c.next.Dimension()
}

func cacheKey(model, text string) string {
	h := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(h[:])
}

func cloneVector(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
