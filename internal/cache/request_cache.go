package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RequestCache remembers recently applied client request ids per game, so a
// retried action is not applied twice even across a coordinator restart
type RequestCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRequestCache creates a request id log that forgets ids after ttl
func NewRequestCache(client *redis.Client, ttl time.Duration) *RequestCache {
	return &RequestCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *RequestCache) key(gameID, requestID string) string {
	return fmt.Sprintf("game:%s:req:%s", gameID, requestID)
}

// Seen reports whether requestID was already applied for gameID
func (c *RequestCache) Seen(ctx context.Context, gameID, requestID string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(gameID, requestID)).Result()
	return n > 0, err
}

// Remember records requestID as applied at revision
func (c *RequestCache) Remember(ctx context.Context, gameID, requestID string, revision int64) error {
	return c.client.Set(ctx, c.key(gameID, requestID), revision, c.ttl).Err()
}
