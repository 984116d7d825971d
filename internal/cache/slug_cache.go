package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// SlugCache reserves the short codes of active games
type SlugCache interface {
	Reserve(ctx context.Context, slug, gameID string) (bool, error)
	Resolve(ctx context.Context, slug string) (string, error)
	Release(ctx context.Context, slug string) error
}

type slugCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSlugCache creates a new slug cache
func NewSlugCache(client *redis.Client) SlugCache {
	return &slugCache{
		client: client,
		ttl:    24 * time.Hour, // Games expire after 24h
	}
}

func (c *slugCache) key(slug string) string {
	return fmt.Sprintf("slug:%s", strings.ToUpper(slug))
}

// Reserve claims slug for gameID. It returns false if the slug is in use.
func (c *slugCache) Reserve(ctx context.Context, slug, gameID string) (bool, error) {
	return c.client.SetNX(ctx, c.key(slug), gameID, c.ttl).Result()
}

// Resolve returns the game id holding slug, or "" if it is free
func (c *slugCache) Resolve(ctx context.Context, slug string) (string, error) {
	id, err := c.client.Get(ctx, c.key(slug)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return id, err
}

func (c *slugCache) Release(ctx context.Context, slug string) error {
	return c.client.Del(ctx, c.key(slug)).Err()
}
