package cache

import (
	"context"
	"fmt"
	"time"

	"songclash/internal/game"

	"github.com/redis/go-redis/v9"
)

// StateCache keeps the live state of every active game in Redis so any
// instance can serve re-sync reads without touching MongoDB
type StateCache interface {
	Set(ctx context.Context, st *game.State) error
	Get(ctx context.Context, gameID string) (*game.State, error)
	Delete(ctx context.Context, gameID string) error
}

type stateCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStateCache creates a new state cache
func NewStateCache(client *redis.Client) StateCache {
	return &stateCache{
		client: client,
		ttl:    24 * time.Hour,
	}
}

func (c *stateCache) key(gameID string) string {
	return fmt.Sprintf("game:%s:state", gameID)
}

// setIfNewer only overwrites a cached state with a lower revision
var setIfNewer = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur then
	local rev = cjson.decode(cur)["revision"]
	if rev and tonumber(rev) >= tonumber(ARGV[2]) then
		return 0
	end
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
return 1
`)

func (c *stateCache) Set(ctx context.Context, st *game.State) error {
	data, err := game.EncodeState(st)
	if err != nil {
		return err
	}
	return setIfNewer.Run(ctx, c.client, []string{c.key(st.GameID)},
		data, st.Revision, c.ttl.Milliseconds()).Err()
}

func (c *stateCache) Get(ctx context.Context, gameID string) (*game.State, error) {
	data, err := c.client.Get(ctx, c.key(gameID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return game.DecodeState(data)
}

func (c *stateCache) Delete(ctx context.Context, gameID string) error {
	return c.client.Del(ctx, c.key(gameID)).Err()
}
