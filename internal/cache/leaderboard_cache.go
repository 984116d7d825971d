package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// LeaderboardCache handles Redis ZSET operations for team scores
type LeaderboardCache interface {
	SetScores(ctx context.Context, gameID string, scores map[int64]int) error
	GetTop(ctx context.Context, gameID string, limit int) ([]LeaderboardEntry, error)
	GetRank(ctx context.Context, gameID string, teamID int64) (int64, error)
}

// LeaderboardEntry represents a single leaderboard entry
type LeaderboardEntry struct {
	TeamID int64  `json:"teamId"`
	Name   string `json:"name,omitempty"`
	Score  int    `json:"score"`
	Rank   int    `json:"rank"`
}

type leaderboardCache struct {
	client *redis.Client
}

// NewLeaderboardCache creates a new leaderboard cache
func NewLeaderboardCache(client *redis.Client) LeaderboardCache {
	return &leaderboardCache{
		client: client,
	}
}

func (c *leaderboardCache) key(gameID string) string {
	return fmt.Sprintf("game:%s:lb", gameID)
}

func (c *leaderboardCache) SetScores(ctx context.Context, gameID string, scores map[int64]int) error {
	if len(scores) == 0 {
		return nil
	}
	members := make([]redis.Z, 0, len(scores))
	for team, score := range scores {
		members = append(members, redis.Z{
			Score:  float64(score),
			Member: strconv.FormatInt(team, 10),
		})
	}
	return c.client.ZAdd(ctx, c.key(gameID), members...).Err()
}

func (c *leaderboardCache) GetTop(ctx context.Context, gameID string, limit int) ([]LeaderboardEntry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, c.key(gameID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(results))
	for i, z := range results {
		member, _ := z.Member.(string)
		team, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, LeaderboardEntry{
			TeamID: team,
			Score:  int(z.Score),
			Rank:   i + 1,
		})
	}
	return entries, nil
}

func (c *leaderboardCache) GetRank(ctx context.Context, gameID string, teamID int64) (int64, error) {
	rank, err := c.client.ZRevRank(ctx, c.key(gameID), strconv.FormatInt(teamID, 10)).Result()
	if err == redis.Nil {
		return -1, nil
	}
	return rank + 1, err // 1-indexed
}
