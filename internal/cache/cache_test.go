package cache

import (
	"context"
	"reflect"
	"testing"
	"time"

	"songclash/internal/game"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func stateAt(rev int64) *game.State {
	s := game.NewState("g1")
	s.Revision = rev
	return s
}

func TestStateCacheKeepsHighestRevision(t *testing.T) {
	ctx := context.Background()
	_, client := newRedis(t)
	c := NewStateCache(client)

	if got, err := c.Get(ctx, "g1"); err != nil || got != nil {
		t.Fatalf("empty cache: got %v, %v", got, err)
	}

	if err := c.Set(ctx, stateAt(3)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.Set(ctx, stateAt(2)); err != nil {
		t.Fatalf("set stale: %v", err)
	}

	got, err := c.Get(ctx, "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Revision != 3 {
		t.Fatalf("revision = %d, want 3", got.Revision)
	}

	if err := c.Set(ctx, stateAt(4)); err != nil {
		t.Fatalf("set newer: %v", err)
	}
	if got, _ := c.Get(ctx, "g1"); got.Revision != 4 {
		t.Fatalf("revision = %d, want 4", got.Revision)
	}
}

func TestStateCacheRejectsCorruptEntry(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	c := NewStateCache(client)

	mr.Set("game:g1:state", `{"phase":"LOBBY"}`)
	if _, err := c.Get(ctx, "g1"); err == nil {
		t.Fatal("expected validation error for corrupt entry")
	}
}

func TestSlugCacheReserve(t *testing.T) {
	ctx := context.Background()
	_, client := newRedis(t)
	c := NewSlugCache(client)

	ok, err := c.Reserve(ctx, "abcd", "g1")
	if err != nil || !ok {
		t.Fatalf("first reserve: %v, %v", ok, err)
	}
	ok, err = c.Reserve(ctx, "ABCD", "g2")
	if err != nil || ok {
		t.Fatalf("second reserve should fail: %v, %v", ok, err)
	}

	id, err := c.Resolve(ctx, "AbCd")
	if err != nil || id != "g1" {
		t.Fatalf("resolve: %q, %v", id, err)
	}

	if err := c.Release(ctx, "abcd"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if id, _ := c.Resolve(ctx, "ABCD"); id != "" {
		t.Fatalf("slug still held by %q", id)
	}
}

func TestLeaderboard(t *testing.T) {
	ctx := context.Background()
	_, client := newRedis(t)
	lb := NewLeaderboardCache(client)

	if err := lb.SetScores(ctx, "g1", map[int64]int{1: 1, 2: 3, 3: 2}); err != nil {
		t.Fatalf("set scores: %v", err)
	}

	top, err := lb.GetTop(ctx, "g1", 10)
	if err != nil {
		t.Fatalf("get top: %v", err)
	}
	want := []LeaderboardEntry{
		{TeamID: 2, Score: 3, Rank: 1},
		{TeamID: 3, Score: 2, Rank: 2},
		{TeamID: 1, Score: 1, Rank: 3},
	}
	if !reflect.DeepEqual(top, want) {
		t.Fatalf("top = %+v", top)
	}

	rank, err := lb.GetRank(ctx, "g1", 3)
	if err != nil || rank != 2 {
		t.Fatalf("rank = %d, %v", rank, err)
	}
	rank, err = lb.GetRank(ctx, "g1", 9)
	if err != nil || rank != -1 {
		t.Fatalf("missing team rank = %d, %v", rank, err)
	}
}

func TestRequestCacheExpires(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	c := NewRequestCache(client, time.Minute)

	if seen, _ := c.Seen(ctx, "g1", "r1"); seen {
		t.Fatal("unexpected hit")
	}
	if err := c.Remember(ctx, "g1", "r1", 5); err != nil {
		t.Fatalf("remember: %v", err)
	}
	if seen, _ := c.Seen(ctx, "g1", "r1"); !seen {
		t.Fatal("request id not remembered")
	}
	if seen, _ := c.Seen(ctx, "g2", "r1"); seen {
		t.Fatal("request ids leak across games")
	}

	mr.FastForward(2 * time.Minute)
	if seen, _ := c.Seen(ctx, "g1", "r1"); seen {
		t.Fatal("request id did not expire")
	}
}
