package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"songclash/internal/game"
	"songclash/internal/model"
)

var t0 = time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

type fakeRoster struct {
	mu        sync.Mutex
	games     map[string]*model.Game
	teams     map[string][]*model.Team
	snapshots map[string]*game.State
	loadErr   error
	failSaves int // number of PersistSnapshot calls that fail before one succeeds
	saves     int
}

func newFakeRoster() *fakeRoster {
	return &fakeRoster{
		games:     make(map[string]*model.Game),
		teams:     make(map[string][]*model.Team),
		snapshots: make(map[string]*game.State),
	}
}

// addGame registers a game whose teams each have two members
func (r *fakeRoster) addGame(id string, teamIDs ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[id] = &model.Game{ID: id, Slug: "ABCD", CreatedAt: t0}
	for _, tid := range teamIDs {
		r.teams[id] = append(r.teams[id], &model.Team{ID: tid, GameID: id, Members: []string{"a", "b"}})
	}
}

func (r *fakeRoster) GetGame(_ context.Context, gameID string) (*model.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.games[gameID], nil
}

func (r *fakeRoster) TeamsForGame(_ context.Context, gameID string) ([]*model.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.teams[gameID], nil
}

func (r *fakeRoster) GetPlayer(context.Context, string) (*model.Player, error) {
	return nil, nil
}

func (r *fakeRoster) PersistSnapshot(_ context.Context, gameID string, st *game.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.failSaves > 0 {
		r.failSaves--
		return errors.New("mongo unavailable")
	}
	if cur := r.snapshots[gameID]; cur == nil || cur.Revision < st.Revision {
		r.snapshots[gameID] = st.Clone()
	}
	return nil
}

func (r *fakeRoster) LoadLatestSnapshot(_ context.Context, gameID string) (*game.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	if st := r.snapshots[gameID]; st != nil {
		return st.Clone(), nil
	}
	return nil, nil
}

func (r *fakeRoster) setFailSaves(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failSaves = n
}

func (r *fakeRoster) snapshot(gameID string) *game.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshots[gameID]
}

type recordingBroadcaster struct {
	mu        sync.Mutex
	published []*game.State
}

func (b *recordingBroadcaster) Publish(_ context.Context, _ string, st *game.State) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, st)
	return nil
}

func (b *recordingBroadcaster) revisions() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]int64, 0, len(b.published))
	for _, st := range b.published {
		out = append(out, st.Revision)
	}
	return out
}

type fakeCache struct {
	mu     sync.Mutex
	states map[string]*game.State
}

func (c *fakeCache) Set(_ context.Context, st *game.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.states == nil {
		c.states = make(map[string]*game.State)
	}
	c.states[st.GameID] = st.Clone()
	return nil
}

func (c *fakeCache) Get(_ context.Context, gameID string) (*game.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st := c.states[gameID]; st != nil {
		return st.Clone(), nil
	}
	return nil, nil
}

type fakeScores struct {
	mu     sync.Mutex
	scores map[int64]int
}

func (s *fakeScores) SetScores(_ context.Context, _ string, scores map[int64]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores = scores
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
