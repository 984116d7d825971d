package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"songclash/internal/game"
	"songclash/internal/model"
)

// ErrCoordinatorClosed is returned for actions submitted after Close
var ErrCoordinatorClosed = errors.New("coordinator is closed")

// errSessionStopped tells a caller that raced the reaper to retry on a fresh session
var errSessionStopped = errors.New("session stopped")

const persistTimeout = 5 * time.Second

// RosterStore is the external store of games, teams, players and snapshots
type RosterStore interface {
	GetGame(ctx context.Context, gameID string) (*model.Game, error)
	TeamsForGame(ctx context.Context, gameID string) ([]*model.Team, error)
	GetPlayer(ctx context.Context, playerID string) (*model.Player, error)
	PersistSnapshot(ctx context.Context, gameID string, st *game.State) error
	LoadLatestSnapshot(ctx context.Context, gameID string) (*game.State, error)
}

// StateCache holds the live state outside the process
type StateCache interface {
	Set(ctx context.Context, st *game.State) error
	Get(ctx context.Context, gameID string) (*game.State, error)
}

// ScoreBoard mirrors team scores for leaderboard reads
type ScoreBoard interface {
	SetScores(ctx context.Context, gameID string, scores map[int64]int) error
}

// RequestLog remembers applied client request ids
type RequestLog interface {
	Seen(ctx context.Context, gameID, requestID string) (bool, error)
	Remember(ctx context.Context, gameID, requestID string, revision int64) error
}

// CoordinatorOptions configures a Coordinator. Zero values are replaced by defaults.
type CoordinatorOptions struct {
	Cache    StateCache
	Scores   ScoreBoard
	Requests RequestLog

	Now             func() time.Time
	IdleTimeout     time.Duration // sessions idle this long are dropped from memory
	RequestKeyTTL   time.Duration // lifetime of the in-memory request log
	PersistRetry    time.Duration // first delay before retrying a failed snapshot write
	PersistAttempts int
	Verbose         bool
}

// Coordinator owns the live state of every active game. Each game is served
// by one goroutine that applies actions strictly one at a time; different
// games run independently.
type Coordinator struct {
	roster      RosterStore
	opts        CoordinatorOptions
	broadcaster Broadcaster

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewCoordinator creates a coordinator over roster
func NewCoordinator(roster RosterStore, opts CoordinatorOptions) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RequestKeyTTL <= 0 {
		opts.RequestKeyTTL = 10 * time.Minute
	}
	if opts.Requests == nil {
		opts.Requests = newMemoryRequestLog(opts.RequestKeyTTL, opts.Now)
	}
	if opts.PersistRetry <= 0 {
		opts.PersistRetry = 500 * time.Millisecond
	}
	if opts.PersistAttempts <= 0 {
		opts.PersistAttempts = 8
	}

	c := &Coordinator{
		roster:   roster,
		opts:     opts,
		sessions: make(map[string]*session),
		done:     make(chan struct{}),
	}
	if opts.IdleTimeout > 0 {
		c.wg.Add(1)
		go c.reapIdle()
	}
	return c
}

// SetBroadcaster sets where committed snapshots are published
func (c *Coordinator) SetBroadcaster(b Broadcaster) {
	c.broadcaster = b
}

// SubmitAction applies a to the game's current state. On success the new
// state is committed, persisted and published before it is returned. A
// rejected action returns an *game.ActionError and changes nothing.
func (c *Coordinator) SubmitAction(ctx context.Context, gameID string, a game.Action) (*game.State, error) {
	return c.do(ctx, gameID, &request{ctx: ctx, action: a})
}

// State returns the current authoritative snapshot of a game
func (c *Coordinator) State(ctx context.Context, gameID string) (*game.State, error) {
	return c.do(ctx, gameID, &request{ctx: ctx, read: true})
}

// Close stops every session and waits for pending snapshot retries to give up
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	c.wg.Wait()
}

func (c *Coordinator) do(ctx context.Context, gameID string, req *request) (*game.State, error) {
	req.reply = make(chan result, 1)
	for {
		s, err := c.session(gameID)
		if err != nil {
			return nil, err
		}

		select {
		case s.reqs <- req:
		case <-s.stop:
			// reaped between lookup and send; get a fresh session
			continue
		case <-c.done:
			return nil, ErrCoordinatorClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		select {
		case res := <-req.reply:
			if res.err == errSessionStopped {
				continue
			}
			return res.state, res.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *Coordinator) session(gameID string) (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrCoordinatorClosed
	}
	s, ok := c.sessions[gameID]
	if !ok {
		s = newSession(gameID)
		c.sessions[gameID] = s
		c.wg.Add(1)
		go c.run(s)
	}
	s.touch(c.opts.Now())
	return s, nil
}

func (c *Coordinator) run(s *session) {
	defer c.wg.Done()
	for {
		select {
		case req := <-s.reqs:
			select {
			case <-s.stop:
				// a newer session may already own the game
				req.reply <- result{err: errSessionStopped}
				continue
			default:
			}
			st, err := c.handle(s, req)
			s.touch(c.opts.Now())
			req.reply <- result{state: st, err: err}
		case <-s.stop:
			return
		case <-c.done:
			return
		}
	}
}

func (c *Coordinator) handle(s *session, req *request) (*game.State, error) {
	ctx := req.ctx
	s.touch(c.opts.Now())

	if s.state == nil {
		st, err := c.load(ctx, s.gameID)
		if err != nil {
			return nil, err
		}
		s.state = st
		s.committed.Store(st.Revision)
		s.saved(st.Revision)
	}
	if req.read {
		return s.state.Clone(), nil
	}

	a := req.action
	if a.RequestID != "" {
		seen, err := c.opts.Requests.Seen(ctx, s.gameID, a.RequestID)
		if err != nil {
			log.Printf("Request log lookup failed for game %s: %v", s.gameID, err)
		} else if seen {
			c.debugf("Game %s: request %s already applied", s.gameID, a.RequestID)
			return s.state.Clone(), nil
		}
	}

	tctx := game.Context{Now: c.opts.Now()}
	if a.Type == game.ActionStartGame && s.state.Phase == game.PhaseLobby {
		teams, err := c.roster.TeamsForGame(ctx, s.gameID)
		if err != nil {
			return nil, fmt.Errorf("load teams for game %s: %w", s.gameID, err)
		}
		tctx.Roster = toRoster(teams)
	}

	next, err := game.Transition(s.state, a, tctx)
	if err != nil {
		c.debugf("Game %s: rejected %s: %v", s.gameID, a.Type, err)
		return nil, err
	}
	s.state = next
	s.committed.Store(next.Revision)
	c.debugf("Game %s: %s committed at revision %d", s.gameID, a.Type, next.Revision)

	c.commit(s, a, next)
	return next.Clone(), nil
}

// commit makes a new state durable and visible. The in-memory state is
// already current; failures here are logged and retried, never rolled back.
func (c *Coordinator) commit(s *session, a game.Action, st *game.State) {
	gameID := s.gameID
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if a.RequestID != "" {
		if err := c.opts.Requests.Remember(ctx, gameID, a.RequestID, st.Revision); err != nil {
			log.Printf("Failed to record request %s for game %s: %v", a.RequestID, gameID, err)
		}
	}

	if c.opts.Cache != nil {
		if err := c.opts.Cache.Set(ctx, st); err != nil {
			log.Printf("Failed to cache state of game %s: %v", gameID, err)
		}
	}

	if err := c.roster.PersistSnapshot(ctx, gameID, st); err != nil {
		log.Printf("Failed to persist snapshot %d of game %s: %v", st.Revision, gameID, err)
		c.retryPersist(s, st.Clone())
	} else {
		s.saved(st.Revision)
	}

	if c.opts.Scores != nil && (a.Type == game.ActionStartGame || a.Type == game.ActionEndRound) {
		if err := c.opts.Scores.SetScores(ctx, gameID, st.Scores); err != nil {
			log.Printf("Failed to update leaderboard of game %s: %v", gameID, err)
		}
	}

	if c.broadcaster != nil {
		if err := c.broadcaster.Publish(ctx, gameID, st.Clone()); err != nil {
			log.Printf("Failed to publish snapshot %d of game %s: %v", st.Revision, gameID, err)
		}
	}
}

// retryPersist keeps writing st with backoff until it succeeds. Snapshot
// writes are last-write-wins by revision, so a retry never clobbers a newer one.
// Until some revision at least as new as st is stored the session stays in
// memory; after the last attempt it waits for the next commit to persist.
func (c *Coordinator) retryPersist(s *session, st *game.State) {
	gameID := s.gameID
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		delay := c.opts.PersistRetry
		for attempt := 1; attempt <= c.opts.PersistAttempts; attempt++ {
			select {
			case <-time.After(delay):
			case <-c.done:
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			err := c.roster.PersistSnapshot(ctx, gameID, st)
			cancel()
			if err == nil {
				s.saved(st.Revision)
				log.Printf("Snapshot %d of game %s persisted after %d retries", st.Revision, gameID, attempt)
				return
			}
			delay *= 2
		}
		log.Printf("Giving up on snapshot %d of game %s", st.Revision, gameID)
	}()
}

// load finds the recovery point of a game: the newest of the cached and the
// persisted snapshot, or a fresh lobby when the game never started.
func (c *Coordinator) load(ctx context.Context, gameID string) (*game.State, error) {
	g, err := c.roster.GetGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("load game %s: %w", gameID, err)
	}
	if g == nil {
		return nil, game.Integrity(fmt.Sprintf("game %s does not exist", gameID), nil)
	}

	stored, err := c.roster.LoadLatestSnapshot(ctx, gameID)
	if errors.Is(err, game.ErrValidation) {
		return nil, game.Integrity(fmt.Sprintf("stored snapshot of game %s is corrupt", gameID), err)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot of game %s: %w", gameID, err)
	}

	var cached *game.State
	if c.opts.Cache != nil {
		cached, err = c.opts.Cache.Get(ctx, gameID)
		if err != nil {
			log.Printf("Ignoring cached state of game %s: %v", gameID, err)
			cached = nil
		}
	}

	st := stored
	if cached != nil && (st == nil || cached.Revision > st.Revision) {
		st = cached
	}
	if st == nil {
		return game.NewState(gameID), nil
	}
	if st.GameID != gameID {
		return nil, game.Integrity(fmt.Sprintf("snapshot for game %s belongs to %s", gameID, st.GameID), nil)
	}
	log.Printf("Game %s restored at revision %d (round %d, %s)", gameID, st.Revision, st.Round, st.Phase)
	return st, nil
}

func (c *Coordinator) reapIdle() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := c.opts.Now().Add(-c.opts.IdleTimeout)
			c.mu.Lock()
			for id, s := range c.sessions {
				if !s.idleSince(cutoff) {
					continue
				}
				if s.unsaved() {
					c.debugf("Game %s: keeping idle session until revision %d is persisted", id, s.committed.Load())
					continue
				}
				delete(c.sessions, id)
				close(s.stop)
				c.debugf("Game %s: session reaped after inactivity", id)
			}
			c.mu.Unlock()
		case <-c.done:
			return
		}
	}
}

func (c *Coordinator) debugf(format string, args ...any) {
	if c.opts.Verbose {
		log.Printf(format, args...)
	}
}

func toRoster(teams []*model.Team) []game.TeamRoster {
	out := make([]game.TeamRoster, 0, len(teams))
	for _, t := range teams {
		out = append(out, game.TeamRoster{TeamID: t.ID, Members: t.Members})
	}
	return out
}
