package service

import (
	"context"
	"sync/atomic"
	"time"

	"songclash/internal/game"
)

type request struct {
	ctx    context.Context
	action game.Action
	read   bool
	reply  chan result
}

type result struct {
	state *game.State
	err   error
}

// session is the single writer of one game's state. state is only touched
// by the session's goroutine.
type session struct {
	gameID     string
	state      *game.State
	reqs       chan *request
	stop       chan struct{}
	lastActive atomic.Int64

	committed atomic.Int64 // newest revision held in memory
	durable   atomic.Int64 // newest revision the snapshot store has acknowledged
}

func newSession(gameID string) *session {
	return &session{
		gameID: gameID,
		reqs:   make(chan *request),
		stop:   make(chan struct{}),
	}
}

func (s *session) touch(now time.Time) {
	s.lastActive.Store(now.UnixNano())
}

func (s *session) idleSince(cutoff time.Time) bool {
	return s.lastActive.Load() < cutoff.UnixNano()
}

// saved records that revision reached the snapshot store. Retries finish out
// of order, so durable only moves forward.
func (s *session) saved(revision int64) {
	for {
		cur := s.durable.Load()
		if revision <= cur || s.durable.CompareAndSwap(cur, revision) {
			return
		}
	}
}

// unsaved reports whether dropping the session would lose a commit
func (s *session) unsaved() bool {
	return s.committed.Load() > s.durable.Load()
}
