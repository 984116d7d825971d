// Package client is the receiving end of a game: a revision-guarded copy of
// the authoritative state and the socket that keeps it current.
package client

import (
	"log"
	"sync"

	"songclash/internal/game"
)

// Store holds the newest snapshot a client has seen. It only moves forward:
// snapshots that are stale, duplicated, invalid or for another game are dropped.
type Store struct {
	gameID string

	// notify is held across an update and its observer calls, so observers
	// see accepted snapshots in revision order even when Apply is concurrent.
	notify sync.Mutex

	mu     sync.RWMutex
	state  *game.State
	subs   map[int]func(*game.State)
	nextID int
}

// NewStore creates an empty store for gameID. An empty gameID accepts the
// first game it sees and sticks to it.
func NewStore(gameID string) *Store {
	return &Store{
		gameID: gameID,
		subs:   make(map[int]func(*game.State)),
	}
}

// Apply installs st if it is newer than the held snapshot and reports
// whether it did. Observers are called after the store is updated and must
// not call Apply themselves.
func (s *Store) Apply(st *game.State) bool {
	if st == nil {
		return false
	}
	if err := st.Check(); err != nil {
		log.Printf("Dropping invalid snapshot: %v", err)
		return false
	}

	s.notify.Lock()
	defer s.notify.Unlock()

	s.mu.Lock()
	if s.gameID == "" {
		s.gameID = st.GameID
	}
	if st.GameID != s.gameID || (s.state != nil && st.Revision <= s.state.Revision) {
		s.mu.Unlock()
		return false
	}
	s.state = st.Clone()
	subs := make([]func(*game.State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(st.Clone())
	}
	return true
}

// ApplyJSON decodes a wire snapshot and applies it
func (s *Store) ApplyJSON(data []byte) (bool, error) {
	st, err := game.DecodeState(data)
	if err != nil {
		return false, err
	}
	return s.Apply(st), nil
}

// State returns a copy of the held snapshot, or nil before the first one
func (s *Store) State() *game.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Revision returns the revision of the held snapshot, 0 when empty
func (s *Store) Revision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return 0
	}
	return s.state.Revision
}

// Subscribe calls fn with every snapshot the store accepts from now on
func (s *Store) Subscribe(fn func(*game.State)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}
