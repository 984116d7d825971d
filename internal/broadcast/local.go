package broadcast

import (
	"context"
	"sync"

	"songclash/internal/game"
)

// Local is an in-process Channel
type Local struct {
	mu     sync.RWMutex
	subs   map[string]map[int]Handler
	nextID int
	sink   ActionSink
}

// NewLocal creates an in-process channel
func NewLocal() *Local {
	return &Local{subs: make(map[string]map[int]Handler)}
}

// Publish hands st to every subscriber of the game. Handlers run on the
// caller's goroutine and must not block.
func (l *Local) Publish(_ context.Context, gameID string, st *game.State) error {
	l.mu.RLock()
	handlers := make([]Handler, 0, len(l.subs[gameID]))
	for _, h := range l.subs[gameID] {
		handlers = append(handlers, h)
	}
	l.mu.RUnlock()

	for _, h := range handlers {
		h(st.Clone())
	}
	return nil
}

func (l *Local) Subscribe(gameID string, h Handler) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.subs[gameID] == nil {
		l.subs[gameID] = make(map[int]Handler)
	}
	l.nextID++
	id := l.nextID
	l.subs[gameID][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.subs[gameID], id)
			if len(l.subs[gameID]) == 0 {
				delete(l.subs, gameID)
			}
		})
	}, nil
}

func (l *Local) SendAction(ctx context.Context, gameID string, a game.Action) (*game.State, error) {
	l.mu.RLock()
	sink := l.sink
	l.mu.RUnlock()

	if sink == nil {
		return nil, ErrNoCoordinator
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return sink.SubmitAction(ctx, gameID, a)
}

func (l *Local) Bind(sink ActionSink) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink = sink
	return nil
}

func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = make(map[string]map[int]Handler)
	l.sink = nil
	return nil
}
