package service

import (
	"context"
	"sync"
	"time"
)

// memoryRequestLog is the in-process request id log used when no shared
// store is configured
type memoryRequestLog struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time // gameID/requestID -> expiry
}

func newMemoryRequestLog(ttl time.Duration, now func() time.Time) *memoryRequestLog {
	return &memoryRequestLog{
		ttl:  ttl,
		now:  now,
		seen: make(map[string]time.Time),
	}
}

func (l *memoryRequestLog) Seen(_ context.Context, gameID, requestID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	exp, ok := l.seen[gameID+"/"+requestID]
	return ok && l.now().Before(exp), nil
}

func (l *memoryRequestLog) Remember(_ context.Context, gameID, requestID string, _ int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, exp := range l.seen {
		if !now.Before(exp) {
			delete(l.seen, k)
		}
	}
	l.seen[gameID+"/"+requestID] = now.Add(l.ttl)
	return nil
}
