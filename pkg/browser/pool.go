package browser

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Pool tracks open sessions by id so that separate calls (Temporal
// activities, API handlers) can address the same browser.
type Pool struct {
	factory  Factory
	sessions map[string]*pooledSession
	mu       sync.RWMutex
}

type pooledSession struct {
	Session
	createdAt time.Time
}

// NewPool creates a pool that opens sessions with factory
func NewPool(factory Factory) *Pool {
	return &Pool{
		factory:  factory,
		sessions: make(map[string]*pooledSession),
	}
}

// Open launches a new session and registers it
func (p *Pool) Open(ctx context.Context) (Session, error) {
	s, err := p.factory(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.sessions[s.ID()] = &pooledSession{Session: s, createdAt: time.Now()}
	p.mu.Unlock()

	return s, nil
}

// Get returns a registered session
func (p *Pool) Get(id string) (Session, error) {
	p.mu.RLock()
	s, ok := p.sessions[id]
	p.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("browser session not found: %s", id)
	}
	return s.Session, nil
}

// Close closes and forgets a session. Closing an unknown id is a no-op.
func (p *Pool) Close(id string) error {
	p.mu.Lock()
	s, ok := p.sessions[id]
	delete(p.sessions, id)
	p.mu.Unlock()

	if !ok {
		return nil // Already closed
	}
	return s.Close()
}

// Len returns the number of open sessions
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sessions)
}

// CloseIdle closes sessions opened more than maxAge ago and returns how many
// were closed. Workers call this to reap sessions orphaned by crashed runs.
func (p *Pool) CloseIdle(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	p.mu.Lock()
	var stale []*pooledSession
	for id, s := range p.sessions {
		if s.createdAt.Before(cutoff) {
			stale = append(stale, s)
			delete(p.sessions, id)
		}
	}
	p.mu.Unlock()

	for _, s := range stale {
		_ = s.Close()
	}
	return len(stale)
}

// CloseAll closes every open session
func (p *Pool) CloseAll() {
	p.mu.Lock()
	sessions := p.sessions
	p.sessions = make(map[string]*pooledSession)
	p.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}
}
