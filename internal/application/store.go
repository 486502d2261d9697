package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mpriessner/ai-lab-assistent-v1/internal/domain"
)

// SessionStore holds live sessions in memory. Sessions are never persisted;
// idle ones are swept after the configured TTL.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	ttl      time.Duration
	logger   *slog.Logger
}

type sessionEntry struct {
	mu    sync.Mutex
	state *domain.Session
}

func NewSessionStore(ttl time.Duration, logger *slog.Logger) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*sessionEntry),
		ttl:      ttl,
		logger:   logger,
	}
}

// Create registers a fresh empty session and returns its ID.
func (st *SessionStore) Create() string {
	id := uuid.NewString()

	st.mu.Lock()
	st.sessions[id] = &sessionEntry{state: domain.NewSession(id)}
	st.mu.Unlock()

	st.logger.Info("session created", "session_id", id)
	return id
}

// With runs fn with exclusive access to the session's state. All state
// transitions go through here; the entry lock is never held across network
// calls.
func (st *SessionStore) With(id string, fn func(s *domain.Session) error) error {
	st.mu.Lock()
	e, ok := st.sessions[id]
	st.mu.Unlock()
	if !ok {
		return ErrUnknownSession
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.state)
}

// StartSweeper prunes idle sessions in the background until ctx is done.
func (st *SessionStore) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st.sweep()
			}
		}
	}()
}

func (st *SessionStore) sweep() {
	cutoff := time.Now().Add(-st.ttl)

	st.mu.Lock()
	defer st.mu.Unlock()

	for id, e := range st.sessions {
		e.mu.Lock()
		idle := e.state.LastActive.Before(cutoff) && e.state.Busy == domain.ActivityNone && !e.state.BreakdownPending
		e.mu.Unlock()

		if idle {
			delete(st.sessions, id)
			st.logger.Info("session expired", "session_id", id)
		}
	}
}

// Len reports the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
