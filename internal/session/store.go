// Package session keeps per-conversation chat history in memory.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/docent-ai/docent/internal/models"
)

// Store holds conversation turns keyed by session id. Sessions are created
// lazily on first append, capped in length and count, and expire after a TTL
// of inactivity. All methods are safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*entry
	maxTurns    int
	maxSessions int
	ttl         time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

type entry struct {
	turns    []models.Turn
	lastSeen time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates a session store. maxTurns bounds history length per
// session, maxSessions bounds the session count, ttl expires idle sessions.
// Zero or negative values disable the corresponding bound.
func NewStore(maxTurns, maxSessions int, ttl time.Duration, opts ...Option) *Store {
	s := &Store{
		sessions:    make(map[string]*entry),
		maxTurns:    maxTurns,
		maxSessions: maxSessions,
		ttl:         ttl,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// History returns a copy of the turns for id, oldest first. An unseen id
// yields an empty history and does not create a session.
func (s *Store) History(id string) []models.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok || s.expired(e) {
		return nil
	}
	out := make([]models.Turn, len(e.turns))
	copy(out, e.turns)
	return out
}

// Append adds turns to the session, creating it if needed. When the history
// exceeds the turn bound the oldest turns are dropped.
func (s *Store) Append(id string, turns ...models.Turn) {
	if len(turns) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok || s.expired(e) {
		if !ok && s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
			s.evictOldestLocked()
		}
		e = &entry{}
		s.sessions[id] = e
	}
	e.turns = append(e.turns, turns...)
	if s.maxTurns > 0 && len(e.turns) > s.maxTurns {
		e.turns = append([]models.Turn(nil), e.turns[len(e.turns)-s.maxTurns:]...)
	}
	e.lastSeen = s.now()
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.sessions {
		if !s.expired(e) {
			n++
		}
	}
	return n
}

// Sweep removes expired sessions and returns how many were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for id, e := range s.sessions {
		if s.expired(e) {
			delete(s.sessions, id)
			dropped++
		}
	}
	if dropped > 0 {
		s.logger.Debug("swept expired sessions", zap.Int("dropped", dropped))
	}
	return dropped
}

// StartSweeper runs Sweep on the given interval until ctx is cancelled.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// expired reports whether e is past the TTL. Caller holds at least a read lock.
func (s *Store) expired(e *entry) bool {
	return s.ttl > 0 && s.now().Sub(e.lastSeen) > s.ttl
}

// evictOldestLocked removes the least recently used session. Caller holds the
// write lock.
func (s *Store) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, e := range s.sessions {
		if oldestID == "" || e.lastSeen.Before(oldest) {
			oldestID, oldest = id, e.lastSeen
		}
	}
	if oldestID != "" {
		delete(s.sessions, oldestID)
		s.logger.Debug("evicted session", zap.String("session_id", oldestID))
	}
}
