package quiz

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rualca/librarian-agent/internal/logger"
)

// DefaultSessionTTL is how long an idle session survives in a MemoryStore.
const DefaultSessionTTL = 2 * time.Hour

// SessionStore holds at most one session per user.
type SessionStore interface {
	// Put stores s as the user's session, replacing any previous one.
	Put(ctx context.Context, s *Session) error
	// Get returns the user's session or ErrNoActiveSession.
	Get(ctx context.Context, userID int64) (*Session, error)
	// Evict drops the user's session when its ID is sessionID. A newer
	// session stored for the same user is kept.
	Evict(ctx context.Context, userID int64, sessionID string) error
	// Sweep drops sessions idle since before now minus the store's TTL and
	// returns how many were dropped.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// MemoryStore is an in-process SessionStore with idle expiry.
type MemoryStore struct {
	ttl time.Duration
	log *slog.Logger

	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewMemoryStore returns an empty store. A non-positive ttl uses DefaultSessionTTL.
func NewMemoryStore(ttl time.Duration, log *slog.Logger) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemoryStore{ttl: ttl, log: logger.OrNop(log), sessions: map[int64]*Session{}}
}

func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.sessions[s.UserID]; ok && prev.ID != s.ID {
		m.log.Debug("replacing quiz session", "user", s.UserID, "previous", prev.ID)
	}
	m.sessions[s.UserID] = s
	return nil
}

func (m *MemoryStore) Get(_ context.Context, userID int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, ErrNoActiveSession
	}
	return s, nil
}

func (m *MemoryStore) Evict(_ context.Context, userID int64, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok && s.ID == sessionID {
		delete(m.sessions, userID)
	}
	return nil
}

func (m *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if now.Sub(s.LastActivity()) > m.ttl {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// RunSweeper calls store.Sweep every interval until ctx is done.
func RunSweeper(ctx context.Context, store SessionStore, interval time.Duration, log *slog.Logger) {
	log = logger.OrNop(log)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n, err := store.Sweep(ctx, now); err != nil {
				log.Error("quiz session sweep failed", "error", err)
			} else if n > 0 {
				log.Info("expired quiz sessions", "count", n)
			}
		}
	}
}
