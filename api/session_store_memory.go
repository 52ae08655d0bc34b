package api

import (
	"crypto/sha256"
	"sync"
	"time"
)

// MemorySessionStore is a thread-safe in-memory SessionStore.
// Sessions are lost on server restart, as is the unlocked Core session
// they point at. Tokens are kept only as SHA-256 digests.
type MemorySessionStore struct {
	mu          sync.RWMutex
	data        map[[sha256.Size]byte]AuthSession
	idleTimeout time.Duration
}

var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates an in-memory session store.
// idleTimeout of 0 disables idle timeout checking.
func NewMemorySessionStore(idleTimeout time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		data:        make(map[[sha256.Size]byte]AuthSession),
		idleTimeout: idleTimeout,
	}
}

func (s *MemorySessionStore) Get(token string) (AuthSession, bool) {
	id := sha256.Sum256([]byte(token))
	s.mu.RLock()
	session, ok := s.data[id]
	s.mu.RUnlock()
	if !ok {
		return AuthSession{}, false
	}
	if time.Now().After(session.ExpiresAt) {
		s.Delete(token)
		return AuthSession{}, false
	}
	if s.idleTimeout > 0 && time.Since(session.LastAccessedAt) > s.idleTimeout {
		s.Delete(token)
		return AuthSession{}, false
	}
	return session, true
}

func (s *MemorySessionStore) Put(token string, session AuthSession) {
	id := sha256.Sum256([]byte(token))
	s.mu.Lock()
	s.data[id] = session
	s.mu.Unlock()
}

func (s *MemorySessionStore) Touch(token string, at time.Time) bool {
	id := sha256.Sum256([]byte(token))
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.data[id]
	if !ok {
		return false
	}
	session.LastAccessedAt = at
	s.data[id] = session
	return true
}

func (s *MemorySessionStore) Delete(token string) {
	id := sha256.Sum256([]byte(token))
	s.mu.Lock()
	delete(s.data, id)
	s.mu.Unlock()
}

func (s *MemorySessionStore) Clear() {
	s.mu.Lock()
	clear(s.data)
	s.mu.Unlock()
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
