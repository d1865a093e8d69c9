package session

import (
	"context"
	"sync"
	"time"

	"github.com/zhouzirui/z-helpdesk/backend/internal/model/conversation"
)

// MemoryBackend keeps sessions in process memory. A restart loses them.
type MemoryBackend struct {
	mu       sync.RWMutex
	sessions map[string]*conversation.Session
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{sessions: make(map[string]*conversation.Session)}
}

// Load returns a copy of the stored session.
func (b *MemoryBackend) Load(_ context.Context, id string) (*conversation.Session, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.sessions[id]
	if !ok {
		return nil, false, nil
	}
	return s.Clone(), true, nil
}

// Save stores a copy of s.
func (b *MemoryBackend) Save(_ context.Context, s *conversation.Session) error {
	b.mu.Lock()
	b.sessions[s.ID] = s.Clone()
	b.mu.Unlock()
	return nil
}

// Delete removes the session if present.
func (b *MemoryBackend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	delete(b.sessions, id)
	b.mu.Unlock()
	return nil
}

// Sweep removes sessions whose last activity is before cutoff.
func (b *MemoryBackend) Sweep(_ context.Context, cutoff time.Time) ([]string, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var removed []string
	for id, s := range b.sessions {
		if s.LastActivityAt.Before(cutoff) {
			delete(b.sessions, id)
			removed = append(removed, id)
		}
	}
	return removed, len(b.sessions), nil
}

// Len returns the number of stored sessions.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}
