// Package chat keeps a bounded transcript of recent turns per conversation for
// operator debugging. Transcripts live only as long as their session.
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-helpdesk/backend/internal/model/conversation"
)

// DefaultMaxMessages bounds each transcript.
const DefaultMaxMessages = 50

var (
	ErrSessionRequired = errors.New("session id is required")
	ErrSessionNotFound = errors.New("session not found")
)

type transcript struct {
	messages []conversation.Message
	lastAt   time.Time
}

// Service encapsulates transcript storage.
type Service struct {
	mu          sync.RWMutex
	transcripts map[string]*transcript
	max         int
}

// NewService bootstraps the in-memory transcript store. maxMessages <= 0 uses
// DefaultMaxMessages.
func NewService(maxMessages int) *Service {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &Service{
		transcripts: make(map[string]*transcript),
		max:         maxMessages,
	}
}

// SaveMessage appends a message to the conversation's transcript, dropping the
// oldest once the cap is reached.
func (s *Service) SaveMessage(_ context.Context, message conversation.Message) error {
	if message.SessionID == "" {
		return ErrSessionRequired
	}

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transcripts[message.SessionID]
	if !ok {
		t = &transcript{messages: make([]conversation.Message, 0, 16)}
		s.transcripts[message.SessionID] = t
	}
	if len(t.messages) >= s.max {
		n := copy(t.messages, t.messages[len(t.messages)-s.max+1:])
		t.messages = t.messages[:n]
	}
	t.messages = append(t.messages, message)
	t.lastAt = message.CreatedAt
	return nil
}

// LoadTranscript returns stored messages for the provided session, oldest
// first.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]conversation.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transcripts[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]conversation.Message, len(t.messages))
	copy(copied, t.messages)
	return copied, nil
}

// Drop forgets a conversation's transcript.
func (s *Service) Drop(sessionID string) {
	s.mu.Lock()
	delete(s.transcripts, sessionID)
	s.mu.Unlock()
}

// Prune drops every transcript whose last message is older than cutoff and
// returns how many were removed.
func (s *Service) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, t := range s.transcripts {
		if t.lastAt.Before(cutoff) {
			delete(s.transcripts, id)
			removed++
		}
	}
	return removed
}

// Len reports how many conversations have a transcript.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transcripts)
}
