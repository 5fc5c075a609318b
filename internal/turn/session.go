package turn

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"stagehand/internal/llm"
)

// Session holds the append-only conversation history shared across the
// iterations of one agent's turns. History only grows; callers get
// copies so a snapshot taken before a stream stays stable.
type Session struct {
	ID        string
	StartedAt time.Time

	mu      sync.Mutex
	history []llm.Message
}

// NewSession creates an empty session with a fresh id.
func NewSession() *Session {
	return &Session{
		ID:        uuid.New().String()[:8],
		StartedAt: time.Now(),
	}
}

// Append adds a message to the history.
func (s *Session) Append(msg llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msg)
}

// History returns a copy of the conversation so far.
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Message, len(s.history))
	copy(out, s.history)
	return out
}

// Len returns the number of messages in the history.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}
