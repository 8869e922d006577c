package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xhad/askpdf/internal/models"
)

const (
	Greeting      = "Hello! I'm your AI document assistant. Upload PDF documents and ask me anything about them!"
	ClearGreeting = "Chat cleared! How can I help you with your documents?"
)

// Store is the ordered chat transcript. Turns are only ever appended; the
// whole transcript can be replaced, which is how a chat is cleared.
type Store struct {
	mu    sync.RWMutex
	turns []models.Turn
}

// New starts a transcript with the greeting turn.
func New() *Store {
	s := &Store{}
	s.Append(NewTurn(models.RoleAssistant, Greeting))
	return s
}

// NewTurn builds a turn with a fresh id and timestamp.
func NewTurn(role models.Role, content string) models.Turn {
	return models.Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

func (s *Store) Append(turn models.Turn) {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
}

func (s *Store) ReplaceAll(turns []models.Turn) {
	replaced := make([]models.Turn, len(turns))
	copy(replaced, turns)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = replaced
}

// Snapshot returns a copy the caller may keep.
func (s *Store) Snapshot() []models.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Turn, len(s.turns))
	for i, t := range s.turns {
		out[i] = t
		if t.Sources != nil {
			out[i].Sources = append([]models.Source(nil), t.Sources...)
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Last returns the most recent turn.
func (s *Store) Last() (models.Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.turns) == 0 {
		return models.Turn{}, false
	}
	return s.turns[len(s.turns)-1], true
}
