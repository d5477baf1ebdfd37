// Package chat holds the conversation model shared by the session manager and its
// collaborators: turns, transcripts, the keep-first retention policy, token estimation
// and the render-ready view.
package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role tags who produced a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message of a conversation.
// A nil Content means the answer service produced no answer.
type Turn struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	Content    *string   `json:"content"`
	TokenCount int       `json:"token_count"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewTurn builds a turn and estimates its token count.
func NewTurn(id string, role Role, content *string) Turn {
	return Turn{
		ID:         id,
		Role:       role,
		Content:    content,
		TokenCount: EstimateTokens(deref(content)),
		Timestamp:  time.Now(),
	}
}

// Text returns the content, or "" when there is none.
func (t Turn) Text() string {
	return deref(t.Content)
}

// NewTurnID returns a random turn identifier.
func NewTurnID() string {
	return uuid.NewString()
}

// Transcript is the ordered history of a session. Index 0 is the seed turn.
type Transcript []Turn

// NewTranscript starts a transcript with a single system seed turn.
func NewTranscript(seedID, seedPrompt string) Transcript {
	return Transcript{NewTurn(seedID, RoleSystem, &seedPrompt)}
}

// Clone returns a copy that shares no backing array with t.
// Content pointers are shared; turns are never mutated in place.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	out := make(Transcript, len(t))
	copy(out, t)
	return out
}

// HasExchanges reports whether anything beyond the seed turn is present.
func (t Transcript) HasExchanges() bool {
	return len(t) > 1
}

// Tokens sums the estimated token counts of all turns.
func (t Transcript) Tokens() int {
	total := 0
	for _, turn := range t {
		total += turn.TokenCount
	}
	return total
}

// LastOfRole returns the most recent turn with the given role.
func (t Transcript) LastOfRole(role Role) (Turn, bool) {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Role == role {
			return t[i], true
		}
	}
	return Turn{}, false
}

// Answerer produces the assistant reply for a transcript.
//
// A nil answer with a nil error means the service had nothing to say; it is stored
// as an empty assistant turn. Errors are transport or service failures and are
// returned to whoever submitted the turn.
type Answerer interface {
	Answer(ctx context.Context, transcript Transcript) (*string, error)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
