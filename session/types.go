package session

import (
	"time"

	"github.com/creastat/chat"
)

// SessionData is the serializable state of a session.
//
// Stores keep it as JSON. Version increases on every update and drives optimistic
// locking; Transcript is the retained history including the seed turn.
type SessionData struct {
	ID         string          `json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Version    int64           `json:"version"`
	Transcript chat.Transcript `json:"transcript"`
	Policy     chat.Policy     `json:"policy"`
	Exchanges  int             `json:"exchanges"`
	UserEmail  string          `json:"user_email,omitempty"`
}

// State is the submission state of a Manager.
type State int

const (
	StateIdle State = iota
	StateSending
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	default:
		return "unknown"
	}
}

// Change is delivered to listeners each time the transcript is replaced.
type Change struct {
	SessionID  string
	Transcript chat.Transcript
	View       []chat.ViewTurn
	// Greeting is set while the transcript holds no exchange.
	Greeting string
}
