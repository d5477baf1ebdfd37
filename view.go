package chat

import (
	"fmt"
	"strings"
)

// ViewTurn is a read-only, display-ready turn.
type ViewTurn struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
	// Body is the markdown content; empty when the assistant produced no answer.
	Body       string `json:"body"`
	HasContent bool   `json:"has_content"`
	// Anchor marks the last rendered turn, the target of scroll-into-view.
	Anchor bool `json:"anchor"`
}

// View derives the turns to display. System turns are never shown.
func View(t Transcript) []ViewTurn {
	out := make([]ViewTurn, 0, len(t))
	for _, turn := range t {
		if turn.Role == RoleSystem {
			continue
		}
		out = append(out, ViewTurn{
			ID:         turn.ID,
			Role:       turn.Role,
			Body:       turn.Text(),
			HasContent: turn.Content != nil,
		})
	}
	if len(out) > 0 {
		out[len(out)-1].Anchor = true
	}
	return out
}

// NameFromEmail returns the local part of an email address, used as a display name.
func NameFromEmail(email string) string {
	email = strings.TrimSpace(email)
	if i := strings.IndexByte(email, '@'); i >= 0 {
		email = email[:i]
	}
	return email
}

// Greeting is shown in place of the transcript while it holds no exchange.
func Greeting(email string) string {
	name := NameFromEmail(email)
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hi %s! Ask me anything to start the conversation.", name)
}
