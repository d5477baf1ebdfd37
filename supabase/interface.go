// Package supabase looks up assistants and user profiles in Supabase. The assistant
// supplies the seed system prompt of a session; the profile supplies the email used
// for the greeting.
package supabase

import (
	"context"
	"time"
)

// Store provides the directory lookups a chat session needs.
type Store interface {
	// GetAssistantByToken retrieves an active assistant by its public token.
	GetAssistantByToken(ctx context.Context, publicToken string) (*Assistant, error)

	// GetProfile retrieves a user profile by user ID.
	GetProfile(ctx context.Context, userID string) (*Profile, error)

	// Close releases resources.
	Close() error
}

// Assistant is a configured chat assistant.
type Assistant struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	PublicToken  string    `json:"public_token"`
	SystemPrompt string    `json:"system_prompt"`
	Model        string    `json:"model"`
	MaxTurns     int       `json:"max_turns"`
	MaxTokens    int       `json:"max_tokens"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile is the identity-provider view of a user.
type Profile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}
