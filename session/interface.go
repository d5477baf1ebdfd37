package session

import "context"

// Store persists session snapshots.
type Store interface {
	// Create stores a new snapshot with Version set to 1.
	Create(ctx context.Context, data *SessionData) error

	// Get retrieves a snapshot by ID.
	// Returns nil if the session is not found (not an error).
	Get(ctx context.Context, id string) (*SessionData, error)

	// Update replaces an existing snapshot with optimistic locking.
	// The stored Version must match data.Version; on success Version is incremented
	// and UpdatedAt refreshed.
	// Returns chat.ErrVersionConflict if the version does not match.
	// Returns chat.ErrNotFound if the session does not exist.
	Update(ctx context.Context, data *SessionData) error

	// Delete deletes a snapshot by ID.
	Delete(ctx context.Context, id string) error

	// Close closes the store and releases any resources.
	Close() error
}
