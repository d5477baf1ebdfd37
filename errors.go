package chat

import "errors"

// Errors returned by session submission.
var (
	ErrEmptyPrompt       = errors.New("prompt is empty")
	ErrSubmissionPending = errors.New("a submission is already in flight")
)

// Errors returned by session store operations.
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidStoreType = errors.New("invalid store type")
	ErrVersionConflict  = errors.New("session version conflict")
	ErrNotFound         = errors.New("session not found")
)
