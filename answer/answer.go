// Package answer provides chat.Answerer implementations: an OpenAI-compatible chat
// completion backend, retrieval augmentation over a vector store, and simple scripted
// and echo backends for tests and offline use.
package answer

import (
	"context"
	"sync"

	"github.com/creastat/chat"
	"github.com/pkg/errors"
)

// Func adapts a plain function to chat.Answerer.
type Func func(ctx context.Context, transcript chat.Transcript) (*string, error)

// Answer implements chat.Answerer.
func (f Func) Answer(ctx context.Context, transcript chat.Transcript) (*string, error) {
	return f(ctx, transcript)
}

// Echo replies with the most recent user turn.
var Echo = Func(func(_ context.Context, transcript chat.Transcript) (*string, error) {
	last, ok := transcript.LastOfRole(chat.RoleUser)
	if !ok {
		return nil, nil
	}
	reply := last.Text()
	return &reply, nil
})

// ErrScriptExhausted is returned by Scripted once every reply has been used.
var ErrScriptExhausted = errors.New("scripted answerer has no replies left")

// Scripted replays a fixed list of replies in order. A nil entry is returned as a
// missing answer. Every transcript it receives is recorded.
type Scripted struct {
	mu      sync.Mutex
	replies []*string
	calls   []chat.Transcript
}

// NewScripted creates a Scripted answerer.
func NewScripted(replies ...*string) *Scripted {
	return &Scripted{replies: replies}
}

// Reply is a convenience for building Scripted replies.
func Reply(s string) *string {
	return &s
}

// Answer implements chat.Answerer.
func (s *Scripted) Answer(ctx context.Context, transcript chat.Transcript) (*string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, transcript.Clone())
	if len(s.replies) == 0 {
		return nil, ErrScriptExhausted
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

// Calls returns the transcripts received so far.
func (s *Scripted) Calls() []chat.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]chat.Transcript, len(s.calls))
	copy(out, s.calls)
	return out
}

var (
	_ chat.Answerer = Func(nil)
	_ chat.Answerer = (*Scripted)(nil)
)
