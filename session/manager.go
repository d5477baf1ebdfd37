// Package session implements the conversation session manager: it owns a transcript,
// serializes submissions against an answerer and applies the retention policy after
// every exchange.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/creastat/chat"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Manager owns one conversation. It moves Idle -> Sending -> Idle on each Submit;
// a Submit arriving while Sending is rejected without touching the transcript.
type Manager struct {
	mu sync.Mutex

	id         string
	seedPrompt string
	userEmail  string
	policy     chat.Policy
	newID      func() string
	answerer   chat.Answerer
	store      Store
	listeners  []func(Change)

	transcript chat.Transcript
	input      string
	pending    bool
	exchanges  int
	version    int64
}

// NewManager creates a manager whose transcript holds only the seed turn.
func NewManager(answerer chat.Answerer, options ...ManagerOption) *Manager {
	m := &Manager{
		seedPrompt: DefaultSeedPrompt,
		policy:     chat.DefaultPolicy(),
		newID:      chat.NewTurnID,
		answerer:   answerer,
	}
	for _, option := range options {
		option(m)
	}

	if m.id == "" {
		m.id = uuid.NewString()
	}
	if len(m.transcript) == 0 {
		m.transcript = chat.NewTranscript(m.newID(), m.seedPrompt)
	}

	return m
}

// Resume rebuilds a manager from the snapshot stored under id.
// Returns chat.ErrNotFound if the store has no such session.
func Resume(ctx context.Context, store Store, id string, answerer chat.Answerer, options ...ManagerOption) (*Manager, error) {
	data, err := store.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "could not load session %s", id)
	}
	if data == nil || len(data.Transcript) == 0 {
		return nil, chat.ErrNotFound
	}

	opts := []ManagerOption{
		WithSessionID(data.ID),
		WithPolicy(data.Policy),
		WithUserEmail(data.UserEmail),
	}
	opts = append(opts, options...)
	opts = append(opts, WithStore(store))

	m := NewManager(answerer, opts...)
	m.transcript = m.policy.Apply(data.Transcript)
	m.exchanges = data.Exchanges
	m.version = data.Version

	log.Debug().
		Str("session_id", m.id).
		Int("turns", len(m.transcript)).
		Int64("version", m.version).
		Msg("Resumed session")

	return m, nil
}

// ID returns the session identifier.
func (m *Manager) ID() string {
	return m.id
}

// State reports whether a submission is in flight.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending {
		return StateSending
	}
	return StateIdle
}

// Transcript returns a copy of the current transcript.
func (m *Manager) Transcript() chat.Transcript {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transcript.Clone()
}

// Exchanges returns the number of completed exchanges, including evicted ones.
func (m *Manager) Exchanges() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exchanges
}

// View returns the render-ready turns of the current transcript.
func (m *Manager) View() []chat.ViewTurn {
	return chat.View(m.Transcript())
}

// Snapshot describes the current transcript the same way change listeners see it.
func (m *Manager) Snapshot() Change {
	return m.change(m.Transcript())
}

// SetInput replaces the input buffer.
func (m *Manager) SetInput(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.input = text
}

// Input returns the input buffer.
func (m *Manager) Input() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.input
}

// CanSubmit reports whether SubmitInput would be attempted: nothing is in flight and
// the trimmed input buffer is not empty.
func (m *Manager) CanSubmit() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.pending && strings.TrimSpace(m.input) != ""
}

// SubmitInput submits the current input buffer.
func (m *Manager) SubmitInput(ctx context.Context) (chat.Transcript, error) {
	return m.Submit(ctx, m.Input())
}

// Submit runs one exchange: it appends the user turn, asks the answerer with the
// whole transcript, appends the assistant turn and applies the retention policy.
//
// An empty prompt returns chat.ErrEmptyPrompt and a submission made while another
// is in flight returns chat.ErrSubmissionPending; neither touches the transcript.
// If the answerer fails the transcript is left unchanged and the error is returned.
func (m *Manager) Submit(ctx context.Context, prompt string) (chat.Transcript, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, chat.ErrEmptyPrompt
	}

	m.mu.Lock()
	if m.pending {
		m.mu.Unlock()
		log.Debug().Str("session_id", m.id).Msg("Submission rejected, another one is in flight")
		return nil, chat.ErrSubmissionPending
	}
	m.pending = true
	working := m.transcript.Clone()
	m.mu.Unlock()

	userTurn := chat.NewTurn(m.newID(), chat.RoleUser, &prompt)
	working = chat.AppendTurn(working, userTurn)

	log.Debug().
		Str("session_id", m.id).
		Str("turn_id", userTurn.ID).
		Int("turns", len(working)).
		Msg("Asking for an answer")

	answer, err := m.answerer.Answer(ctx, working.Clone())
	if err != nil {
		m.mu.Lock()
		m.pending = false
		m.mu.Unlock()
		log.Warn().Err(err).Str("session_id", m.id).Msg("Answerer failed")
		return nil, errors.Wrap(err, "could not get an answer")
	}
	if answer == nil {
		log.Debug().Str("session_id", m.id).Msg("Answerer returned no answer")
	}

	working = chat.AppendTurn(working, chat.NewTurn(m.newID(), chat.RoleAssistant, answer))
	retained := m.policy.Apply(working)

	// The snapshot is written while still Sending so saves never interleave.
	m.mu.Lock()
	exchanges := m.exchanges + 1
	data := m.sessionData(retained, exchanges)
	m.mu.Unlock()
	m.save(ctx, data)

	m.mu.Lock()
	m.transcript = retained
	m.input = ""
	m.exchanges = exchanges
	m.mu.Unlock()

	log.Debug().
		Str("session_id", m.id).
		Int("turns", len(retained)).
		Int("dropped", len(working)-len(retained)).
		Msg("Exchange complete")

	// Listeners run before the gate reopens so changes reach them in order.
	m.notify(retained)

	m.mu.Lock()
	m.pending = false
	m.mu.Unlock()

	return retained.Clone(), nil
}

func (m *Manager) sessionData(t chat.Transcript, exchanges int) *SessionData {
	return &SessionData{
		ID:         m.id,
		Version:    m.version,
		Transcript: t.Clone(),
		Policy:     m.policy,
		Exchanges:  exchanges,
		UserEmail:  m.userEmail,
	}
}

// save writes a snapshot. Store errors are logged and never fail the exchange.
func (m *Manager) save(ctx context.Context, data *SessionData) {
	if m.store == nil {
		return
	}

	var err error
	if data.Version == 0 {
		err = m.store.Create(ctx, data)
	} else {
		err = m.store.Update(ctx, data)
	}
	if err != nil {
		log.Warn().Err(err).
			Str("session_id", m.id).
			Int64("version", data.Version).
			Msg("Could not save session snapshot")
		return
	}

	m.mu.Lock()
	m.version = data.Version
	m.mu.Unlock()
}

func (m *Manager) notify(t chat.Transcript) {
	if len(m.listeners) == 0 {
		return
	}
	c := m.change(t)
	for _, fn := range m.listeners {
		fn(c)
	}
}

func (m *Manager) change(t chat.Transcript) Change {
	c := Change{
		SessionID:  m.id,
		Transcript: t.Clone(),
		View:       chat.View(t),
	}
	if !t.HasExchanges() {
		c.Greeting = chat.Greeting(m.userEmail)
	}
	return c
}
