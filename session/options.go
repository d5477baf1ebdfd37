package session

import "github.com/creastat/chat"

// DefaultSeedPrompt seeds a transcript when no system prompt is configured.
const DefaultSeedPrompt = "You are a helpful assistant. Answer concisely and use markdown where it helps."

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithSessionID sets the session identifier. A random one is used otherwise.
func WithSessionID(id string) ManagerOption {
	return func(m *Manager) {
		m.id = id
	}
}

// WithSeedPrompt sets the content of the system seed turn.
func WithSeedPrompt(prompt string) ManagerOption {
	return func(m *Manager) {
		m.seedPrompt = prompt
	}
}

// WithPolicy sets the retention policy applied after every exchange.
func WithPolicy(policy chat.Policy) ManagerOption {
	return func(m *Manager) {
		m.policy = policy
	}
}

// WithIDGenerator replaces the turn id generator.
func WithIDGenerator(gen func() string) ManagerOption {
	return func(m *Manager) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// WithTranscript starts the manager from an existing transcript instead of a fresh seed.
// The transcript must begin with its system seed turn.
func WithTranscript(t chat.Transcript) ManagerOption {
	return func(m *Manager) {
		m.transcript = t.Clone()
	}
}

// WithStore saves a snapshot after each completed exchange.
func WithStore(store Store) ManagerOption {
	return func(m *Manager) {
		m.store = store
	}
}

// WithOnChange registers a listener called whenever the transcript is replaced.
// Listeners run while the manager is still Sending, so a Submit made from a
// listener returns chat.ErrSubmissionPending.
func WithOnChange(fn func(Change)) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.listeners = append(m.listeners, fn)
		}
	}
}

// WithUserEmail sets the identity used for the greeting.
func WithUserEmail(email string) ManagerOption {
	return func(m *Manager) {
		m.userEmail = email
	}
}
