package chat

// DefaultMaxTurns is the transcript capacity used when none is configured.
const DefaultMaxTurns = 10

// minRecentTurns is the tail RetainTokens never evicts: the newest exchange.
const minRecentTurns = 2

// Retain caps the transcript at capacity turns.
// The first (seed) turn always survives; the remaining capacity-1 slots hold the
// most recent turns, so the oldest non-seed turns are dropped first.
// A capacity below 1 is treated as 1. The result never aliases t.
func Retain(t Transcript, capacity int) Transcript {
	if capacity < 1 {
		capacity = 1
	}
	if len(t) <= capacity {
		return t.Clone()
	}

	out := make(Transcript, 0, capacity)
	out = append(out, t[0])
	return append(out, t[len(t)-capacity+1:]...)
}

// RetainTokens drops the oldest non-seed turns until the estimated token total fits
// tokenLimit. The seed and the newest exchange are always kept, even over budget.
// A tokenLimit <= 0 disables the budget.
func RetainTokens(t Transcript, tokenLimit int) Transcript {
	out := t.Clone()
	if tokenLimit <= 0 || len(out) == 0 {
		return out
	}

	total := out.Tokens()
	for total > tokenLimit && len(out) > 1+minRecentTurns {
		total -= out[1].TokenCount
		out = append(out[:1], out[2:]...)
	}

	return out
}

// Policy bundles the retention limits applied after every exchange.
type Policy struct {
	MaxTurns  int `json:"max_turns" yaml:"max-turns"`
	MaxTokens int `json:"max_tokens" yaml:"max-tokens"`
}

// DefaultPolicy keeps the seed plus the nine most recent turns, with no token budget.
func DefaultPolicy() Policy {
	return Policy{MaxTurns: DefaultMaxTurns}
}

// Apply runs the turn cap first, then the token budget.
func (p Policy) Apply(t Transcript) Transcript {
	maxTurns := p.MaxTurns
	if maxTurns == 0 {
		maxTurns = DefaultMaxTurns
	}
	return RetainTokens(Retain(t, maxTurns), p.MaxTokens)
}

// AppendTurn returns a new transcript with turn appended, leaving t untouched.
func AppendTurn(t Transcript, turn Turn) Transcript {
	out := make(Transcript, len(t), len(t)+1)
	copy(out, t)
	return append(out, turn)
}
