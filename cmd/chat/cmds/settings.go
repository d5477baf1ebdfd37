package cmds

import (
	"strings"
	"time"

	"github.com/creastat/chat"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Settings is the resolved configuration of the run command.
type Settings struct {
	Backend       string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	Model         string
	SystemPrompt  string
	Policy        chat.Policy
	// MaxTurnsSet and MaxTokensSet record a policy given by flag, env or config file;
	// directory defaults never override it.
	MaxTurnsSet  bool
	MaxTokensSet bool

	Store     string
	RedisAddr string
	RedisTTL  time.Duration
	SessionID string

	SupabaseURL    string
	SupabaseKey    string
	AssistantToken string
	UserID         string
	UserEmail      string

	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string
	EmbeddingModel   string
	RetrievalLimit   int

	RenderStyle string
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("backend", "openai", "Answer backend (openai, echo)")
	f.String("openai-api-key", "", "OpenAI API key")
	f.String("openai-base-url", "", "OpenAI-compatible API base URL")
	f.String("model", "", "Chat model")
	f.String("system-prompt", "", "Seed system prompt")
	f.Int("max-turns", chat.DefaultMaxTurns, "Turns kept in the transcript, seed included")
	f.Int("max-tokens", 0, "Estimated token budget of the transcript (0 disables)")

	f.String("store", "memory", "Session snapshot store (memory, redis)")
	f.String("redis-addr", "localhost:6379", "Redis address host:port")
	f.Duration("redis-ttl", 24*time.Hour, "TTL of session snapshots in Redis")
	f.String("session-id", "", "Resume or name this session")

	f.String("supabase-url", "", "Supabase project URL")
	f.String("supabase-key", "", "Supabase API key")
	f.String("assistant-token", "", "Public token of the assistant to load from Supabase")
	f.String("user-id", "", "User ID whose profile is loaded from Supabase")
	f.String("user-email", "", "User email used for the greeting")

	f.String("qdrant-url", "", "Qdrant URL; enables retrieval augmentation")
	f.String("qdrant-api-key", "", "Qdrant API key")
	f.String("qdrant-collection", "", "Qdrant collection holding passages")
	f.String("embedding-model", "", "Embedding model used for retrieval")
	f.Int("retrieval-limit", 4, "Passages retrieved per question")

	f.String("render-style", "dark", "Glamour style (dark, light, notty, ascii)")
}

// SettingsFromViper reads and validates the run settings.
func SettingsFromViper(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		Backend:       strings.ToLower(v.GetString("backend")),
		OpenAIAPIKey:  v.GetString("openai-api-key"),
		OpenAIBaseURL: v.GetString("openai-base-url"),
		Model:         v.GetString("model"),
		SystemPrompt:  v.GetString("system-prompt"),
		Policy: chat.Policy{
			MaxTurns:  v.GetInt("max-turns"),
			MaxTokens: v.GetInt("max-tokens"),
		},
		MaxTurnsSet:  v.IsSet("max-turns"),
		MaxTokensSet: v.IsSet("max-tokens"),

		Store:     v.GetString("store"),
		RedisAddr: v.GetString("redis-addr"),
		RedisTTL:  v.GetDuration("redis-ttl"),
		SessionID: v.GetString("session-id"),

		SupabaseURL:    v.GetString("supabase-url"),
		SupabaseKey:    v.GetString("supabase-key"),
		AssistantToken: v.GetString("assistant-token"),
		UserID:         v.GetString("user-id"),
		UserEmail:      v.GetString("user-email"),

		QdrantURL:        v.GetString("qdrant-url"),
		QdrantAPIKey:     v.GetString("qdrant-api-key"),
		QdrantCollection: v.GetString("qdrant-collection"),
		EmbeddingModel:   v.GetString("embedding-model"),
		RetrievalLimit:   v.GetInt("retrieval-limit"),

		RenderStyle: v.GetString("render-style"),
	}

	switch s.Backend {
	case "openai":
		if s.OpenAIAPIKey == "" {
			return nil, errors.Wrap(chat.ErrInvalidConfig, "--openai-api-key is required for the openai backend")
		}
	case "echo":
	default:
		return nil, errors.Wrapf(chat.ErrInvalidConfig, "unknown backend %q", s.Backend)
	}

	if s.QdrantURL != "" && s.OpenAIAPIKey == "" {
		return nil, errors.Wrap(chat.ErrInvalidConfig, "retrieval needs --openai-api-key for embeddings")
	}
	if s.Policy.MaxTurns < 3 {
		return nil, errors.Wrapf(chat.ErrInvalidConfig, "--max-turns must be at least 3, got %d", s.Policy.MaxTurns)
	}
	if s.RenderStyle == "" {
		s.RenderStyle = "dark"
	}

	return s, nil
}

// UsesDirectory reports whether Supabase lookups are configured.
func (s *Settings) UsesDirectory() bool {
	return s.SupabaseURL != "" && (s.AssistantToken != "" || s.UserID != "")
}
