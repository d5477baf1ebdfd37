package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/creastat/chat"
	"github.com/creastat/chat/answer"
	"github.com/creastat/chat/events"
	"github.com/creastat/chat/session"
	"github.com/creastat/chat/session/drivers"
	"github.com/creastat/chat/supabase"
	"github.com/creastat/chat/vectorstore"
	"github.com/creastat/chat/vectorstore/qdrant"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const renderTimeout = 5 * time.Second

// NewRunCommand creates the interactive chat command.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session.

Each line read from stdin is submitted as a question; the answer is rendered as
markdown. Use --session-id with --store redis to resume a conversation later.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := SettingsFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, settings, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	addRunFlags(cmd)
	return cmd
}

// directoryInfo is what the Supabase lookups contribute to a session.
type directoryInfo struct {
	assistant *supabase.Assistant
	email     string
}

func run(ctx context.Context, s *Settings, in io.Reader, out io.Writer) error {
	if s.UsesDirectory() {
		info, err := lookupDirectory(ctx, s)
		if err != nil {
			return err
		}
		applyDirectory(s, info)
	}

	answerer, cleanup, err := newAnswerer(s)
	if err != nil {
		return err
	}
	defer cleanup()

	store, err := newStore(s)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("Could not close session store")
		}
	}()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer func() {
		_ = pubSub.Close()
	}()
	messages, err := pubSub.Subscribe(ctx, events.DefaultTopic)
	if err != nil {
		return errors.Wrap(err, "could not subscribe to transcript changes")
	}
	r := newRenderer(out, s.RenderStyle)
	go r.run(ctx, messages)

	sink := events.NewWatermillSink(pubSub, events.DefaultTopic)
	m, err := newManager(ctx, s, store, answerer, session.WithOnChange(sink.OnChange))
	if err != nil {
		return err
	}

	snapshot := m.Snapshot()
	if snapshot.Greeting != "" {
		_, _ = fmt.Fprintln(out, snapshot.Greeting)
	} else {
		renderHistory(out, snapshot.View, s.RenderStyle)
	}

	return repl(ctx, m, r, in, out)
}

func repl(ctx context.Context, m *session.Manager, r *renderer, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		_, _ = fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			return nil
		}

		m.SetInput(scanner.Text())
		if !m.CanSubmit() {
			continue
		}

		r.drain()
		if _, err := m.SubmitInput(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			_, _ = fmt.Fprintf(out, "error: %v\n", err)
			continue
		}

		select {
		case <-r.rendered:
		case <-time.After(renderTimeout):
			log.Warn().Str("session_id", m.ID()).Msg("Timed out waiting for the answer to render")
		case <-ctx.Done():
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "could not read input")
	}
	return nil
}

func lookupDirectory(ctx context.Context, s *Settings) (*directoryInfo, error) {
	dir, err := supabase.New(supabase.Config{
		URL:    s.SupabaseURL,
		APIKey: s.SupabaseKey,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = dir.Close()
	}()

	info := &directoryInfo{}
	eg, ctx := errgroup.WithContext(ctx)
	if s.AssistantToken != "" {
		eg.Go(func() error {
			assistant, err := dir.GetAssistantByToken(ctx, s.AssistantToken)
			if err != nil {
				return errors.Wrap(err, "could not load assistant")
			}
			info.assistant = assistant
			return nil
		})
	}
	if s.UserID != "" && s.UserEmail == "" {
		eg.Go(func() error {
			profile, err := dir.GetProfile(ctx, s.UserID)
			if err != nil {
				// a missing profile only costs the personalized greeting
				log.Warn().Err(err).Str("user_id", s.UserID).Msg("Could not load user profile")
				return nil
			}
			info.email = profile.Email
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return info, nil
}

// applyDirectory fills settings the user left unset from the directory.
func applyDirectory(s *Settings, info *directoryInfo) {
	if info.email != "" && s.UserEmail == "" {
		s.UserEmail = info.email
	}

	a := info.assistant
	if a == nil {
		return
	}
	if s.SystemPrompt == "" {
		s.SystemPrompt = a.SystemPrompt
	}
	if s.Model == "" {
		s.Model = a.Model
	}
	if a.MaxTurns >= 3 && !s.MaxTurnsSet {
		s.Policy.MaxTurns = a.MaxTurns
	}
	if a.MaxTokens > 0 && !s.MaxTokensSet {
		s.Policy.MaxTokens = a.MaxTokens
	}
	log.Debug().Str("assistant", a.Name).Str("model", s.Model).Msg("Using assistant from directory")
}

func newAnswerer(s *Settings) (chat.Answerer, func(), error) {
	noop := func() {}

	var base chat.Answerer
	switch s.Backend {
	case "echo":
		base = answer.Echo
	default:
		model := s.Model
		if model == "" {
			model = answer.DefaultModel
		}
		o, err := answer.NewOpenAI(answer.OpenAIConfig{
			APIKey:  s.OpenAIAPIKey,
			BaseURL: s.OpenAIBaseURL,
			Model:   model,
		})
		if err != nil {
			return nil, noop, err
		}
		base = o
	}

	if s.QdrantURL == "" {
		return base, noop, nil
	}

	vs, err := qdrant.New(qdrant.Config{
		URL:            s.QdrantURL,
		APIKey:         s.QdrantAPIKey,
		CollectionName: s.QdrantCollection,
	})
	if err != nil {
		return nil, noop, err
	}
	embedder, err := answer.NewOpenAIEmbedder(s.OpenAIAPIKey, s.OpenAIBaseURL, s.EmbeddingModel)
	if err != nil {
		_ = vs.Close()
		return nil, noop, err
	}

	var opts []answer.RetrievalOption
	if s.RetrievalLimit > 0 {
		opts = append(opts, answer.WithRetrievalLimit(s.RetrievalLimit))
	}
	if s.AssistantToken != "" {
		opts = append(opts, answer.WithSearchFilter(vectorstore.SearchFilter{
			Metadata: map[string]any{"assistant_token": s.AssistantToken},
		}))
	}

	cleanup := func() {
		if err := vs.Close(); err != nil {
			log.Warn().Err(err).Msg("Could not close vector store")
		}
	}
	return answer.NewRetrieval(base, embedder, vs, opts...), cleanup, nil
}

func newStore(s *Settings) (session.Store, error) {
	storeType, err := drivers.ParseStoreType(s.Store)
	if err != nil {
		return nil, errors.Wrapf(err, "store %q", s.Store)
	}

	var opts []drivers.StoreOption
	if storeType == drivers.StoreTypeRedis {
		client := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
		opts = append(opts, drivers.WithRedisClient(client), drivers.WithRedisTTL(s.RedisTTL))
	}
	return drivers.NewStore(storeType, opts...)
}

func newManager(ctx context.Context, s *Settings, store session.Store, answerer chat.Answerer, extra ...session.ManagerOption) (*session.Manager, error) {
	opts := []session.ManagerOption{session.WithStore(store)}
	if s.UserEmail != "" {
		opts = append(opts, session.WithUserEmail(s.UserEmail))
	}
	opts = append(opts, extra...)

	if s.SessionID != "" {
		m, err := session.Resume(ctx, store, s.SessionID, answerer, append(opts, session.WithPolicy(s.Policy))...)
		if err == nil {
			log.Info().Str("session_id", m.ID()).Int("exchanges", m.Exchanges()).Msg("Resumed session")
			return m, nil
		}
		if !errors.Is(err, chat.ErrNotFound) {
			return nil, err
		}
		opts = append(opts, session.WithSessionID(s.SessionID))
	}

	seed := strings.TrimSpace(s.SystemPrompt)
	if seed != "" {
		opts = append(opts, session.WithSeedPrompt(seed))
	}
	opts = append(opts, session.WithPolicy(s.Policy))
	return session.NewManager(answerer, opts...), nil
}
