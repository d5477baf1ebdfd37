package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/creastat/chat"
	"github.com/creastat/chat/answer"
	"github.com/creastat/chat/session"
	"github.com/creastat/chat/session/drivers"
	"github.com/stretchr/testify/require"
)

func counterIDs() func() string {
	n := 0
	return func() string {
		id := fmt.Sprintf("t%d", n)
		n++
		return id
	}
}

func TestSubmitAppendsExchange(t *testing.T) {
	ctx := context.Background()
	scripted := answer.NewScripted(answer.Reply("hello back"))
	m := session.NewManager(scripted,
		session.WithSeedPrompt("seed"),
		session.WithIDGenerator(counterIDs()),
	)

	seed := m.Transcript()[0]
	got, err := m.Submit(ctx, "  hello  ")
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, seed, got[0])
	require.Equal(t, chat.RoleUser, got[1].Role)
	require.Equal(t, "hello", got[1].Text())
	require.Equal(t, chat.RoleAssistant, got[2].Role)
	require.Equal(t, "hello back", got[2].Text())
	require.Equal(t, []string{"t0", "t1", "t2"}, []string{got[0].ID, got[1].ID, got[2].ID})

	calls := scripted.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 2)
	require.Equal(t, chat.RoleSystem, calls[0][0].Role)
	require.Equal(t, "hello", calls[0][1].Text())

	require.Equal(t, session.StateIdle, m.State())
	require.Equal(t, 1, m.Exchanges())
}

func TestSubmitEmptyPromptIsNoop(t *testing.T) {
	scripted := answer.NewScripted(answer.Reply("unused"))
	m := session.NewManager(scripted)
	before := m.Transcript()

	for _, p := range []string{"", "   ", "\n\t"} {
		_, err := m.Submit(context.Background(), p)
		require.ErrorIs(t, err, chat.ErrEmptyPrompt)
	}

	require.Equal(t, before, m.Transcript())
	require.Empty(t, scripted.Calls())
}

func TestSubmitNilAnswerStoredAsEmptyAssistantTurn(t *testing.T) {
	m := session.NewManager(answer.NewScripted(nil))

	got, err := m.Submit(context.Background(), "anyone?")
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, chat.RoleAssistant, got[2].Role)
	require.Nil(t, got[2].Content)

	view := m.View()
	require.Len(t, view, 2)
	require.Equal(t, chat.RoleAssistant, view[1].Role)
	require.Equal(t, "", view[1].Body)
	require.False(t, view[1].HasContent)
	require.True(t, view[1].Anchor)
}

func TestRetentionAfterFiveExchanges(t *testing.T) {
	ctx := context.Background()
	replies := make([]*string, 5)
	for i := range replies {
		replies[i] = answer.Reply(fmt.Sprintf("answer %d", i))
	}
	m := session.NewManager(answer.NewScripted(replies...),
		session.WithIDGenerator(counterIDs()),
	)
	seed := m.Transcript()[0]

	for i := 0; i < 5; i++ {
		_, err := m.Submit(ctx, fmt.Sprintf("question %d", i))
		require.NoError(t, err)
	}

	got := m.Transcript()
	require.Len(t, got, 10)
	require.Equal(t, seed, got[0])
	// t1 is the first user turn; it is the one evicted.
	require.Equal(t, "t2", got[1].ID)
	require.Equal(t, "answer 0", got[1].Text())
	require.Equal(t, "answer 4", got[9].Text())
	require.Equal(t, 5, m.Exchanges())
}

func TestSubmitWhileSendingIsRejected(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex

	blocking := answer.Func(func(ctx context.Context, _ chat.Transcript) (*string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		close(entered)
		<-release
		return answer.Reply("done"), nil
	})
	m := session.NewManager(blocking)

	done := make(chan error, 1)
	go func() {
		_, err := m.Submit(ctx, "first")
		done <- err
	}()

	<-entered
	require.Equal(t, session.StateSending, m.State())
	m.SetInput("second")
	require.False(t, m.CanSubmit())

	before := m.Transcript()
	_, err := m.Submit(ctx, "second")
	require.ErrorIs(t, err, chat.ErrSubmissionPending)
	require.Equal(t, before, m.Transcript())

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("first submission did not finish")
	}

	mu.Lock()
	require.Equal(t, 1, calls)
	mu.Unlock()
	require.Len(t, m.Transcript(), 3)
	require.Equal(t, session.StateIdle, m.State())
}

func TestAnswererErrorLeavesTranscript(t *testing.T) {
	boom := errors.New("transport down")
	m := session.NewManager(answer.Func(func(context.Context, chat.Transcript) (*string, error) {
		return nil, boom
	}))
	m.SetInput("hello")
	before := m.Transcript()

	_, err := m.SubmitInput(context.Background())
	require.ErrorIs(t, err, boom)
	require.Equal(t, before, m.Transcript())
	require.Equal(t, session.StateIdle, m.State())
	require.Equal(t, "hello", m.Input())
	require.True(t, m.CanSubmit())
}

func TestSubmitInputClearsBuffer(t *testing.T) {
	m := session.NewManager(answer.Echo)
	require.False(t, m.CanSubmit())

	m.SetInput("  echo me ")
	require.True(t, m.CanSubmit())

	got, err := m.SubmitInput(context.Background())
	require.NoError(t, err)
	require.Equal(t, "echo me", got[2].Text())
	require.Equal(t, "", m.Input())
}

func TestOnChangeReceivesView(t *testing.T) {
	var changes []session.Change
	m := session.NewManager(answer.Echo,
		session.WithSessionID("s-1"),
		session.WithUserEmail("ada@example.com"),
		session.WithOnChange(func(c session.Change) { changes = append(changes, c) }),
	)

	require.Contains(t, m.Snapshot().Greeting, "ada")

	_, err := m.Submit(context.Background(), "ping")
	require.NoError(t, err)

	require.Len(t, changes, 1)
	require.Equal(t, "s-1", changes[0].SessionID)
	require.Empty(t, changes[0].Greeting)
	require.Len(t, changes[0].View, 2)
	require.True(t, changes[0].View[1].Anchor)
	require.Equal(t, "ping", changes[0].View[1].Body)
}

func TestChangesDeliveredInOrder(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})

	var mu sync.Mutex
	var lengths []int
	first := true
	m := session.NewManager(answer.Echo, session.WithOnChange(func(c session.Change) {
		mu.Lock()
		lengths = append(lengths, len(c.Transcript))
		wait := first
		first = false
		mu.Unlock()
		if wait {
			close(entered)
			<-release
		}
	}))

	done := make(chan error, 1)
	go func() {
		_, err := m.Submit(ctx, "one")
		done <- err
	}()

	<-entered
	require.Equal(t, session.StateSending, m.State())
	_, err := m.Submit(ctx, "two")
	require.ErrorIs(t, err, chat.ErrSubmissionPending)

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("first submission did not finish")
	}
	require.Equal(t, session.StateIdle, m.State())

	_, err = m.Submit(ctx, "two")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{3, 5}, lengths)
	require.Len(t, m.Transcript(), lengths[len(lengths)-1])
}

func TestStoreSnapshotsAndResume(t *testing.T) {
	ctx := context.Background()
	store := drivers.NewInMemoryStore()

	m := session.NewManager(answer.Echo,
		session.WithSessionID("s-1"),
		session.WithStore(store),
		session.WithPolicy(chat.Policy{MaxTurns: 5}),
		session.WithUserEmail("ada@example.com"),
	)
	for _, p := range []string{"one", "two", "three"} {
		_, err := m.Submit(ctx, p)
		require.NoError(t, err)
	}

	data, err := store.Get(ctx, "s-1")
	require.NoError(t, err)
	require.Equal(t, int64(3), data.Version)
	require.Equal(t, 3, data.Exchanges)
	require.Equal(t, m.Transcript(), data.Transcript)

	resumed, err := session.Resume(ctx, store, "s-1", answer.Echo)
	require.NoError(t, err)
	require.Equal(t, m.Transcript(), resumed.Transcript())
	require.Equal(t, 3, resumed.Exchanges())

	_, err = resumed.Submit(ctx, "four")
	require.NoError(t, err)
	require.Len(t, resumed.Transcript(), 5)

	data, err = store.Get(ctx, "s-1")
	require.NoError(t, err)
	require.Equal(t, int64(4), data.Version)
	require.Equal(t, "four", data.Transcript[4].Text())
	require.Equal(t, "ada@example.com", data.UserEmail)
}

func TestResumeMissingSession(t *testing.T) {
	_, err := session.Resume(context.Background(), drivers.NewInMemoryStore(), "nope", answer.Echo)
	require.ErrorIs(t, err, chat.ErrNotFound)
}

type failingStore struct {
	session.Store
}

func (failingStore) Create(context.Context, *session.SessionData) error {
	return errors.New("store down")
}

func TestStoreFailureDoesNotFailExchange(t *testing.T) {
	m := session.NewManager(answer.Echo, session.WithStore(failingStore{}))

	got, err := m.Submit(context.Background(), "still works")
	require.NoError(t, err)
	require.Len(t, got, 3)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "idle", session.StateIdle.String())
	require.Equal(t, "sending", session.StateSending.String())
}
