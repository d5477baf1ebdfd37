package events

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/creastat/chat/answer"
	"github.com/creastat/chat/session"
	"github.com/stretchr/testify/require"
)

func TestWatermillSinkPublishesSessionChanges(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	messages, err := pubSub.Subscribe(ctx, DefaultTopic)
	require.NoError(t, err)

	sink := NewWatermillSink(pubSub, "")
	m := session.NewManager(
		answer.NewScripted(answer.Reply("hello *there*")),
		session.WithSessionID("s-1"),
		session.WithOnChange(sink.OnChange),
	)

	_, err = m.Submit(ctx, "hi")
	require.NoError(t, err)

	select {
	case msg := <-messages:
		msg.Ack()
		require.Equal(t, "s-1", msg.Metadata.Get("session_id"))

		e, err := Decode(msg)
		require.NoError(t, err)
		require.Equal(t, "s-1", e.SessionID)
		require.Len(t, e.Turns, 2)
		require.Empty(t, e.Greeting)

		anchor, ok := e.Anchor()
		require.True(t, ok)
		require.Equal(t, "hello *there*", anchor.Body)
	case <-ctx.Done():
		t.Fatal("no transcript change received")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(message.NewMessage(watermill.NewUUID(), []byte("not json")))
	require.Error(t, err)
}

func TestGreetingSnapshot(t *testing.T) {
	m := session.NewManager(answer.Echo, session.WithUserEmail("ada@example.com"))
	e := &TranscriptChanged{Greeting: m.Snapshot().Greeting}
	_, ok := e.Anchor()
	require.False(t, ok)
	require.Contains(t, e.Greeting, "ada")
}
