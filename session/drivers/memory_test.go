package drivers

import (
	"context"
	"testing"

	"github.com/creastat/chat"
	"github.com/creastat/chat/session"
	"github.com/stretchr/testify/require"
)

func newData(id string) *session.SessionData {
	return &session.SessionData{
		ID:         id,
		Transcript: chat.NewTranscript("seed", "be nice"),
		Policy:     chat.DefaultPolicy(),
	}
}

func TestInMemoryStore_CreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	t.Cleanup(func() { _ = s.Close() })

	data := newData("s-1")
	require.NoError(t, s.Create(ctx, data))
	require.Equal(t, int64(1), data.Version)
	require.False(t, data.CreatedAt.IsZero())

	got, err := s.Get(ctx, "s-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), got.Version)
	require.Len(t, got.Transcript, 1)

	q := "hi"
	got.Transcript = append(got.Transcript, chat.NewTurn("u", chat.RoleUser, &q))
	require.NoError(t, s.Update(ctx, got))
	require.Equal(t, int64(2), got.Version)

	again, err := s.Get(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, again.Transcript, 2)
	require.Equal(t, data.CreatedAt, again.CreatedAt)
}

func TestInMemoryStore_VersionConflict(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	require.NoError(t, s.Create(ctx, newData("s-1")))

	a, err := s.Get(ctx, "s-1")
	require.NoError(t, err)
	b, err := s.Get(ctx, "s-1")
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, a))
	err = s.Update(ctx, b)
	require.ErrorIs(t, err, chat.ErrVersionConflict)
	require.Equal(t, int64(1), b.Version)
}

func TestInMemoryStore_MissingSession(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	got, err := s.Get(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, got)

	err = s.Update(ctx, newData("nope"))
	require.ErrorIs(t, err, chat.ErrNotFound)
}

func TestInMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	require.NoError(t, s.Create(ctx, newData("s-1")))

	got, err := s.Get(ctx, "s-1")
	require.NoError(t, err)
	got.Transcript[0].ID = "mutated"
	got.Version = 99

	again, err := s.Get(ctx, "s-1")
	require.NoError(t, err)
	require.Equal(t, "seed", again.Transcript[0].ID)
	require.Equal(t, int64(1), again.Version)
}

func TestInMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	require.NoError(t, s.Create(ctx, newData("s-1")))
	require.NoError(t, s.Delete(ctx, "s-1"))

	got, err := s.Get(ctx, "s-1")
	require.NoError(t, err)
	require.Nil(t, got)
}
