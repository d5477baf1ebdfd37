package answer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/creastat/chat"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newOpenAIServer(t *testing.T, status int, body string, seen *recordedRequest) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIAnswer(t *testing.T) {
	var seen recordedRequest
	srv := newOpenAIServer(t, http.StatusOK, `{
		"id": "cmpl-1",
		"object": "chat.completion",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "  **hi**  "}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 5, "completion_tokens": 1, "total_tokens": 6}
	}`, &seen)

	o, err := NewOpenAI(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	tr := transcriptWith("hello")
	tr = append(tr, chat.NewTurn("empty", chat.RoleAssistant, nil))
	got, err := o.Answer(context.Background(), tr)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "**hi**", *got)

	require.Equal(t, DefaultModel, seen.Model)
	require.Len(t, seen.Messages, 2)
	require.Equal(t, "system", seen.Messages[0].Role)
	require.Equal(t, "be helpful", seen.Messages[0].Content)
	require.Equal(t, "user", seen.Messages[1].Role)
}

func TestOpenAINoChoicesIsNoAnswer(t *testing.T) {
	srv := newOpenAIServer(t, http.StatusOK, `{"id": "cmpl-2", "choices": []}`, nil)

	o, err := NewOpenAI(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1", Model: "m"})
	require.NoError(t, err)

	got, err := o.Answer(context.Background(), transcriptWith("hello"))
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestOpenAIServerErrorPropagates(t *testing.T) {
	srv := newOpenAIServer(t, http.StatusInternalServerError,
		`{"error": {"message": "boom", "type": "server_error"}}`, nil)

	o, err := NewOpenAI(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = o.Answer(context.Background(), transcriptWith("hello"))
	require.Error(t, err)
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{})
	require.ErrorIs(t, err, chat.ErrInvalidConfig)

	_, err = NewOpenAIEmbedder("", "", "")
	require.ErrorIs(t, err, chat.ErrInvalidConfig)
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := newOpenAIServer(t, http.StatusOK, `{
		"object": "list",
		"data": [{"object": "embedding", "index": 0, "embedding": [0.25, 0.5]}],
		"model": "text-embedding-3-small"
	}`, nil)

	e, err := NewOpenAIEmbedder("test", srv.URL+"/v1", "")
	require.NoError(t, err)

	v, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, []float32{0.25, 0.5}, v)
}
