package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/creastat/chat"
	"github.com/creastat/chat/vectorstore"
	"github.com/rs/zerolog/log"
)

// DefaultRetrievalLimit is the number of passages fetched per question.
const DefaultRetrievalLimit = 4

// Embedder turns text into a vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retrieval augments the transcript handed to the next answerer with passages found
// for the latest user turn. The passages go into a system turn placed right after
// the seed. The caller's transcript is never modified; lookup failures are logged
// and the transcript is passed through unchanged.
type Retrieval struct {
	next     chat.Answerer
	embedder Embedder
	store    vectorstore.VectorStore
	filter   vectorstore.SearchFilter
	limit    int
}

// RetrievalOption configures Retrieval.
type RetrievalOption func(*Retrieval)

// WithSearchFilter restricts the passages searched.
func WithSearchFilter(filter vectorstore.SearchFilter) RetrievalOption {
	return func(r *Retrieval) {
		r.filter = filter
	}
}

// WithRetrievalLimit sets how many passages are fetched.
func WithRetrievalLimit(limit int) RetrievalOption {
	return func(r *Retrieval) {
		if limit > 0 {
			r.limit = limit
		}
	}
}

// NewRetrieval wraps next with retrieval augmentation.
func NewRetrieval(next chat.Answerer, embedder Embedder, store vectorstore.VectorStore, opts ...RetrievalOption) *Retrieval {
	r := &Retrieval{
		next:     next,
		embedder: embedder,
		store:    store,
		limit:    DefaultRetrievalLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Answer implements chat.Answerer.
func (r *Retrieval) Answer(ctx context.Context, transcript chat.Transcript) (*string, error) {
	return r.next.Answer(ctx, r.augment(ctx, transcript))
}

func (r *Retrieval) augment(ctx context.Context, transcript chat.Transcript) chat.Transcript {
	question, ok := transcript.LastOfRole(chat.RoleUser)
	if !ok || len(transcript) == 0 {
		return transcript
	}

	vector, err := r.embedder.Embed(ctx, question.Text())
	if err != nil {
		log.Warn().Err(err).Msg("Could not embed question, answering without context")
		return transcript
	}

	results, err := r.store.Search(ctx, vector, r.filter, r.limit)
	if err != nil {
		log.Warn().Err(err).Msg("Vector search failed, answering without context")
		return transcript
	}
	if len(results) == 0 {
		return transcript
	}

	log.Debug().Int("passages", len(results)).Msg("Adding retrieved context")

	contextText := formatPassages(results)
	contextTurn := chat.NewTurn(chat.NewTurnID(), chat.RoleSystem, &contextText)

	out := make(chat.Transcript, 0, len(transcript)+1)
	out = append(out, transcript[0], contextTurn)
	return append(out, transcript[1:]...)
}

func formatPassages(results []vectorstore.SearchResult) string {
	var b strings.Builder
	b.WriteString("Use the following passages when they are relevant to the question.\n")
	for i, res := range results {
		fmt.Fprintf(&b, "\n[%d] %s", i+1, strings.TrimSpace(res.Content))
	}
	return b.String()
}

var _ chat.Answerer = (*Retrieval)(nil)
