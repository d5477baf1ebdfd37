package answer

import (
	"context"
	"strings"

	"github.com/creastat/chat"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-4o-mini"

// OpenAIConfig configures the OpenAI chat completion backend.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// MaxTokens caps the completion length; 0 leaves it to the server.
	MaxTokens   int
	Temperature float32
}

// OpenAI answers with an OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	client *go_openai.Client
	config OpenAIConfig
}

// NewOpenAI creates the backend. The API key is required.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.Wrap(chat.ErrInvalidConfig, "openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	return &OpenAI{
		client: newOpenAIClient(cfg.APIKey, cfg.BaseURL),
		config: cfg,
	}, nil
}

func newOpenAIClient(apiKey, baseURL string) *go_openai.Client {
	config := go_openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return go_openai.NewClientWithConfig(config)
}

// Answer implements chat.Answerer. A response without choices, or with blank
// content, is reported as a missing answer rather than an error.
func (o *OpenAI) Answer(ctx context.Context, transcript chat.Transcript) (*string, error) {
	req := go_openai.ChatCompletionRequest{
		Model:       o.config.Model,
		Messages:    toOpenAIMessages(transcript),
		MaxTokens:   o.config.MaxTokens,
		Temperature: o.config.Temperature,
	}

	log.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Msg("OpenAI chat completion request")

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "openai chat completion failed")
	}

	if len(resp.Choices) == 0 {
		log.Warn().Str("model", req.Model).Msg("OpenAI returned no choices")
		return nil, nil
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, nil
	}

	log.Debug().
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Str("finish_reason", string(resp.Choices[0].FinishReason)).
		Msg("OpenAI chat completion done")

	return &content, nil
}

// toOpenAIMessages maps turns to request messages. Turns without content are skipped.
func toOpenAIMessages(transcript chat.Transcript) []go_openai.ChatCompletionMessage {
	msgs := make([]go_openai.ChatCompletionMessage, 0, len(transcript))
	for _, turn := range transcript {
		if turn.Content == nil {
			continue
		}

		var role string
		switch turn.Role {
		case chat.RoleSystem:
			role = go_openai.ChatMessageRoleSystem
		case chat.RoleUser:
			role = go_openai.ChatMessageRoleUser
		case chat.RoleAssistant:
			role = go_openai.ChatMessageRoleAssistant
		default:
			log.Debug().Str("role", string(turn.Role)).Msg("Skipping turn with unknown role")
			continue
		}

		msgs = append(msgs, go_openai.ChatCompletionMessage{
			Role:    role,
			Content: *turn.Content,
		})
	}
	return msgs
}

// OpenAIEmbedder turns text into vectors with the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client *go_openai.Client
	model  go_openai.EmbeddingModel
}

// NewOpenAIEmbedder creates an embedder. An empty model means text-embedding-3-small.
func NewOpenAIEmbedder(apiKey, baseURL, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, errors.Wrap(chat.ErrInvalidConfig, "openai api key is required")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAIEmbedder{
		client: newOpenAIClient(apiKey, baseURL),
		model:  go_openai.EmbeddingModel(model),
	}, nil
}

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, go_openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, errors.Wrap(err, "openai embeddings failed")
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai embeddings returned no data")
	}
	return resp.Data[0].Embedding, nil
}

var (
	_ chat.Answerer = (*OpenAI)(nil)
	_ Embedder      = (*OpenAIEmbedder)(nil)
)
