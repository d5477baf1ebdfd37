package supabase

import (
	"context"
	"time"

	"github.com/creastat/chat"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/supabase-community/supabase-go"
)

const defaultCacheTTL = 5 * time.Minute

// ErrAssistantNotFound is returned when no active assistant has the token.
var ErrAssistantNotFound = errors.New("assistant not found")

// Config holds Supabase connection configuration.
type Config struct {
	URL      string
	APIKey   string
	CacheTTL time.Duration // Default: 5 minutes
}

// Client implements Store on the Supabase REST API with a TTL cache in front.
type Client struct {
	client     *supabase.Client
	assistants *ttlCache[*Assistant]
	profiles   *ttlCache[*Profile]
}

// New creates a Supabase-backed Store.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.Wrap(chat.ErrInvalidConfig, "supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.Wrap(chat.ErrInvalidConfig, "supabase API key is required")
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaultCacheTTL
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create supabase client")
	}

	return &Client{
		client:     client,
		assistants: newTTLCache[*Assistant](cfg.CacheTTL),
		profiles:   newTTLCache[*Profile](cfg.CacheTTL),
	}, nil
}

// GetAssistantByToken implements Store.
func (c *Client) GetAssistantByToken(ctx context.Context, publicToken string) (*Assistant, error) {
	if cached, ok := c.assistants.get(publicToken); ok {
		return cached, nil
	}

	var assistants []Assistant
	_, err := c.client.From("assistants").
		Select("*", "", false).
		Eq("public_token", publicToken).
		Eq("is_active", "true").
		ExecuteTo(&assistants)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get assistant by token")
	}
	if len(assistants) == 0 {
		return nil, ErrAssistantNotFound
	}

	assistant := &assistants[0]
	c.assistants.put(publicToken, assistant)

	log.Debug().Str("assistant_id", assistant.ID).Str("name", assistant.Name).Msg("Loaded assistant")
	return assistant, nil
}

// GetProfile implements Store.
func (c *Client) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	if cached, ok := c.profiles.get(userID); ok {
		return cached, nil
	}

	var profile Profile
	_, err := c.client.From("profiles").
		Select("*", "", false).
		Eq("id", userID).
		Single().
		ExecuteTo(&profile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get profile %s", userID)
	}

	c.profiles.put(userID, &profile)
	return &profile, nil
}

// Close implements Store. The REST client holds no connection.
func (c *Client) Close() error {
	return nil
}

var _ Store = (*Client)(nil)
