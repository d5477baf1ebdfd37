package drivers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/creastat/chat"
	"github.com/creastat/chat/session"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	sessionKeyPrefix = "session:"
	defaultTTL       = 24 * time.Hour
)

// RedisStore implements session.Store on Redis. Updates use WATCH/MULTI/EXEC so a
// stale Version is detected even with several writers.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStore creates a Redis-backed store. A ttl <= 0 means 24 hours.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
		prefix: sessionKeyPrefix,
	}
}

// Create implements session.Store.
func (s *RedisStore) Create(ctx context.Context, data *session.SessionData) error {
	now := time.Now()
	data.CreatedAt = now
	data.UpdatedAt = now
	data.Version = 1

	val, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "could not encode session")
	}

	return s.client.Set(ctx, s.key(data.ID), val, s.ttl).Err()
}

// Get implements session.Store. The TTL is refreshed on every read.
func (s *RedisStore) Get(ctx context.Context, id string) (*session.SessionData, error) {
	key := s.key(id)
	val, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var data session.SessionData
	if err := json.Unmarshal(val, &data); err != nil {
		return nil, errors.Wrap(err, "could not decode session")
	}

	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Could not refresh session TTL")
	}

	return &data, nil
}

// Update implements session.Store.
func (s *RedisStore) Update(ctx context.Context, data *session.SessionData) error {
	key := s.key(data.ID)

	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return chat.ErrNotFound
		}
		if err != nil {
			return err
		}

		var stored session.SessionData
		if err := json.Unmarshal(val, &stored); err != nil {
			return errors.Wrap(err, "could not decode session")
		}
		if stored.Version != data.Version {
			return chat.ErrVersionConflict
		}

		data.Version++
		data.CreatedAt = stored.CreatedAt
		data.UpdatedAt = time.Now()

		newVal, err := json.Marshal(data)
		if err != nil {
			return errors.Wrap(err, "could not encode session")
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newVal, s.ttl)
			return nil
		})
		return err
	}, key)
}

// Delete implements session.Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

// Close implements session.Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

var _ session.Store = (*RedisStore)(nil)
