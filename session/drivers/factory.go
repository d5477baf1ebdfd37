// Package drivers provides the session.Store implementations.
package drivers

import (
	"strings"

	"github.com/creastat/chat"
	"github.com/creastat/chat/session"
)

// StoreType names a session store driver.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// ParseStoreType maps a configuration string to a StoreType.
func ParseStoreType(s string) (StoreType, error) {
	switch t := StoreType(strings.ToLower(strings.TrimSpace(s))); t {
	case StoreTypeMemory, StoreTypeRedis:
		return t, nil
	case "":
		return StoreTypeMemory, nil
	default:
		return "", chat.ErrInvalidStoreType
	}
}

// NewStore creates a session.Store of the given type.
// The Redis driver requires WithRedisClient.
func NewStore(storeType StoreType, opts ...StoreOption) (session.Store, error) {
	config := &storeConfig{}
	for _, opt := range opts {
		opt(config)
	}

	switch storeType {
	case StoreTypeMemory:
		return NewInMemoryStore(), nil

	case StoreTypeRedis:
		if config.redisClient == nil {
			return nil, chat.ErrInvalidConfig
		}
		s := NewRedisStore(config.redisClient, config.redisTTL)
		if config.keyPrefix != "" {
			s.prefix = config.keyPrefix
		}
		return s, nil

	default:
		return nil, chat.ErrInvalidStoreType
	}
}
