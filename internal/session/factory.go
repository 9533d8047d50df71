package session

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-chat-widget/internal/config"
)

// FromConfig picks the store named by cfg.SessionStore. The redis client is
// only used, and then required, for the redis backend.
func FromConfig(cfg *config.Config, redisClient *redis.Client) (Store, error) {
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		if redisClient == nil {
			return nil, errors.New("session: redis store selected without a redis client")
		}
		return NewRedisStore(redisClient, cfg.SessionTTL), nil
	case config.SessionStoreFile:
		path := cfg.SessionFile
		if path == "" {
			path = DefaultFilePath()
		}
		return NewFileStore(path)
	case config.SessionStoreMemory, "":
		return NewMemoryStore(cfg.SessionTTL), nil
	default:
		return nil, fmt.Errorf("session: unknown store %q", cfg.SessionStore)
	}
}
