package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const redisKeyPrefix = "widget_session:"

// RedisStore keeps bindings in Redis with a sliding TTL.
type RedisStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

// NewRedisStore returns nil when redisClient is nil.
func NewRedisStore(redisClient *redis.Client, ttl time.Duration) *RedisStore {
	if redisClient == nil {
		return nil
	}
	return &RedisStore{
		redis:  redisClient,
		tracer: otel.Tracer("clinicwidget.internal.session"),
		ttl:    ttl,
	}
}

func (s *RedisStore) Load(ctx context.Context, key string) (string, error) {
	if s == nil || s.redis == nil {
		return "", nil
	}
	if key == "" {
		return "", errKeyRequired
	}

	ctx, span := s.tracer.Start(ctx, "session.redis.load")
	defer span.End()

	raw, err := s.redis.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		span.RecordError(err)
		return "", fmt.Errorf("session: load %s: %w", key, err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("session: decode %s: %w", key, err)
	}
	if s.ttl > 0 {
		if err := s.redis.Expire(ctx, redisKey(key), s.ttl).Err(); err != nil {
			span.RecordError(err)
		}
	}
	return rec.SessionID, nil
}

func (s *RedisStore) Save(ctx context.Context, key, sessionID string) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if err := validate(key, sessionID); err != nil {
		return err
	}

	data, err := json.Marshal(Record{SessionID: sessionID, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("session: marshal record: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "session.redis.save")
	defer span.End()

	if err := s.redis.Set(ctx, redisKey(key), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: save %s: %w", key, err)
	}
	return nil
}

func redisKey(key string) string {
	return redisKeyPrefix + key
}
