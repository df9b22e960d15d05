package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps conversation state in redis. Each user owns a hash of
// JSON-encoded values and a plain string key holding the dialog step.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore constructs a redis-backed Store. Keys are namespaced by prefix;
// a positive ttl is refreshed on every write.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, ErrNilStore
	}
	if prefix == "" {
		prefix = "fsm:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}, nil
}

func (s *RedisStore) dataKey(userID int64) string {
	return s.prefix + strconv.FormatInt(userID, 10) + ":data"
}

func (s *RedisStore) stateKey(userID int64) string {
	return s.prefix + strconv.FormatInt(userID, 10) + ":state"
}

// Data returns the user's stored values.
func (s *RedisStore) Data(ctx context.Context, userID int64) (map[string]any, error) {
	key := s.dataKey(userID)
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("state: hgetall %s: %w", key, err)
	}
	out := make(map[string]any, len(fields))
	for k, raw := range fields {
		v, err := decodeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("state: field %s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// Update merges patch into the user's hash.
func (s *RedisStore) Update(ctx context.Context, userID int64, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	fields := make(map[string]any, len(patch))
	for k, v := range patch {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("state: encode field %s: %w", k, err)
		}
		fields[k] = string(raw)
	}

	key := s.dataKey(userID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
		pipe.Expire(ctx, s.stateKey(userID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("state: hset %s: %w", key, err)
	}
	return nil
}

// Clear drops both the data hash and the state key.
func (s *RedisStore) Clear(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, s.dataKey(userID), s.stateKey(userID)).Err(); err != nil {
		return fmt.Errorf("state: clear %d: %w", userID, err)
	}
	return nil
}

// SetState records the user's current dialog step.
func (s *RedisStore) SetState(ctx context.Context, userID int64, st State) error {
	key := s.stateKey(userID)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, string(st), s.ttl)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.dataKey(userID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("state: set %s: %w", key, err)
	}
	return nil
}

// State returns the user's current dialog step, or StateIdle if none exists.
func (s *RedisStore) State(ctx context.Context, userID int64) (State, error) {
	key := s.stateKey(userID)
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return StateIdle, nil
	}
	if err != nil {
		return StateIdle, fmt.Errorf("state: get %s: %w", key, err)
	}
	if val == "" {
		return StateIdle, nil
	}
	return State(val), nil
}
