package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStateTTL bounds how long an abandoned dialog is kept in redis
const DefaultStateTTL = 24 * time.Hour

// RedisStore keeps dialog state as JSON values with a TTL
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func dialogKey(externalID int64) string {
	return "dialog:state:" + strconv.FormatInt(externalID, 10)
}

func (s *RedisStore) Get(ctx context.Context, externalID int64) (*State, error) {
	const op = "conversation.RedisStore.Get"

	raw, err := s.client.Get(ctx, dialogKey(externalID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return idle(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	if st.Data == nil {
		st.Data = map[string]string{}
	}
	return &st, nil
}

func (s *RedisStore) Save(ctx context.Context, externalID int64, st *State) error {
	const op = "conversation.RedisStore.Save"

	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.client.Set(ctx, dialogKey(externalID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, externalID int64) error {
	if err := s.client.Del(ctx, dialogKey(externalID)).Err(); err != nil {
		return fmt.Errorf("conversation.RedisStore.Clear: %w", err)
	}
	return nil
}
