package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serialises work on a key across goroutines or processes
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// unlockScript deletes the key only while it still holds our token
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock holds each key under a random token, so a hold that outlived
// its TTL cannot release a lock taken since by someone else.
type RedisLock struct {
	client *redis.Client

	mu     sync.Mutex
	tokens map[string]string
}

func NewRedisLock(client *redis.Client) *RedisLock {
	return &RedisLock{client: client, tokens: make(map[string]string)}
}

// Connect opens a client on redisAddr and checks it answers
func Connect(ctx context.Context, redisAddr string) (*redis.Client, error) {
	const op = "lock.Connect"

	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return client, nil
}

func (r *RedisLock) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	const op = "lock.RedisLock.Lock"

	token := uuid.NewString()
	result, err := r.client.SetNX(ctx, "lock:"+key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if result {
		r.mu.Lock()
		r.tokens[key] = token
		r.mu.Unlock()
	}

	return result, nil
}

// Unlock releases key if this process still owns it. Releasing an expired or
// foreign hold is a no-op.
func (r *RedisLock) Unlock(ctx context.Context, key string) error {
	const op = "lock.RedisLock.Unlock"

	r.mu.Lock()
	token, ok := r.tokens[key]
	delete(r.tokens, key)
	r.mu.Unlock()
	if !ok {
		return nil
	}

	if err := unlockScript.Run(ctx, r.client, []string{"lock:" + key}, token).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
