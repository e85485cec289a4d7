package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hospitalcare/appointments/internal/domain/providers"
	redisclient "github.com/hospitalcare/appointments/internal/infrastructure/clients/redis"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker grants leases with SET NX PX
type RedisLocker struct {
	client *redisclient.Client
}

var _ providers.Locker = (*RedisLocker)(nil)

// NewRedisLocker creates a Redis-backed locker
func NewRedisLocker(client *redisclient.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// TryAcquire takes the lease if nobody holds it
func (l *RedisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (providers.Lock, error) {
	token := uuid.NewString()
	ok, err := l.client.Client().SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return &redisLock{client: l.client, key: key, token: token}, nil
}

type redisLock struct {
	client *redisclient.Client
	key    string
	token  string
	once   sync.Once
	err    error
}

func (l *redisLock) Release(ctx context.Context) error {
	l.once.Do(func() {
		err := releaseScript.Run(ctx, l.client.Client(), []string{l.key}, l.token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			l.err = fmt.Errorf("failed to release lock %s: %w", l.key, err)
		}
	})
	return l.err
}

// LocalLocker is a single-process Locker used when Redis is disabled
type LocalLocker struct {
	mu     sync.Mutex
	leases map[string]time.Time
	now    func() time.Time
}

var _ providers.Locker = (*LocalLocker)(nil)

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{leases: make(map[string]time.Time), now: time.Now}
}

// TryAcquire takes the lease if it is free or expired
func (l *LocalLocker) TryAcquire(_ context.Context, key string, ttl time.Duration) (providers.Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if until, held := l.leases[key]; held && now.Before(until) {
		return nil, nil
	}
	until := now.Add(ttl)
	l.leases[key] = until
	return &localLock{locker: l, key: key, until: until}, nil
}

type localLock struct {
	locker *LocalLocker
	key    string
	until  time.Time
	once   sync.Once
}

func (l *localLock) Release(context.Context) error {
	l.once.Do(func() {
		l.locker.mu.Lock()
		defer l.locker.mu.Unlock()
		if l.locker.leases[l.key].Equal(l.until) {
			delete(l.locker.leases, l.key)
		}
	})
	return nil
}
