package services

import (
	"context"
	"sync"
	"time"

	"khoomi-api-io/checkout/pkg/util"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MutationGuard admits one cart mutation per key at a time. Acquire fails
// with ErrCartBusy instead of waiting.
type MutationGuard interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// LocalMutationGuard guards mutations within this process.
type LocalMutationGuard struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func NewLocalMutationGuard() *LocalMutationGuard {
	return &LocalMutationGuard{busy: make(map[string]struct{})}
}

func (g *LocalMutationGuard) Acquire(_ context.Context, key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.busy[key]; held {
		return nil, ErrCartBusy
	}
	g.busy[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.busy, key)
			g.mu.Unlock()
		})
	}, nil
}

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisMutationGuard guards mutations across every instance sharing the
// redis server. Locks expire after ttl so a crashed holder cannot wedge a
// cart.
type RedisMutationGuard struct {
	client *redis.Client
	ttl    time.Duration
	local  *LocalMutationGuard
}

func NewRedisMutationGuard(client *redis.Client, ttl time.Duration) *RedisMutationGuard {
	return &RedisMutationGuard{client: client, ttl: ttl, local: NewLocalMutationGuard()}
}

func (g *RedisMutationGuard) Acquire(ctx context.Context, key string) (func(), error) {
	releaseLocal, err := g.local.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}

	lockKey := "cart-lock:" + key
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, lockKey, token, g.ttl).Result()
	if err != nil {
		releaseLocal()
		return nil, errors.Wrap(err, "acquire cart lock")
	}
	if !ok {
		releaseLocal()
		return nil, ErrCartBusy
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, g.client, []string{lockKey}, token).Err(); err != nil {
				util.LogWarning("cart lock release failed", zap.String("key", lockKey), zap.Error(err))
			}
			releaseLocal()
		})
	}, nil
}

type heldLockKey struct{ key string }

// lock acquires key on guard unless ctx already holds it, so nested
// operations under one checkout reuse the outer lock.
func lock(ctx context.Context, guard MutationGuard, key string) (context.Context, func(), error) {
	if ctx.Value(heldLockKey{key}) != nil {
		return ctx, func() {}, nil
	}
	release, err := guard.Acquire(ctx, key)
	if err != nil {
		return ctx, nil, err
	}
	return context.WithValue(ctx, heldLockKey{key}, true), release, nil
}
