// README: Redis sweep lock (SET NX with TTL, token-checked release).
package trip

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

type RedisSweepLock struct {
	redis *redis.Client
}

func NewRedisSweepLock(r *redis.Client) *RedisSweepLock {
	return &RedisSweepLock{redis: r}
}

func (l *RedisSweepLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	release := func() {
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.redis, []string{key}, token).Err(); err != nil {
			log.Printf("[TRIP] action=release_sweep_lock key=%s err=%v", key, err)
		}
	}
	return release, true, nil
}
