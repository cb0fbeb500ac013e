package services

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/ledgerly/backend/internal/logger"
	"github.com/rs/zerolog"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker hands out short-lived Redis locks. A nil client grants every lock,
// leaving serialization to the database.
type Locker struct {
	redis    *redis.Client
	newToken func() string
}

func NewLocker(redis *redis.Client) *Locker {
	return &Locker{redis: redis, newToken: uuid.NewString}
}

// Acquire returns ok=false when another holder owns key. The returned release
// func is always safe to call.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error) {
	noop := func() {}
	if l == nil || l.redis == nil {
		return noop, true, nil
	}

	token := l.newToken()
	ok, err = l.redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return noop, true, err
	}
	if !ok {
		return noop, false, nil
	}

	log := logger.FromContext(ctx, zerolog.Nop())
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		released, err := releaseScript.Run(releaseCtx, l.redis, []string{key}, token).Int()
		if err != nil {
			log.Debug().Err(err).Str("lock", key).Msg("Failed to release lock, waiting for expiry")
			return
		}
		if released == 0 {
			log.Debug().Str("lock", key).Msg("Lock expired before release")
		}
	}, true, nil
}
