package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/goroute/core/logger"
)

// Lease keeps ticks from overlapping across processes.
type Lease interface {
	// Acquire reports false when another holder owns the lease. release
	// is non-nil only when ok is true.
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

const DefaultLeaseKey = "goroute:tracking:tick"

// only the owner may drop the key
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease is a SET NX lease with a TTL so a crashed holder cannot
// block ticks forever.
type RedisLease struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisLease(client *redis.Client, key string, ttl time.Duration) *RedisLease {
	if key == "" {
		key = DefaultLeaseKey
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisLease{client: client, key: key, ttl: ttl}
}

func (l *RedisLease) Acquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		// the tick may have consumed the caller's deadline
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			logger.Warn(ctx, logger.CompTracking, "lease.release", slog.String("key", l.key), logger.Err(err))
		}
	}
	return release, true, nil
}
