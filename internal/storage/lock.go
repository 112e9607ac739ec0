package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireLock takes a best-effort distributed lock with SET NX PX. ok is
// false when another holder owns the key. Without redis every call succeeds.
// The returned release only deletes the key while this caller still owns it.
func (s *Service) AcquireLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error) {
	if s.Redis == nil {
		return func() {}, true, nil
	}
	token := uuid.New().String()
	ok, err = s.Redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return func() {}, ok, err
	}
	return func() {
		_ = releaseScript.Run(context.Background(), s.Redis, []string{key}, token).Err()
	}, true, nil
}
