// file: internals/features/finance/scheduler/locker.go
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker hands out named, expiring locks. ok=false means someone else holds
// the lock; release is nil in that case.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

/* ===================== redis ===================== */

// releaseScript hanya hapus key kalau token-nya masih milik kita; lock yang
// sudah expired dan diambil replika lain tidak disentuh.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client, prefix: "finance:cron:"}
}

// NewRedisLockerFromURL parse URL redis:// (REDIS_URL).
func NewRedisLockerFromURL(url string) (*RedisLocker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewRedisLocker(redis.NewClient(opt)), nil
}

func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	k := l.prefix + key
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, k, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{k}, token).Err()
	}
	return release, true, nil
}

/* ===================== in-process ===================== */

// LocalLocker cukup untuk satu replika.
type LocalLocker struct {
	mu    sync.Mutex
	seq   uint64
	held  map[string]localLock
	clock func() time.Time
}

type localLock struct {
	token   uint64
	expires time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]localLock{}, clock: time.Now}
}

func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return nil, false, nil
	}
	l.seq++
	token := l.seq
	l.held[key] = localLock{token: token, expires: now.Add(ttl)}

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.held[key]; ok && cur.token == token {
			delete(l.held, key)
		}
	}, true, nil
}
