package background

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/blog-go/apperror"
)

// ReleaseFunc gives a held lock back.
type ReleaseFunc func(ctx context.Context) error

// Locker guards a sweep so that only one instance runs it at a time. TryLock never
// blocks waiting for the lock: ok is false when someone else holds it.
type Locker interface {
	TryLock(ctx context.Context) (release ReleaseFunc, ok bool, err error)
}

// NoopLocker always succeeds. It is the single-instance default.
type NoopLocker struct{}

func (NoopLocker) TryLock(context.Context) (ReleaseFunc, bool, error) {
	return func(context.Context) error { return nil }, true, nil
}

// sweepLockKey identifies the sweep in pg_advisory_lock's key space.
const sweepLockKey int64 = 0x626c6f67 // "blog"

// PgAdvisoryLocker holds a session-level advisory lock on a dedicated pooled connection.
// The connection stays checked out until release, since the lock belongs to the session.
type PgAdvisoryLocker struct {
	pool *pgxpool.Pool
	key  int64
}

// NewPgAdvisoryLocker creates a locker on pool. Give it the job pool, not the one serving requests.
func NewPgAdvisoryLocker(pool *pgxpool.Pool) *PgAdvisoryLocker {
	return &PgAdvisoryLocker{pool: pool, key: sweepLockKey}
}

func (l *PgAdvisoryLocker) TryLock(ctx context.Context) (ReleaseFunc, bool, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, false, apperror.NewDatabaseError("failed to acquire connection for sweep lock", err)
	}

	var locked bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&locked); err != nil {
		conn.Release()
		return nil, false, apperror.NewDatabaseError("pg_try_advisory_lock failed", err)
	}
	if !locked {
		conn.Release()
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", l.key); err != nil {
			return apperror.NewDatabaseError("pg_advisory_unlock failed", err)
		}
		return nil
	}
	return release, true, nil
}

// releaseScript deletes the key only if it still holds our token, so an expired lock
// that another instance has since taken is left alone.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is a SET NX PX lock with a random token per holder.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisLocker creates a locker. ttl bounds how long a crashed holder can block others;
// keep it above the longest expected sweep.
func NewRedisLocker(client *redis.Client, key string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, key: key, ttl: ttl}
}

// ConnectRedis parses url (redis://...) and pings the server.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, apperror.NewConfigError("invalid REDIS_URL", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, apperror.NewExternalServiceError(fmt.Sprintf("redis at %s is unreachable", opts.Addr), err)
	}
	return client, nil
}

func (l *RedisLocker) TryLock(ctx context.Context) (ReleaseFunc, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, apperror.NewExternalServiceError("redis SETNX failed", err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil && err != redis.Nil {
			return apperror.NewExternalServiceError("redis lock release failed", err)
		}
		return nil
	}
	return release, true, nil
}

var (
	_ Locker = NoopLocker{}
	_ Locker = (*PgAdvisoryLocker)(nil)
	_ Locker = (*RedisLocker)(nil)
)
