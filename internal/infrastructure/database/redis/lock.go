package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

var (
	ErrLockNotHeld = errors.New(errors.ErrCodeConflict, "lock not held")
)

const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

const extendScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`

// RunLock keeps two workers from running the same pass at once. It is a
// single-key SET NX lock owned by a random token.
type RunLock struct {
	client *Client
	name   string
	token  string
	ttl    time.Duration
	logger logging.Logger
}

func NewRunLock(client *Client, name string, ttl time.Duration, log logging.Logger) *RunLock {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &RunLock{
		client: client,
		name:   name,
		token:  uuid.NewString(),
		ttl:    ttl,
		logger: log,
	}
}

func (l *RunLock) key() string {
	return l.client.Key("lock", l.name)
}

// TryLock returns false without error when another owner holds the lock.
func (l *RunLock) TryLock(ctx context.Context) (bool, error) {
	ok, err := l.client.rdb.SetNX(ctx, l.key(), l.token, l.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "acquire run lock").WithDetail(l.name)
	}
	if ok {
		l.logger.Debug("run lock acquired", logging.String("lock", l.name))
	}
	return ok, nil
}

// Extend pushes the expiry out by the lock TTL while the lock is still ours.
func (l *RunLock) Extend(ctx context.Context) error {
	res, err := l.client.rdb.Eval(ctx, extendScript, []string{l.key()}, l.token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "extend run lock").WithDetail(l.name)
	}
	if res == 0 {
		return ErrLockNotHeld.WithDetail(l.name)
	}
	return nil
}

func (l *RunLock) Unlock(ctx context.Context) error {
	res, err := l.client.rdb.Eval(ctx, unlockScript, []string{l.key()}, l.token).Int64()
	if err != nil && err != redis.Nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "release run lock").WithDetail(l.name)
	}
	if res == 0 {
		return ErrLockNotHeld.WithDetail(l.name)
	}
	return nil
}

// Hold extends the lock every ttl/3 until ctx is done. Extension failures are
// logged; the caller keeps running.
func (l *RunLock) Hold(ctx context.Context) {
	interval := l.ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Extend(ctx); err != nil && ctx.Err() == nil {
				l.logger.Warn("run lock extension failed", logging.String("lock", l.name), logging.Err(err))
			}
		}
	}
}
