// Package distlock provides best-effort cross-instance mutual exclusion.
// The RSS poller uses it so that only one process polls at a time.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Extend when the lock was lost.
var ErrNotHeld = errors.New("lock not held")

// Lock is a non-blocking distributed lock. A single Lock value must not be
// shared between goroutines.
type Lock interface {
	// TryAcquire reports whether the lock was taken.
	TryAcquire(ctx context.Context) (bool, error)
	// Release gives the lock up if this instance still owns it.
	Release(ctx context.Context) error
}

// New returns a redis lock when rdb is non-nil, otherwise a postgres
// advisory lock on db.
func New(rdb *redis.Client, db *sql.DB, name string, ttl time.Duration) Lock {
	if rdb != nil {
		return NewRedisLock(rdb, name, ttl)
	}
	return NewAdvisoryLock(db, name)
}

// Run calls fn only if l can be acquired and releases it afterwards. It
// reports whether fn ran.
func Run(ctx context.Context, l Lock, fn func(ctx context.Context) error) (bool, error) {
	ok, err := l.TryAcquire(ctx)
	if err != nil || !ok {
		return false, err
	}
	defer func() {
		// Release even when ctx is already done.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = l.Release(rctx)
	}()
	return true, fn(ctx)
}

// AdvisoryLock is a session-level postgres advisory lock. It is pinned to
// one pooled connection for as long as it is held, and a dropped
// connection frees it.
type AdvisoryLock struct {
	db   *sql.DB
	id   int64
	conn *sql.Conn
}

// NewAdvisoryLock derives the lock id from name.
func NewAdvisoryLock(db *sql.DB, name string) *AdvisoryLock {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return &AdvisoryLock{db: db, id: int64(h.Sum64())}
}

func (l *AdvisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	if l.conn != nil {
		return false, nil
	}
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("advisory lock conn: %w", err)
	}
	var ok bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.id).Scan(&ok); err != nil {
		conn.Close()
		return false, fmt.Errorf("advisory lock %d: %w", l.id, err)
	}
	if !ok {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

func (l *AdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.id)
	cerr := l.conn.Close()
	l.conn = nil
	return errors.Join(err, cerr)
}
