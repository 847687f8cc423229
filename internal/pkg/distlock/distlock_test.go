package distlock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/newsletter/internal/pkg/distlock"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestRedisLock_Exclusive(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()
	a := distlock.NewRedisLock(rdb, "rss-poller", time.Minute)
	b := distlock.NewRedisLock(rdb, "rss-poller", time.Minute)

	ok, err := a.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// b does not own it, so its release is a no-op.
	require.NoError(t, b.Release(ctx))
	assert.True(t, mr.Exists("lock:rss-poller"))

	require.NoError(t, a.Extend(ctx, 2*time.Minute))
	assert.Equal(t, 2*time.Minute, mr.TTL("lock:rss-poller"))
	assert.ErrorIs(t, b.Extend(ctx, time.Minute), distlock.ErrNotHeld)

	require.NoError(t, a.Release(ctx))
	assert.False(t, mr.Exists("lock:rss-poller"))

	ok, err = b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_Expires(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()
	a := distlock.NewRedisLock(rdb, "job", time.Second)
	ok, _ := a.TryAcquire(ctx)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	ok, err := distlock.NewRedisLock(rdb, "job", time.Second).TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRun(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()

	ran, err := distlock.Run(ctx, distlock.New(rdb, nil, "job", time.Minute), func(context.Context) error {
		assert.True(t, mr.Exists("lock:job"))
		return errors.New("boom")
	})
	assert.True(t, ran)
	assert.EqualError(t, err, "boom")
	assert.False(t, mr.Exists("lock:job"))

	holder := distlock.NewRedisLock(rdb, "job", time.Minute)
	_, _ = holder.TryAcquire(ctx)
	ran, err = distlock.Run(ctx, distlock.NewRedisLock(rdb, "job", time.Minute), func(context.Context) error {
		t.Fatal("must not run while held elsewhere")
		return nil
	})
	assert.False(t, ran)
	assert.NoError(t, err)
}

func TestAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT pg_try_advisory_lock\(\$1\)`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(`SELECT pg_advisory_unlock\(\$1\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ran, err := distlock.Run(context.Background(), distlock.New(nil, db, "job", time.Minute), func(context.Context) error {
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvisoryLock_Busy(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	ok, err := distlock.NewAdvisoryLock(db, "job").TryAcquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
