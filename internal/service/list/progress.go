package list

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ErrProgressNotFound is returned when no progress is recorded for an import.
var ErrProgressNotFound = errors.New("import progress not found")

// ProgressTTL bounds how long finished imports stay queryable.
const ProgressTTL = 24 * time.Hour

// ProgressTracker records the live state of imports. Failures are reported
// to the caller but never abort an import.
type ProgressTracker interface {
	Start(ctx context.Context, p domain.ImportProgress) error
	Update(ctx context.Context, importID string, rowsRead, newlyAdded int64) error
	Finish(ctx context.Context, importID string, status domain.ImportStatus, errMsg string, newlyAdded int64) error
	Get(ctx context.Context, importID string) (*domain.ImportProgress, error)
}

// NopProgress discards progress.
type NopProgress struct{}

func (NopProgress) Start(context.Context, domain.ImportProgress) error { return nil }
func (NopProgress) Update(context.Context, string, int64, int64) error { return nil }
func (NopProgress) Finish(context.Context, string, domain.ImportStatus, string, int64) error {
	return nil
}
func (NopProgress) Get(context.Context, string) (*domain.ImportProgress, error) {
	return nil, ErrProgressNotFound
}

// RedisProgress keeps one hash per import under import:progress:<id>.
type RedisProgress struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisProgress creates a tracker on rdb.
func NewRedisProgress(rdb *redis.Client) *RedisProgress {
	return &RedisProgress{rdb: rdb, ttl: ProgressTTL}
}

func progressKey(importID string) string {
	return fmt.Sprintf("import:progress:%s", importID)
}

func (p *RedisProgress) write(ctx context.Context, importID string, values map[string]any) error {
	key := progressKey(importID)
	pipe := p.rdb.TxPipeline()
	pipe.HSet(ctx, key, values)
	pipe.Expire(ctx, key, p.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Start records a new import in processing state.
func (p *RedisProgress) Start(ctx context.Context, pr domain.ImportProgress) error {
	return p.write(ctx, pr.ImportID, map[string]any{
		"list_id":     pr.ListID,
		"status":      string(pr.Status),
		"rows_read":   pr.RowsRead,
		"newly_added": pr.NewlyAdded,
		"error":       "",
	})
}

// Update sets the row counters. A zero newlyAdded leaves the stored value.
func (p *RedisProgress) Update(ctx context.Context, importID string, rowsRead, newlyAdded int64) error {
	values := map[string]any{"rows_read": rowsRead}
	if newlyAdded > 0 {
		values["newly_added"] = newlyAdded
	}
	return p.write(ctx, importID, values)
}

// Finish records the terminal status.
func (p *RedisProgress) Finish(ctx context.Context, importID string, status domain.ImportStatus, errMsg string, newlyAdded int64) error {
	return p.write(ctx, importID, map[string]any{
		"status":      string(status),
		"error":       errMsg,
		"newly_added": newlyAdded,
	})
}

// Get reads the current progress of an import.
func (p *RedisProgress) Get(ctx context.Context, importID string) (*domain.ImportProgress, error) {
	vals, err := p.rdb.HGetAll(ctx, progressKey(importID)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, ErrProgressNotFound
	}
	rows, _ := strconv.ParseInt(vals["rows_read"], 10, 64)
	added, _ := strconv.ParseInt(vals["newly_added"], 10, 64)
	return &domain.ImportProgress{
		ImportID:   importID,
		ListID:     vals["list_id"],
		Status:     domain.ImportStatus(vals["status"]),
		RowsRead:   rows,
		NewlyAdded: added,
		Error:      vals["error"],
	}, nil
}

// Progress returns the recorded progress of an import.
func (s *Service) Progress(ctx context.Context, importID string) (*domain.ImportProgress, error) {
	return s.progress.Get(ctx, importID)
}
