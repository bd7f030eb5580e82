package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantfall/revival/internal/domain"
)

// runTTL bounds how long live run state lingers after the last update.
const runTTL = 24 * time.Hour

// RunCache implements domain.RunCache using Redis hashes. Each run's live
// state lives at key "run:{id}" with fields "seq", "value", "ts", and
// "status", refreshed as the replay advances.
type RunCache struct {
	rdb *redis.Client
}

var _ domain.RunCache = (*RunCache)(nil)

// NewRunCache creates a RunCache backed by the given Client.
func NewRunCache(c *Client) *RunCache {
	return &RunCache{rdb: c.Underlying()}
}

func runKey(runID string) string {
	return "run:" + runID
}

// SetProgress stores the latest timestep sequence number and portfolio value.
func (rc *RunCache) SetProgress(ctx context.Context, runID string, seq int, value float64, ts time.Time) error {
	key := runKey(runID)
	fields := map[string]interface{}{
		"seq":   strconv.Itoa(seq),
		"value": strconv.FormatFloat(value, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	pipe := rc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, runTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set progress %s: %w", runID, err)
	}
	return nil
}

// GetProgress retrieves the latest progress for a run. It returns
// domain.ErrNotFound when the run is unknown.
func (rc *RunCache) GetProgress(ctx context.Context, runID string) (int, float64, time.Time, error) {
	vals, err := rc.rdb.HGetAll(ctx, runKey(runID)).Result()
	if err != nil {
		return 0, 0, time.Time{}, fmt.Errorf("redis: get progress %s: %w", runID, err)
	}
	if len(vals) == 0 {
		return 0, 0, time.Time{}, domain.ErrNotFound
	}

	seq, err := strconv.Atoi(vals["seq"])
	if err != nil {
		return 0, 0, time.Time{}, fmt.Errorf("redis: progress %s: seq: %w", runID, err)
	}
	value, err := strconv.ParseFloat(vals["value"], 64)
	if err != nil {
		return 0, 0, time.Time{}, fmt.Errorf("redis: progress %s: value: %w", runID, err)
	}
	nanos, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return 0, 0, time.Time{}, fmt.Errorf("redis: progress %s: ts: %w", runID, err)
	}
	return seq, value, time.Unix(0, nanos).UTC(), nil
}

// SetStatus records the run's lifecycle status ("running", "completed",
// "failed").
func (rc *RunCache) SetStatus(ctx context.Context, runID, status string) error {
	key := runKey(runID)
	pipe := rc.rdb.Pipeline()
	pipe.HSet(ctx, key, "status", status)
	pipe.Expire(ctx, key, runTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set status %s: %w", runID, err)
	}
	return nil
}

// GetStatus retrieves the run's lifecycle status.
func (rc *RunCache) GetStatus(ctx context.Context, runID string) (string, error) {
	status, err := rc.rdb.HGet(ctx, runKey(runID), "status").Result()
	if err == redis.Nil {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis: get status %s: %w", runID, err)
	}
	return status, nil
}

// Invalidate removes a run's live state.
func (rc *RunCache) Invalidate(ctx context.Context, runID string) error {
	if err := rc.rdb.Del(ctx, runKey(runID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate %s: %w", runID, err)
	}
	return nil
}
