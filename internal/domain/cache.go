package domain

import (
	"context"
	"time"
)

// RunCache holds live replay state for readers that must not block the
// engine: the latest portfolio value and run progress, refreshed as the
// replay advances.
type RunCache interface {
	SetProgress(ctx context.Context, runID string, seq int, value float64, ts time.Time) error
	GetProgress(ctx context.Context, runID string) (seq int, value float64, ts time.Time, err error)
	SetStatus(ctx context.Context, runID, status string) error
	GetStatus(ctx context.Context, runID string) (string, error)
	Invalidate(ctx context.Context, runID string) error
}

// RunProgress is the live view of a run assembled from the cache, falling
// back to the store once cache entries expire.
type RunProgress struct {
	RunID     string    `json:"run_id"`
	Status    string    `json:"status"`
	Seq       int       `json:"seq"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
