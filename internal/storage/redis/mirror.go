// Package redis mirrors published lobby tables into Redis so tools outside
// the process can read the latest snapshot or subscribe to changes. The
// in-memory tables stay authoritative; nothing is ever read back.
package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sasha-s/go-deadlock"

	"github.com/lanarcade/gamehub/internal/model"
	"github.com/lanarcade/gamehub/internal/services/broadcast"
)

// Mirror is a broadcast sink writing frames to Redis
type Mirror struct {
	client *redis.Client
	cfg    Config
	logger *slog.Logger

	mu      deadlock.Mutex
	digests map[model.EventType]uint64
}

// Ensure Mirror implements broadcast.Sink
var _ broadcast.Sink = (*Mirror)(nil)

// New connects to Redis and creates a mirror
func New(cfg Config, logger *slog.Logger) (*Mirror, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewWithClient(client, cfg, logger), nil
}

// NewWithClient creates a mirror with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config, logger *slog.Logger) *Mirror {
	if cfg.Channel == "" {
		cfg.Channel = eventsChannel()
	}
	return &Mirror{
		client:  client,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "redis-mirror")),
		digests: make(map[model.EventType]uint64),
	}
}

// Close closes the Redis connection
func (m *Mirror) Close() error {
	return m.client.Close()
}

// Deliver stores each frame under its snapshot key and publishes it. Frames
// whose bytes match the last mirrored frame for the same event are skipped.
func (m *Mirror) Deliver(ctx context.Context, frames []broadcast.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pipe := m.client.Pipeline()
	pending := make(map[model.EventType]uint64)
	for _, f := range frames {
		digest := xxhash.Sum64(f.Data)
		if last, ok := m.digests[f.Event]; ok && last == digest {
			continue
		}
		pipe.Set(ctx, snapshotKey(f.Event), f.Data, m.cfg.SnapshotTTL)
		pipe.Publish(ctx, m.cfg.Channel, f.Data)
		pending[f.Event] = digest
	}
	if len(pending) == 0 {
		return nil
	}

	if _, err := pipe.Exec(ctx); err != nil {
		m.logger.Warn("mirror write failed", slog.String("error", err.Error()))
		return err
	}
	for event, digest := range pending {
		m.digests[event] = digest
	}
	return nil
}

// Latest returns the last mirrored frame for event
func (m *Mirror) Latest(ctx context.Context, event model.EventType) ([]byte, error) {
	data, err := m.client.Get(ctx, snapshotKey(event)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrNoSnapshot
		}
		return nil, err
	}
	return data, nil
}
