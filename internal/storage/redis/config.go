package redis

import "time"

// Config holds Redis connection and mirror behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// SnapshotTTL bounds how long a mirrored table outlives the server
	SnapshotTTL time.Duration

	// Channel receives every mirrored frame
	Channel string
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:          "redis://localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		SnapshotTTL:  time.Hour,
		Channel:      eventsChannel(),
	}
}
