package redis

import (
	"fmt"
	"strings"

	"github.com/lanarcade/gamehub/internal/model"
)

// Key prefix for all lobby data
const keyPrefix = "gamehub"

// snapshotKey returns the Redis key holding the latest frame for event
func snapshotKey(event model.EventType) string {
	return fmt.Sprintf("%s:snapshot:%s", keyPrefix, strings.ReplaceAll(string(event), " ", "_"))
}

// eventsChannel returns the pub/sub channel frames are published on
func eventsChannel() string {
	return fmt.Sprintf("%s:events", keyPrefix)
}
