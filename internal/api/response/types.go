package response

import (
	"time"

	"github.com/lanarcade/gamehub/internal/services/presence"
)

// Status is the body of GET /status
type Status struct {
	TotalClients     int `json:"total_clients"`
	TotalUsers       int `json:"total_users"`
	ActiveGames      int `json:"active_games"`
	GamesSizeInBytes int `json:"games_size_in_bytes"`
}

// Connection describes one live connection
type Connection struct {
	ID          string    `json:"id"`
	IP          string    `json:"ip"`
	Transport   string    `json:"transport"`
	Login       string    `json:"login,omitempty"`
	Path        string    `json:"path,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

// ConnectionFromPresence converts a presence.Connection
func ConnectionFromPresence(c presence.Connection) Connection {
	return Connection{
		ID:          string(c.ID),
		IP:          c.IP,
		Transport:   c.Transport,
		Login:       c.Login,
		Path:        c.Path,
		ConnectedAt: c.ConnectedAt,
	}
}

// Clients is the body of GET /clients
type Clients struct {
	TotalClients int               `json:"total_clients"`
	Clients      []string          `json:"clients"`
	Connections  []Connection      `json:"connections"`
	Online       map[string]string `json:"online"`
}

// Health is the body of GET /health
type Health struct {
	Status string `json:"status"`
}
