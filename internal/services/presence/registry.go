// Package presence tracks what each live connection last reported about
// itself. The online table handed to clients is derived from it.
package presence

import (
	"sort"
	"time"

	"github.com/sasha-s/go-deadlock"

	"github.com/lanarcade/gamehub/internal/dependencies/clock"
	"github.com/lanarcade/gamehub/internal/model"
)

// Connection describes one live connection
type Connection struct {
	ID          model.ConnectionID `json:"id"`
	IP          string             `json:"ip"`
	Transport   string             `json:"transport"`
	Login       string             `json:"login,omitempty"`
	Path        string             `json:"path,omitempty"`
	ConnectedAt time.Time          `json:"connected_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Registry is the table of live connections
type Registry struct {
	mu          deadlock.RWMutex
	clock       clock.Clock
	connections map[model.ConnectionID]*Connection
}

// NewRegistry creates an empty registry
func NewRegistry(clk clock.Clock) *Registry {
	return &Registry{
		clock:       clk,
		connections: make(map[model.ConnectionID]*Connection),
	}
}

// Add records a new anonymous connection
func (r *Registry) Add(id model.ConnectionID, ip, transport string) {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[id] = &Connection{ID: id, IP: ip, Transport: transport, ConnectedAt: now, UpdatedAt: now}
}

// Set stores what the connection reported with "user is online". It
// returns false for a connection that is no longer registered.
func (r *Registry) Set(id model.ConnectionID, p model.Presence) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.connections[id]
	if !ok {
		return false
	}
	c.Login = p.Login
	c.Path = p.Path
	c.UpdatedAt = r.clock.Now()
	return true
}

// Clear forgets the login reported by the connection but keeps it registered
func (r *Registry) Clear(id model.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.connections[id]; ok {
		c.Login = ""
		c.Path = ""
		c.UpdatedAt = r.clock.Now()
	}
}

// ForgetLogin clears the login from every connection reporting it
func (r *Registry) ForgetLogin(login string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.connections {
		if c.Login == login {
			c.Login = ""
			c.Path = ""
			n++
		}
	}
	return n
}

// Remove drops the connection. It reports whether the connection had a login.
func (r *Registry) Remove(id model.ConnectionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.connections[id]
	if !ok {
		return false
	}
	delete(r.connections, id)
	return c.Login != ""
}

// Online returns login to path for every identified connection. When a
// login is open on several connections the most recently updated path wins.
func (r *Registry) Online() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	online := make(map[string]string)
	latest := make(map[string]time.Time)
	for _, c := range r.connections {
		if c.Login == "" {
			continue
		}
		if t, seen := latest[c.Login]; seen && t.After(c.UpdatedAt) {
			continue
		}
		online[c.Login] = c.Path
		latest[c.Login] = c.UpdatedAt
	}
	return online
}

// Count returns the number of live connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// List returns every connection ordered by connect time
func (r *Registry) List() []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Connection, 0, len(r.connections))
	for _, c := range r.connections {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}
