// Package ws carries lobby events over websocket connections
package ws

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sasha-s/go-deadlock"
	"golang.org/x/time/rate"

	"github.com/lanarcade/gamehub/internal/api/apierr"
	"github.com/lanarcade/gamehub/internal/model"
	"github.com/lanarcade/gamehub/internal/services/broadcast"
	"github.com/lanarcade/gamehub/internal/services/lobby"
)

// Transport is the name connections from this package register under
const Transport = "ws"

// Dispatcher handles the lifecycle and events of a connection
type Dispatcher interface {
	Connect(ctx context.Context, conn model.ConnectionID, ip, transport string) error
	Disconnect(ctx context.Context, conn model.ConnectionID)
	Handle(ctx context.Context, req lobby.Request) (lobby.Reply, error)
}

// Config holds transport limits
type Config struct {
	// ConnPerIP caps simultaneous connections from one address
	ConnPerIP int
	// EventsPerSecond and Burst limit inbound events per connection
	EventsPerSecond float64
	Burst           int
	// TrustForwarded takes the client address from X-Forwarded-For
	TrustForwarded bool
}

// DefaultConfig returns default transport limits
func DefaultConfig() Config {
	return Config{
		ConnPerIP:       2,
		EventsPerSecond: 10,
		Burst:           20,
		TrustForwarded:  true,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// browser pages are served from other LAN hosts
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks every websocket client and delivers published frames to them
type Hub struct {
	dispatcher Dispatcher
	cfg        Config
	logger     *slog.Logger

	mu      deadlock.RWMutex
	clients map[model.ConnectionID]*Client
	perIP   map[string]int
	closed  bool
}

// Ensure Hub implements broadcast.Sink
var _ broadcast.Sink = (*Hub)(nil)

// NewHub creates a hub
func NewHub(dispatcher Dispatcher, cfg Config, logger *slog.Logger) *Hub {
	def := DefaultConfig()
	if cfg.ConnPerIP <= 0 {
		cfg.ConnPerIP = def.ConnPerIP
	}
	if cfg.EventsPerSecond <= 0 {
		cfg.EventsPerSecond = def.EventsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	return &Hub{
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "ws")),
		clients:    make(map[model.ConnectionID]*Client),
		perIP:      make(map[string]int),
	}
}

// ServeHTTP upgrades the request and runs the connection until it closes
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := h.clientIP(r)
	if !h.reserve(ip) {
		h.logger.Info("connection rejected, address limit reached", slog.String("ip", ip))
		apierr.WriteError(w, model.ErrTooManyConnections)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.release(ip)
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := &Client{
		hub:         h,
		conn:        conn,
		id:          model.ConnectionID(uuid.NewString()),
		ip:          ip,
		send:        make(chan []byte, sendBufferSize),
		limiter:     rate.NewLimiter(rate.Limit(h.cfg.EventsPerSecond), h.cfg.Burst),
		connectedAt: time.Now(),
	}
	if !h.register(client) {
		h.release(ip)
		_ = conn.Close()
		return
	}

	go client.writePump()

	// registered first so the connect publish reaches the newcomer too
	if err := h.dispatcher.Connect(r.Context(), client.id, ip, Transport); err != nil {
		h.logger.Error("connect failed", slog.String("conn", string(client.id)), slog.String("error", err.Error()))
	}
	client.readPump()
}

// reserve counts a connection against ip, refusing it past the cap
func (h *Hub) reserve(ip string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.perIP[ip] >= h.cfg.ConnPerIP {
		return false
	}
	h.perIP[ip]++
	return true
}

func (h *Hub) release(ip string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.releaseLocked(ip)
}

func (h *Hub) releaseLocked(ip string) {
	h.perIP[ip]--
	if h.perIP[ip] <= 0 {
		delete(h.perIP, ip)
	}
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	h.logger.Info("client connected",
		slog.String("conn", string(c.id)),
		slog.String("ip", c.ip),
		slog.Int("total_clients", len(h.clients)),
	)
	return true
}

// unregister removes the client and closes its send channel. It reports
// whether the client was still registered.
func (h *Hub) unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unregisterLocked(c)
}

func (h *Hub) unregisterLocked(c *Client) bool {
	if _, ok := h.clients[c.id]; !ok {
		return false
	}
	delete(h.clients, c.id)
	close(c.send)
	h.releaseLocked(c.ip)
	h.logger.Info("client disconnected",
		slog.String("conn", string(c.id)),
		slog.Duration("connection_duration", time.Since(c.connectedAt)),
		slog.Int("total_clients", len(h.clients)),
	)
	return true
}

// Deliver queues frames for every client. A client whose buffer is full is
// dropped.
func (h *Hub) Deliver(_ context.Context, frames []broadcast.Frame) error {
	h.fanOut(frames, "")
	return nil
}

// fanOut sends frames to every client except skip
func (h *Hub) fanOut(frames []broadcast.Frame, skip model.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		if id == skip {
			continue
		}
		if !c.queue(frames) {
			h.logger.Warn("client buffer full, dropping connection", slog.String("conn", string(id)))
			h.unregisterLocked(c)
			_ = c.conn.Close()
		}
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IDs returns the ids of every connected client
func (h *Hub) IDs() []model.ConnectionID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]model.ConnectionID, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// Close disconnects every client and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, c := range h.clients {
		h.unregisterLocked(c)
		_ = c.conn.Close()
	}
}

func (h *Hub) clientIP(r *http.Request) string {
	if h.cfg.TrustForwarded {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
