package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/lanarcade/gamehub/internal/api/apierr"
	"github.com/lanarcade/gamehub/internal/model"
	"github.com/lanarcade/gamehub/internal/services/broadcast"
	"github.com/lanarcade/gamehub/internal/services/lobby"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound message size; PGN uploads are the largest payloads
	maxMessageSize = 64 * 1024

	// Buffer size for outgoing messages
	sendBufferSize = 256
)

// inbound is the envelope clients send
type inbound struct {
	Event   model.EventType `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Rejection is the payload of a "request rejected" event
type Rejection struct {
	Event   model.EventType `json:"event"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

// Client is one websocket connection
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	id          model.ConnectionID
	ip          string
	send        chan []byte
	limiter     *rate.Limiter
	connectedAt time.Time
}

// queue buffers frames without blocking. Called with the hub lock held.
func (c *Client) queue(frames []broadcast.Frame) bool {
	for _, f := range frames {
		select {
		case c.send <- f.Data:
		default:
			return false
		}
	}
	return true
}

// reply queues frames for this client only
func (c *Client) reply(frames []broadcast.Frame) {
	if len(frames) == 0 {
		return
	}
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	if _, ok := c.hub.clients[c.id]; !ok {
		return
	}
	if !c.queue(frames) {
		c.hub.unregisterLocked(c)
		_ = c.conn.Close()
	}
}

// readPump reads events until the connection fails, handling each in turn
func (c *Client) readPump() {
	ctx := context.Background()
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
		c.hub.dispatcher.Disconnect(ctx, c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read failed", slog.String("conn", string(c.id)), slog.String("error", err.Error()))
			}
			return
		}
		c.handle(ctx, data)
	}
}

func (c *Client) handle(ctx context.Context, data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil || msg.Event == "" {
		c.reject("", model.ErrMalformedRequest)
		return
	}
	if !c.limiter.Allow() {
		c.reject(msg.Event, model.ErrRateLimited)
		return
	}

	reply, err := c.hub.dispatcher.Handle(ctx, lobby.Request{
		Conn:    c.id,
		IP:      c.ip,
		Event:   msg.Event,
		Payload: msg.Payload,
	})
	if err != nil {
		c.reject(msg.Event, err)
		return
	}
	c.reply(reply.Direct)
	if len(reply.Others) > 0 {
		c.hub.fanOut(reply.Others, c.id)
	}
}

// reject answers a refused request. A move dropped because the session is
// busy gets no answer; the client resubmits.
func (c *Client) reject(event model.EventType, err error) {
	if errors.Is(err, model.ErrSessionBusy) {
		return
	}
	c.hub.logger.Debug("request rejected",
		slog.String("conn", string(c.id)),
		slog.String("event", string(event)),
		slog.String("error", err.Error()),
	)
	desc := apierr.Describe(err)
	frame, encErr := broadcast.Encode(model.EventRequestRejected, Rejection{
		Event:   event,
		Code:    desc.Code,
		Message: desc.Message,
	})
	if encErr != nil {
		return
	}
	c.reply([]broadcast.Frame{frame})
}

// writePump writes queued frames and keepalive pings to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
