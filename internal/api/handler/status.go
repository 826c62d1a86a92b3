package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/lanarcade/gamehub/internal/api/apierr"
	"github.com/lanarcade/gamehub/internal/api/response"
	"github.com/lanarcade/gamehub/internal/dependencies/clock"
	"github.com/lanarcade/gamehub/internal/model"
	"github.com/lanarcade/gamehub/internal/services/presence"
	"github.com/lanarcade/gamehub/internal/storage"
	"github.com/lanarcade/gamehub/internal/web/page"
)

// UserCounter reports how many users are registered
type UserCounter interface {
	Count(ctx context.Context) (int, error)
}

// StatusHandler serves the read-only introspection endpoints
type StatusHandler struct {
	storage  storage.Storage
	users    UserCounter
	presence *presence.Registry
	clock    clock.Clock
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(storage storage.Storage, users UserCounter, presence *presence.Registry, clock clock.Clock) *StatusHandler {
	return &StatusHandler{
		storage:  storage,
		users:    users,
		presence: presence,
		clock:    clock,
	}
}

// Status handles GET /status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.storage.ListSessions(r.Context())
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	users, err := h.users.Count(r.Context())
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	table := make(map[model.SessionID]*model.Session, len(sessions))
	for _, s := range sessions {
		table[s.ID] = s
	}
	encoded, err := json.Marshal(table)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.Status{
		TotalClients:     h.presence.Count(),
		TotalUsers:       users,
		ActiveGames:      len(sessions),
		GamesSizeInBytes: len(encoded),
	})
}

// Clients handles GET /clients
func (h *StatusHandler) Clients(w http.ResponseWriter, r *http.Request) {
	conns := h.presence.List()
	body := response.Clients{
		TotalClients: len(conns),
		Clients:      make([]string, len(conns)),
		Connections:  make([]response.Connection, len(conns)),
		Online:       h.presence.Online(),
	}
	for i, c := range conns {
		body.Clients[i] = string(c.ID)
		body.Connections[i] = response.ConnectionFromPresence(c)
	}
	response.JSON(w, http.StatusOK, body)
}

// Health handles GET /health
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}

// Page handles GET /
func (h *StatusHandler) Page(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.storage.ListSessions(r.Context())
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	users, err := h.users.Count(r.Context())
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	var buf bytes.Buffer
	err = page.Status(page.StatusView{
		Clients:     h.presence.Count(),
		Users:       users,
		Games:       sessions,
		Online:      h.presence.Online(),
		GeneratedAt: h.clock.Now(),
	}).Render(r.Context(), &buf)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.HTML(w, http.StatusOK, buf.Bytes())
}
