package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lanarcade/gamehub/internal/api/apierr"
	"github.com/lanarcade/gamehub/internal/api/handler"
	"github.com/lanarcade/gamehub/internal/middleware"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	Logger *slog.Logger
	Status *handler.StatusHandler
	// Realtime serves the websocket event channel
	Realtime http.Handler
	// Events serves the server-sent event stream of published tables
	Events http.Handler
}

// NewRouter creates the router with every route configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.Use(RecoverJSON(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	r.HandleFunc("/", cfg.Status.Page).Methods(http.MethodGet)
	r.HandleFunc("/status", cfg.Status.Status).Methods(http.MethodGet)
	r.HandleFunc("/clients", cfg.Status.Clients).Methods(http.MethodGet)
	r.HandleFunc("/health", cfg.Status.Health).Methods(http.MethodGet)

	if cfg.Realtime != nil {
		r.Handle("/ws", cfg.Realtime).Methods(http.MethodGet)
	}
	if cfg.Events != nil {
		r.Handle("/events", cfg.Events).Methods(http.MethodGet)
	}

	return r
}

// RecoverJSON answers a panicking handler with a JSON internal error
func RecoverJSON(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, func(w http.ResponseWriter, _ *http.Request, _ any) {
		apierr.WriteError(w, apierr.NewInternalError())
	})
}
