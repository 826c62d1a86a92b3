package factory

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/lanarcade/gamehub/internal/api"
	"github.com/lanarcade/gamehub/internal/api/handler"
	"github.com/lanarcade/gamehub/internal/config"
	"github.com/lanarcade/gamehub/internal/dependencies/clock"
	"github.com/lanarcade/gamehub/internal/dependencies/random"
	"github.com/lanarcade/gamehub/internal/rules"
	"github.com/lanarcade/gamehub/internal/rules/battleship"
	"github.com/lanarcade/gamehub/internal/rules/chess"
	"github.com/lanarcade/gamehub/internal/rules/connect4"
	"github.com/lanarcade/gamehub/internal/rules/nardy"
	"github.com/lanarcade/gamehub/internal/rules/reversi"
	"github.com/lanarcade/gamehub/internal/services/bot"
	"github.com/lanarcade/gamehub/internal/services/broadcast"
	"github.com/lanarcade/gamehub/internal/services/identity"
	"github.com/lanarcade/gamehub/internal/services/lifecycle"
	"github.com/lanarcade/gamehub/internal/services/lobby"
	"github.com/lanarcade/gamehub/internal/services/presence"
	"github.com/lanarcade/gamehub/internal/services/session"
	"github.com/lanarcade/gamehub/internal/storage"
	"github.com/lanarcade/gamehub/internal/storage/memory"
	redisstorage "github.com/lanarcade/gamehub/internal/storage/redis"
	"github.com/lanarcade/gamehub/internal/web/sse"
	"github.com/lanarcade/gamehub/internal/web/ws"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Rules     *rules.Registry
	Bot       *bot.Service
	Sessions  *session.Controller
	Identity  *identity.Service
	Presence  *presence.Registry
	Publisher *broadcast.Publisher
	Lobby     *lobby.Service
	Scheduler *lifecycle.Scheduler

	// Transports
	Realtime *ws.Hub
	Events   *sse.Hub
	// Mirror is nil unless a Redis URL is configured
	Mirror *redisstorage.Mirror

	Status  *handler.StatusHandler
	Handler http.Handler

	logger *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// Settings holds limits and intervals. Zero fields take their defaults.
	Settings config.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var mirror *redisstorage.Mirror
	if cfg.Settings.RedisURL != "" {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.Settings.RedisURL
		m, err := redisstorage.New(redisCfg, logger)
		if err != nil {
			return nil, err
		}
		mirror = m
	}

	return newWithDependencies(memory.New(), clock.New(), random.New(), cfg.Settings, mirror, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	settings config.Config,
	mirror *redisstorage.Mirror,
	logger *slog.Logger,
) *App {
	registry := rules.NewRegistry(
		chess.New(rnd),
		battleship.New(rnd),
		reversi.New(rnd),
		connect4.New(rnd),
		nardy.New(rnd),
	)
	botService := bot.NewService(logger)
	sessions := session.NewController(store, registry, botService, clk, rnd, logger)
	ids := identity.New(store, clk, identity.Config{
		UsersPerIP:    settings.UsersPerIP,
		InactiveAfter: settings.UserInactive,
	}, logger)
	pres := presence.NewRegistry(clk)
	publisher := broadcast.NewPublisher(store, pres, logger)
	lobbyService := lobby.NewService(ids, sessions, pres, publisher, logger)
	scheduler := lifecycle.NewScheduler(lifecycle.Config{
		GameDuration: settings.GameDuration,
		GamesEvery:   settings.ClearGamesEvery,
		UsersEvery:   settings.ClearUsersEvery,
	}, sessions, ids, pres, publisher, clk, logger)

	realtime := ws.NewHub(lobbyService, ws.Config{
		ConnPerIP:       settings.ConnPerIP,
		EventsPerSecond: settings.EventsPerSecond,
		Burst:           ws.DefaultConfig().Burst,
		TrustForwarded:  true,
	}, logger)
	events := sse.NewHub(publisher, logger)
	publisher.AddSink(realtime)
	publisher.AddSink(events)
	if mirror != nil {
		publisher.AddSink(mirror)
	}

	status := handler.NewStatusHandler(store, ids, pres, clk)
	router := api.NewRouter(api.RouterConfig{
		Logger:   logger,
		Status:   status,
		Realtime: realtime,
		Events:   events,
	})

	return &App{
		Storage:   store,
		Clock:     clk,
		Random:    rnd,
		Rules:     registry,
		Bot:       botService,
		Sessions:  sessions,
		Identity:  ids,
		Presence:  pres,
		Publisher: publisher,
		Lobby:     lobbyService,
		Scheduler: scheduler,
		Realtime:  realtime,
		Events:    events,
		Mirror:    mirror,
		Status:    status,
		Handler:   router,
		logger:    logger,
	}
}

// Run starts the background loops: the event-stream hub and both sweeps.
// They stop when ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	go a.Events.Run()
	go a.Scheduler.Start(ctx)
}

// Close disconnects every client and releases the mirror
func (a *App) Close() {
	a.Realtime.Close()
	a.Events.Close()
	if a.Mirror != nil {
		if err := a.Mirror.Close(); err != nil {
			a.logger.Warn("closing redis mirror", slog.String("error", err.Error()))
		}
	}
}
