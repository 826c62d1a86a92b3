// Package session owns the session table: creating, joining and leaving
// sessions and resolving moves through each game's rule engine.
//
// Every read-validate-write of the table happens under one controller
// mutex. A move's engine work runs outside it, guarded by the session's
// MutationLock flag so a second move for the same session is dropped
// rather than queued.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sasha-s/go-deadlock"

	"github.com/lanarcade/gamehub/internal/dependencies/clock"
	"github.com/lanarcade/gamehub/internal/dependencies/random"
	"github.com/lanarcade/gamehub/internal/model"
	"github.com/lanarcade/gamehub/internal/rules"
	"github.com/lanarcade/gamehub/internal/services/bot"
	"github.com/lanarcade/gamehub/internal/storage"
)

// SessionIDLength is the length of generated session ids
const SessionIDLength = 8

// Controller manages the session state machine
type Controller struct {
	storage  storage.Storage
	registry *rules.Registry
	bot      *bot.Service
	clock    clock.Clock
	random   random.Random
	logger   *slog.Logger

	mu deadlock.Mutex

	// engines holds the rule engine each session was created with
	engines map[model.SessionID]rules.Engine
}

// NewController creates a new session Controller
func NewController(
	storage storage.Storage,
	registry *rules.Registry,
	botService *bot.Service,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage:  storage,
		registry: registry,
		bot:      botService,
		clock:    clock,
		random:   random,
		logger:   logger.With(slog.String("component", "session-controller")),
		engines:  make(map[model.SessionID]rules.Engine),
	}
}

// Create opens a session of gameType with login on white. A PvE session
// seats the computer on black and starts immediately.
func (c *Controller) Create(ctx context.Context, gameType model.GameType, mode model.Mode, login string) (*model.Session, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidMode, mode)
	}
	engine, err := c.registry.Get(gameType)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkNotPlaying(ctx, login, gameType); err != nil {
		return nil, err
	}

	id := model.SessionID(c.random.String(SessionIDLength, random.Base36))
	exists, err := c.storage.SessionExists(ctx, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, model.ErrSessionExists
	}

	now := c.clock.Now()
	players := model.Players{White: login}
	if mode == model.ModePvE {
		players.Black = model.ComputerLogin
	}
	state, err := engine.NewState(rules.NewGame{
		Mode:      mode,
		White:     players.White,
		Black:     players.Black,
		CreatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: new state: %v", model.ErrEngineFault, err)
	}

	session := &model.Session{
		ID:        id,
		GameType:  gameType,
		Mode:      mode,
		Players:   players,
		State:     state,
		Turn:      model.SideWhite,
		Status:    model.StatusStarting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if mode == model.ModePvE {
		session.Start(now)
	}

	if err := c.storage.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	c.engines[id] = engine

	c.logger.Info("session created",
		slog.String("session", string(id)),
		slog.String("game", string(gameType)),
		slog.String("mode", string(mode)),
		slog.String("login", login),
	)
	return session, nil
}

// Get retrieves a session by id
func (c *Controller) Get(ctx context.Context, id model.SessionID) (*model.Session, error) {
	return c.storage.GetSession(ctx, id)
}

// List returns every session
func (c *Controller) List(ctx context.Context) ([]*model.Session, error) {
	return c.storage.ListSessions(ctx)
}

// Delete removes a session unconditionally
func (c *Controller) Delete(ctx context.Context, id model.SessionID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.storage.DeleteSession(ctx, id); err != nil {
		return err
	}
	delete(c.engines, id)
	return nil
}

// Join seats login on black and starts the session
func (c *Controller) Join(ctx context.Context, id model.SessionID, login string) (*model.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, err := c.storage.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.IsActive() {
		return nil, model.ErrSessionNotLive
	}
	if session.Players.Black != "" {
		return nil, model.ErrSessionFull
	}
	if session.Players.White == login {
		return nil, model.ErrAlreadyPlaying
	}
	if err := c.checkNotPlaying(ctx, login, session.GameType); err != nil {
		return nil, err
	}

	engine, err := c.engine(session)
	if err != nil {
		return nil, err
	}
	if seater, ok := engine.(rules.Seater); ok {
		state, err := seater.Seat(session.State, model.SideBlack, login)
		if err != nil {
			return nil, fmt.Errorf("%w: seat: %v", model.ErrEngineFault, err)
		}
		session.State = state
	}

	now := c.clock.Now()
	session.Players.Black = login
	session.Start(now)
	session.UpdatedAt = now

	if err := c.storage.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	c.logger.Info("session joined",
		slog.String("session", string(id)),
		slog.String("login", login),
	)
	return session, nil
}

// Leave vacates login's seat. A session left without a human is deleted
// and nil is returned; otherwise an unfinished session is finished.
func (c *Controller) Leave(ctx context.Context, id model.SessionID, login string) (*model.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.leave(ctx, id, login)
}

func (c *Controller) leave(ctx context.Context, id model.SessionID, login string) (*model.Session, error) {
	session, err := c.storage.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	side, ok := session.Players.SideOf(login)
	if !ok || login == model.ComputerLogin {
		return nil, model.ErrNotInSession
	}

	session.Players.Set(side, "")
	if session.IsOrphaned() {
		if err := c.storage.DeleteSession(ctx, id); err != nil {
			return nil, err
		}
		delete(c.engines, id)
		c.logger.Info("session deleted after last player left",
			slog.String("session", string(id)),
			slog.String("login", login),
		)
		return nil, nil
	}

	if session.IsActive() {
		session.Finish(c.result(session))
	}
	session.UpdatedAt = c.clock.Now()
	if err := c.storage.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	c.logger.Info("session left",
		slog.String("session", string(id)),
		slog.String("login", login),
		slog.String("result", string(session.Result)),
	)
	return session, nil
}

// LeaveAll removes login from every session it occupies and returns the
// ids of the sessions touched
func (c *Controller) LeaveAll(ctx context.Context, login string) ([]model.SessionID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sessions, err := c.storage.ListSessions(ctx)
	if err != nil {
		return nil, err
	}

	var touched []model.SessionID
	var errs []error
	for _, s := range sessions {
		if login == model.ComputerLogin || !s.HasPlayer(login) {
			continue
		}
		if _, err := c.leave(ctx, s.ID, login); err != nil {
			errs = append(errs, err)
			continue
		}
		touched = append(touched, s.ID)
	}
	return touched, errors.Join(errs...)
}

// ForceEnd finishes the session at a player's request. Finishing an
// already finished session changes nothing.
func (c *Controller) ForceEnd(ctx context.Context, id model.SessionID, login string) (*model.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, err := c.storage.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.HasPlayer(login) || login == model.ComputerLogin {
		return nil, model.ErrNotInSession
	}
	if !session.IsActive() {
		return session, nil
	}
	return c.finish(ctx, session, "game over requested by "+login)
}

// Expire finishes an unfinished session that ran out of time. It reports
// whether anything changed.
func (c *Controller) Expire(ctx context.Context, id model.SessionID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, err := c.storage.GetSession(ctx, id)
	if err != nil {
		return false, err
	}
	if !session.IsActive() {
		return false, nil
	}
	_, err = c.finish(ctx, session, "time limit exceeded")
	return err == nil, err
}

func (c *Controller) finish(ctx context.Context, session *model.Session, reason string) (*model.Session, error) {
	session.Finish(c.result(session))
	session.UpdatedAt = c.clock.Now()
	if err := c.storage.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	c.logger.Info("session finished",
		slog.String("session", string(session.ID)),
		slog.String("reason", reason),
		slog.String("result", string(session.Result)),
	)
	return session, nil
}

// engine returns the rule engine bound to session at creation. A session
// the controller did not create is bound on first use. Called with c.mu
// held.
func (c *Controller) engine(session *model.Session) (rules.Engine, error) {
	if engine, ok := c.engines[session.ID]; ok {
		return engine, nil
	}
	engine, err := c.registry.Get(session.GameType)
	if err != nil {
		return nil, err
	}
	c.engines[session.ID] = engine
	return engine, nil
}

// checkNotPlaying refuses a login already seated in an unfinished session
// of the same game type
func (c *Controller) checkNotPlaying(ctx context.Context, login string, gameType model.GameType) error {
	sessions, err := c.storage.ListSessions(ctx)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		if s.GameType == gameType && s.IsActive() && s.HasPlayer(login) {
			return fmt.Errorf("%w: %s in %s", model.ErrAlreadyPlaying, gameType, s.ID)
		}
	}
	return nil
}
