package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lanarcade/gamehub/internal/model"
	"github.com/lanarcade/gamehub/internal/rules"
)

// movePlan is what ApplyMove validated under the controller lock
type movePlan struct {
	session *model.Session
	engine  rules.Engine
	side    model.Side

	// computerFirst is set when the computer is on turn; the request only
	// nudges it and the payload is ignored
	computerFirst bool
	// offTurn marks a move the engine accepts from the side not on turn
	offTurn bool
}

// resolution is the engine's answer to a move, not yet committed
type resolution struct {
	state    json.RawMessage
	turn     model.Side
	plies    int
	gameOver bool
	winner   model.Result
}

// ApplyMove resolves one move by login in session id and commits the
// result. While a move is being resolved any other move for the same
// session fails with ErrSessionBusy.
func (c *Controller) ApplyMove(ctx context.Context, id model.SessionID, login string, move json.RawMessage) (*model.Session, error) {
	plan, err := c.begin(ctx, id, login, move)
	if err != nil {
		return nil, err
	}
	res, err := c.resolve(ctx, plan, move)
	return c.commit(ctx, plan, res, err)
}

func (c *Controller) begin(ctx context.Context, id model.SessionID, login string, move json.RawMessage) (*movePlan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, err := c.storage.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	side, ok := session.Players.SideOf(login)
	if !ok || login == model.ComputerLogin {
		return nil, model.ErrNotInSession
	}
	if session.Status != model.StatusOngoing {
		return nil, model.ErrSessionNotLive
	}
	if session.MutationLock {
		return nil, model.ErrSessionBusy
	}
	engine, err := c.engine(session)
	if err != nil {
		return nil, err
	}

	plan := &movePlan{session: session, engine: engine, side: side}
	switch {
	case session.Players.Get(session.Turn) == model.ComputerLogin:
		plan.computerFirst = true
	case session.Turn != side:
		if !c.allowsOffTurn(engine, session.State, move, side) {
			return nil, model.ErrNotYourTurn
		}
		plan.offTurn = true
	}

	session.MutationLock = true
	if err := c.storage.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	return plan, nil
}

func (c *Controller) allowsOffTurn(engine rules.Engine, state, move json.RawMessage, side model.Side) (allowed bool) {
	mover, ok := engine.(rules.OffTurnMover)
	if !ok {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("engine panic", slog.String("game", string(engine.Game())), slog.Any("panic", r))
			allowed = false
		}
	}()
	return mover.AllowsOffTurn(state, move, side)
}

// resolve runs the engine without holding the controller lock
func (c *Controller) resolve(ctx context.Context, plan *movePlan, move json.RawMessage) (res resolution, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("engine panic",
				slog.String("session", string(plan.session.ID)),
				slog.String("game", string(plan.engine.Game())),
				slog.Any("panic", r),
			)
			err = fmt.Errorf("%w: %v", model.ErrEngineFault, r)
		}
	}()

	session := plan.session
	res = resolution{state: session.State, turn: session.Turn}

	if !plan.computerFirst {
		out, err := plan.engine.Apply(res.state, move, plan.side)
		if err != nil {
			if errors.Is(err, model.ErrMalformedMove) {
				return res, err
			}
			return res, fmt.Errorf("%w: %v", model.ErrEngineFault, err)
		}
		if !out.Accepted {
			return res, model.ErrIllegalMove
		}
		res.state = out.State
		res.plies++
		if out.GameOver {
			res.gameOver = true
			res.winner = out.Winner
			return res, nil
		}
		if out.TurnOver && !plan.offTurn {
			res.turn = res.turn.Opponent()
		}
	}

	if session.Players.Get(res.turn) != model.ComputerLogin {
		return res, nil
	}
	played, err := c.bot.Play(ctx, plan.engine, res.state, res.turn)
	if err != nil {
		return res, err
	}
	res.state = played.State
	res.plies += played.Plies
	if played.GameOver {
		res.gameOver = true
		res.winner = played.Winner
		return res, nil
	}
	if played.TurnOver {
		res.turn = res.turn.Opponent()
	}
	return res, nil
}

// commit stores the resolution unless the session finished or vanished in
// the meantime, and always clears the mutation flag
func (c *Controller) commit(ctx context.Context, plan *movePlan, res resolution, runErr error) (*model.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := plan.session.ID
	current, err := c.storage.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			c.logger.Info("move discarded, session deleted", slog.String("session", string(id)))
		}
		if runErr != nil {
			return nil, runErr
		}
		return nil, err
	}

	current.MutationLock = false
	switch {
	case runErr != nil:
	case !current.IsActive():
		c.logger.Info("move discarded, session finished", slog.String("session", string(id)))
		runErr = model.ErrSessionNotLive
	default:
		current.State = res.state
		current.Turn = res.turn
		current.Moves += res.plies
		current.UpdatedAt = c.clock.Now()
		if res.gameOver {
			winner := res.winner
			if winner == model.ResultNone {
				winner = c.result(current)
			}
			current.Finish(winner)
			c.logger.Info("session finished",
				slog.String("session", string(id)),
				slog.String("reason", "game over on board"),
				slog.String("result", string(current.Result)),
			)
		}
	}

	if err := c.storage.SaveSession(ctx, current); err != nil {
		return nil, err
	}
	if runErr != nil {
		return nil, runErr
	}
	return current, nil
}
