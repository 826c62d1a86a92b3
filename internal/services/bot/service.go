// Package bot drives the computer side of PvE sessions. Move choice belongs
// to each game's rule engine; this package only loops plies until the
// computer loses the turn.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lanarcade/gamehub/internal/model"
	"github.com/lanarcade/gamehub/internal/rules"
)

// MaxBotIterations is a safety limit for the Play loop
const MaxBotIterations = 1000

// ActionType represents what a computer ply did
type ActionType string

const (
	ActionMove         ActionType = "move"
	ActionTurnComplete ActionType = "turn_complete"
	ActionGameComplete ActionType = "game_complete"
)

// Action is one step taken during Play
type Action struct {
	Type ActionType
	Side model.Side
	Move json.RawMessage
}

// Result is where the computer left the game
type Result struct {
	State    json.RawMessage
	Actions  []Action
	Plies    int
	TurnOver bool
	GameOver bool
	Winner   model.Result
}

// Service plays computer moves
type Service struct {
	logger *slog.Logger
}

// NewService creates a new bot Service
func NewService(logger *slog.Logger) *Service {
	return &Service{
		logger: logger.With(slog.String("component", "bot-service")),
	}
}

// Play makes computer moves for side, starting from state, until the turn
// passes or the game ends
func (s *Service) Play(ctx context.Context, engine rules.Engine, state json.RawMessage, side model.Side) (Result, error) {
	res := Result{State: state}

	for range MaxBotIterations {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		move, err := engine.ComputerMove(res.State, side)
		if err != nil {
			return res, fmt.Errorf("%w: computer move: %v", model.ErrEngineFault, err)
		}
		out, err := engine.Apply(res.State, move, side)
		if err != nil {
			return res, fmt.Errorf("%w: apply computer move: %v", model.ErrEngineFault, err)
		}
		if !out.Accepted {
			return res, fmt.Errorf("%w: %s engine rejected its own move %s", model.ErrEngineFault, engine.Game(), move)
		}

		res.State = out.State
		res.Plies++
		res.Actions = append(res.Actions, Action{Type: ActionMove, Side: side, Move: move})

		if out.GameOver {
			res.GameOver = true
			res.Winner = out.Winner
			res.Actions = append(res.Actions, Action{Type: ActionGameComplete, Side: side})
			return res, nil
		}
		if out.TurnOver {
			res.TurnOver = true
			res.Actions = append(res.Actions, Action{Type: ActionTurnComplete, Side: side})
			return res, nil
		}
	}

	s.logger.Error("computer exceeded ply limit",
		slog.String("game", string(engine.Game())),
		slog.Int("plies", res.Plies),
	)
	return res, fmt.Errorf("%w: computer did not yield the turn", model.ErrEngineFault)
}
