// Package rules defines the contract every board game implements and the
// registry the session controller uses to find an engine by game type.
package rules

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lanarcade/gamehub/internal/model"
)

// NewGame carries what an engine may need to build an initial state
type NewGame struct {
	Mode      model.Mode
	White     string
	Black     string
	CreatedAt time.Time
}

// Outcome is the result of applying one move.
//
// A rejected move leaves State nil. TurnOver false on an accepted move means
// the acting side moves again.
type Outcome struct {
	State    json.RawMessage
	Accepted bool
	TurnOver bool
	GameOver bool
	Winner   model.Result
}

// Verdict is an engine's reading of a state when a session has to be
// closed. Conclusive means the position itself decided the game; otherwise
// Result is only a tiebreak hint and may be empty.
type Verdict struct {
	Result     model.Result
	Conclusive bool
}

// Engine implements the rules of one game. Implementations never mutate the
// state they are given and are safe for concurrent use.
type Engine interface {
	Game() model.GameType
	NewState(params NewGame) (json.RawMessage, error)
	Apply(state, move json.RawMessage, side model.Side) (Outcome, error)
	ComputerMove(state json.RawMessage, side model.Side) (json.RawMessage, error)
	Verdict(state json.RawMessage) Verdict
}

// Seater is implemented by engines that record player names in their state
type Seater interface {
	Seat(state json.RawMessage, side model.Side, login string) (json.RawMessage, error)
}

// OffTurnMover is implemented by engines that accept some moves from the
// side not currently on turn, such as arranging a fleet before firing. An
// off-turn move never changes whose turn it is.
type OffTurnMover interface {
	AllowsOffTurn(state, move json.RawMessage, side model.Side) bool
}

// Registry maps game types to engines
type Registry struct {
	engines map[model.GameType]Engine
}

// NewRegistry builds a registry from engines. A later engine for the same
// game replaces an earlier one.
func NewRegistry(engines ...Engine) *Registry {
	r := &Registry{engines: make(map[model.GameType]Engine, len(engines))}
	for _, e := range engines {
		r.engines[e.Game()] = e
	}
	return r
}

// Get returns the engine for game
func (r *Registry) Get(game model.GameType) (Engine, error) {
	e, ok := r.engines[game]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownGame, game)
	}
	return e, nil
}

// Games lists the game types with a registered engine
func (r *Registry) Games() []model.GameType {
	var games []model.GameType
	for _, g := range model.GameTypes {
		if _, ok := r.engines[g]; ok {
			games = append(games, g)
		}
	}
	return games
}

// Rejected is the outcome for an illegal move
func Rejected() Outcome {
	return Outcome{}
}

// DecodeMove unmarshals a move payload, mapping failures to ErrMalformedMove
func DecodeMove(move json.RawMessage, v any) error {
	if len(move) == 0 {
		return model.ErrMalformedMove
	}
	if err := json.Unmarshal(move, v); err != nil {
		return fmt.Errorf("%w: %v", model.ErrMalformedMove, err)
	}
	return nil
}

// DecodeState unmarshals an engine state
func DecodeState(state json.RawMessage, v any) error {
	if err := json.Unmarshal(state, v); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	return nil
}
