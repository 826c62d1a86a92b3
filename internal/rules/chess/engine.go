// Package chess adapts github.com/notnil/chess to the rules contract. The
// library owns move generation and game termination; this package only
// persists the move list and arbitrates sides.
package chess

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/notnil/chess"

	"github.com/lanarcade/gamehub/internal/dependencies/random"
	"github.com/lanarcade/gamehub/internal/model"
	"github.com/lanarcade/gamehub/internal/rules"
)

// State is the engine's persisted position. Moves are in UCI notation and
// are replayed to rebuild the game; PGN is kept for clients.
type State struct {
	Moves  []string     `json:"moves"`
	White  string       `json:"white"`
	Black  string       `json:"black"`
	PGN    string       `json:"pgn"`
	Result model.Result `json:"result,omitempty"`
	Method string       `json:"method,omitempty"`
}

// Move is one of UCI ("e2e4"), SAN ("Nf3") or a PGN that extends the game
// by exactly one move
type Move struct {
	UCI string `json:"uci,omitempty"`
	SAN string `json:"san,omitempty"`
	PGN string `json:"pgn,omitempty"`
}

var pieceValues = map[chess.PieceType]int{
	chess.Pawn:   1,
	chess.Knight: 3,
	chess.Bishop: 3,
	chess.Rook:   5,
	chess.Queen:  9,
}

// Engine plays chess
type Engine struct {
	random random.Random
}

// Ensure Engine implements rules.Engine and rules.Seater
var (
	_ rules.Engine = (*Engine)(nil)
	_ rules.Seater = (*Engine)(nil)
)

// New creates a chess engine
func New(rnd random.Random) *Engine {
	return &Engine{random: rnd}
}

func (e *Engine) Game() model.GameType {
	return model.GameChess
}

func (e *Engine) NewState(params rules.NewGame) (json.RawMessage, error) {
	st := State{White: params.White, Black: params.Black}
	g, err := st.replay()
	if err != nil {
		return nil, err
	}
	return st.snapshot(g)
}

func (e *Engine) Seat(state json.RawMessage, side model.Side, login string) (json.RawMessage, error) {
	var st State
	if err := rules.DecodeState(state, &st); err != nil {
		return nil, err
	}
	if side == model.SideWhite {
		st.White = login
	} else {
		st.Black = login
	}
	g, err := st.replay()
	if err != nil {
		return nil, err
	}
	return st.snapshot(g)
}

func (e *Engine) Apply(state, move json.RawMessage, side model.Side) (rules.Outcome, error) {
	var st State
	if err := rules.DecodeState(state, &st); err != nil {
		return rules.Outcome{}, err
	}
	var m Move
	if err := rules.DecodeMove(move, &m); err != nil {
		return rules.Outcome{}, err
	}
	if m.UCI == "" && m.SAN == "" && m.PGN == "" {
		return rules.Outcome{}, model.ErrMalformedMove
	}

	g, err := st.replay()
	if err != nil {
		return rules.Outcome{}, err
	}
	if g.Outcome() != chess.NoOutcome || color(side) != g.Position().Turn() {
		return rules.Rejected(), nil
	}

	pos := g.Position()
	next, ok := e.resolve(g, st.Moves, m)
	if !ok {
		return rules.Rejected(), nil
	}
	if err := g.Move(next); err != nil {
		return rules.Rejected(), nil
	}
	st.Moves = append(st.Moves, chess.UCINotation{}.Encode(pos, next))

	claimDraw(g)
	data, err := st.snapshot(g)
	if err != nil {
		return rules.Outcome{}, err
	}
	over := g.Outcome() != chess.NoOutcome
	return rules.Outcome{
		State:    data,
		Accepted: true,
		TurnOver: !over,
		GameOver: over,
		Winner:   result(g.Outcome()),
	}, nil
}

// resolve turns a move payload into a legal move on g's current position
func (e *Engine) resolve(g *chess.Game, played []string, m Move) (*chess.Move, bool) {
	pos := g.Position()
	switch {
	case m.UCI != "":
		mv, err := chess.UCINotation{}.Decode(pos, m.UCI)
		return mv, err == nil
	case m.SAN != "":
		mv, err := chess.AlgebraicNotation{}.Decode(pos, m.SAN)
		return mv, err == nil
	}

	opt, err := chess.PGN(strings.NewReader(m.PGN))
	if err != nil {
		return nil, false
	}
	full := chess.NewGame(opt)
	moves := full.Moves()
	if len(moves) != len(played)+1 {
		return nil, false
	}
	positions := full.Positions()
	for i, uci := range played {
		if (chess.UCINotation{}).Encode(positions[i], moves[i]) != uci {
			return nil, false
		}
	}
	last := moves[len(moves)-1]
	mv, err := chess.UCINotation{}.Decode(pos, chess.UCINotation{}.Encode(positions[len(played)], last))
	return mv, err == nil
}

// ComputerMove mates when it can, prefers captures, and otherwise plays a
// random legal move
func (e *Engine) ComputerMove(state json.RawMessage, side model.Side) (json.RawMessage, error) {
	var st State
	if err := rules.DecodeState(state, &st); err != nil {
		return nil, err
	}
	g, err := st.replay()
	if err != nil {
		return nil, err
	}
	valid := g.ValidMoves()
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: no legal chess move", model.ErrEngineFault)
	}

	pos := g.Position()
	var captures []*chess.Move
	for _, mv := range valid {
		if pos.Update(mv).Status() == chess.Checkmate {
			return json.Marshal(Move{UCI: chess.UCINotation{}.Encode(pos, mv)})
		}
		if mv.HasTag(chess.Capture) {
			captures = append(captures, mv)
		}
	}
	pool := valid
	if len(captures) > 0 {
		pool = captures
	}
	mv := pool[e.random.Intn(len(pool))]
	return json.Marshal(Move{UCI: chess.UCINotation{}.Encode(pos, mv)})
}

// Verdict is conclusive once the game has an outcome. Otherwise the side
// ahead on material is the hint.
func (e *Engine) Verdict(state json.RawMessage) rules.Verdict {
	var st State
	if err := rules.DecodeState(state, &st); err != nil {
		return rules.Verdict{}
	}
	if st.Result != model.ResultNone {
		return rules.Verdict{Result: st.Result, Conclusive: true}
	}
	g, err := st.replay()
	if err != nil {
		return rules.Verdict{}
	}
	balance := 0
	for _, piece := range g.Position().Board().SquareMap() {
		v := pieceValues[piece.Type()]
		if piece.Color() == chess.Black {
			v = -v
		}
		balance += v
	}
	switch {
	case balance > 0:
		return rules.Verdict{Result: model.ResultWhiteWon}
	case balance < 0:
		return rules.Verdict{Result: model.ResultBlackWon}
	}
	return rules.Verdict{}
}

func (st *State) replay() (*chess.Game, error) {
	g := chess.NewGame()
	for _, uci := range st.Moves {
		mv, err := chess.UCINotation{}.Decode(g.Position(), uci)
		if err != nil {
			return nil, err
		}
		if err := g.Move(mv); err != nil {
			return nil, err
		}
	}
	claimDraw(g)
	return g, nil
}

func (st *State) snapshot(g *chess.Game) (json.RawMessage, error) {
	if st.White != "" {
		g.AddTagPair("White", st.White)
	}
	if st.Black != "" {
		g.AddTagPair("Black", st.Black)
	}
	st.PGN = g.String()
	st.Result = result(g.Outcome())
	st.Method = ""
	if g.Outcome() != chess.NoOutcome {
		st.Method = g.Method().String()
	}
	return json.Marshal(st)
}

// claimDraw takes a threefold repetition or fifty-move draw as soon as it
// is available; nobody is around to claim it by hand
func claimDraw(g *chess.Game) {
	if g.Outcome() != chess.NoOutcome {
		return
	}
	for _, method := range g.EligibleDraws() {
		if method == chess.ThreefoldRepetition || method == chess.FiftyMoveRule {
			_ = g.Draw(method)
			return
		}
	}
}

func color(side model.Side) chess.Color {
	if side == model.SideWhite {
		return chess.White
	}
	return chess.Black
}

func result(o chess.Outcome) model.Result {
	switch o {
	case chess.WhiteWon:
		return model.ResultWhiteWon
	case chess.BlackWon:
		return model.ResultBlackWon
	case chess.Draw:
		return model.ResultDraw
	}
	return model.ResultNone
}
