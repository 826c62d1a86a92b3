// Package nardy implements long nardy, the backgammon variant played without
// hitting. Chips travel anticlockwise from a single head point, a point held
// by the opponent is closed, and the first side to bear off all fifteen wins.
package nardy

import (
	"encoding/json"
	"fmt"

	"github.com/lanarcade/gamehub/internal/dependencies/random"
	"github.com/lanarcade/gamehub/internal/model"
	"github.com/lanarcade/gamehub/internal/rules"
)

// maxSkips bounds automatic turn skipping when a fresh roll has no move
const maxSkips = 8

// Dice is the current roll with the uses left on each die. A double gives
// two uses per die, four moves in all.
type Dice struct {
	D1     int `json:"d1"`
	D1Left int `json:"d1l"`
	D2     int `json:"d2"`
	D2Left int `json:"d2l"`
}

func (d Dice) spent() bool {
	return d.D1Left == 0 && d.D2Left == 0
}

// values returns the distinct die values still usable
func (d Dice) values() []int {
	var out []int
	if d.D1Left > 0 {
		out = append(out, d.D1)
	}
	if d.D2Left > 0 && (d.D2 != d.D1 || d.D1Left == 0) {
		out = append(out, d.D2)
	}
	return out
}

func (d *Dice) use(value int) {
	if d.D1 == value && d.D1Left > 0 {
		d.D1Left--
		return
	}
	d.D2Left--
}

// State is the engine's persisted position
type State struct {
	Board     Board        `json:"points"`
	Dice      Dice         `json:"dice"`
	Turn      model.Side   `json:"turn"`
	HeadMoves int          `json:"head_moves"`
	Over      bool         `json:"over"`
	Winner    model.Result `json:"winner,omitempty"`
}

// Move takes one chip from point From by the value Die. Pass gives up the
// rest of the roll and is only accepted when no move exists.
type Move struct {
	From int  `json:"from"`
	Die  int  `json:"die"`
	Pass bool `json:"pass,omitempty"`
}

type step struct {
	from, to, die int
}

// Engine plays long nardy
type Engine struct {
	random random.Random
}

// Ensure Engine implements rules.Engine
var _ rules.Engine = (*Engine)(nil)

// New creates a nardy engine
func New(rnd random.Random) *Engine {
	return &Engine{random: rnd}
}

func (e *Engine) Game() model.GameType {
	return model.GameNardy
}

func (e *Engine) NewState(rules.NewGame) (json.RawMessage, error) {
	st := State{Board: startingBoard()}
	e.beginTurn(&st, model.SideWhite)
	return json.Marshal(st)
}

func (e *Engine) Apply(state, move json.RawMessage, side model.Side) (rules.Outcome, error) {
	var st State
	if err := rules.DecodeState(state, &st); err != nil {
		return rules.Outcome{}, err
	}
	if st.Over || st.Turn != side {
		return rules.Rejected(), nil
	}

	var m Move
	if err := rules.DecodeMove(move, &m); err != nil {
		return rules.Outcome{}, err
	}

	legal := legalSteps(&st.Board, side, st.Dice, st.HeadMoves)
	if m.Pass {
		if len(legal) > 0 {
			return rules.Rejected(), nil
		}
		e.passTurn(&st, side)
		return e.outcome(st, side)
	}

	chosen, ok := find(legal, m.From, m.Die)
	if !ok {
		return rules.Rejected(), nil
	}

	s := sign(side)
	st.Board[chosen.from] -= s
	st.Board[chosen.to] += s
	if chosen.from == head(side) {
		st.HeadMoves--
	}
	st.Dice.use(chosen.die)

	switch {
	case !st.Board.onBoard(side):
		st.Over = true
		st.Winner = model.WinnerResult(side)
	case st.Dice.spent() || len(legalSteps(&st.Board, side, st.Dice, st.HeadMoves)) == 0:
		e.passTurn(&st, side)
	}
	return e.outcome(st, side)
}

func (e *Engine) outcome(st State, mover model.Side) (rules.Outcome, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return rules.Outcome{}, err
	}
	return rules.Outcome{
		State:    data,
		Accepted: true,
		TurnOver: !st.Over && st.Turn != mover,
		GameOver: st.Over,
		Winner:   st.Winner,
	}, nil
}

// passTurn hands the dice to the opponent, skipping any side whose fresh
// roll has no legal move
func (e *Engine) passTurn(st *State, from model.Side) {
	next := from.Opponent()
	for range maxSkips {
		e.beginTurn(st, next)
		if len(legalSteps(&st.Board, next, st.Dice, st.HeadMoves)) > 0 {
			return
		}
		next = next.Opponent()
	}
}

func (e *Engine) beginTurn(st *State, side model.Side) {
	d1, d2 := e.random.Intn(6)+1, e.random.Intn(6)+1
	uses := 1
	if d1 == d2 {
		uses = 2
	}
	st.Turn = side
	st.Dice = Dice{D1: d1, D1Left: uses, D2: d2, D2Left: uses}
	st.HeadMoves = 1
	// opening doubles of 3, 4 or 6 cannot be played with one chip from the head
	if d1 == d2 && (d1 == 3 || d1 == 4 || d1 == 6) && st.Board.count(head(side), side) == Chips {
		st.HeadMoves = 2
	}
}

// ComputerMove bears off when it can and otherwise picks a legal step at random
func (e *Engine) ComputerMove(state json.RawMessage, side model.Side) (json.RawMessage, error) {
	var st State
	if err := rules.DecodeState(state, &st); err != nil {
		return nil, err
	}
	legal := legalSteps(&st.Board, side, st.Dice, st.HeadMoves)
	if len(legal) == 0 {
		return json.Marshal(Move{Pass: true})
	}
	for _, s := range legal {
		if s.to == tray(side) {
			return json.Marshal(Move{From: s.from, Die: s.die})
		}
	}
	s := legal[e.random.Intn(len(legal))]
	return json.Marshal(Move{From: s.from, Die: s.die})
}

// Verdict is conclusive once a side has borne off everything; before that the
// side with more chips off is the hint
func (e *Engine) Verdict(state json.RawMessage) rules.Verdict {
	var st State
	if err := rules.DecodeState(state, &st); err != nil {
		return rules.Verdict{}
	}
	if st.Over {
		return rules.Verdict{Result: st.Winner, Conclusive: true}
	}
	w, b := st.Board.borneOff(model.SideWhite), st.Board.borneOff(model.SideBlack)
	switch {
	case w > b:
		return rules.Verdict{Result: model.ResultWhiteWon}
	case b > w:
		return rules.Verdict{Result: model.ResultBlackWon}
	}
	return rules.Verdict{}
}

func legalSteps(b *Board, side model.Side, dice Dice, headMoves int) []step {
	var steps []step
	p := path(side)
	canBearOff := b.allHome(side)
	for _, die := range dice.values() {
		for i, point := range p {
			if b.count(point, side) == 0 {
				continue
			}
			if point == head(side) && headMoves <= 0 {
				continue
			}
			target := i + die
			if target >= Points {
				if canBearOff {
					steps = append(steps, step{from: point, to: tray(side), die: die})
				}
				continue
			}
			to := p[target]
			if b.owner(to) == 0 || b.owner(to) == sign(side) {
				steps = append(steps, step{from: point, to: to, die: die})
			}
		}
	}
	return steps
}

func find(steps []step, from, die int) (step, bool) {
	for _, s := range steps {
		if s.from == from && s.die == die {
			return s, true
		}
	}
	return step{}, false
}

// String renders a roll for logs
func (d Dice) String() string {
	return fmt.Sprintf("%d-%d", d.D1, d.D2)
}
