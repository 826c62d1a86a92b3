// Package reversi implements reversi on the standard 8x8 board. White moves
// first and a side without a legal move is skipped.
package reversi

import (
	"encoding/json"
	"fmt"

	"github.com/lanarcade/gamehub/internal/dependencies/random"
	"github.com/lanarcade/gamehub/internal/model"
	"github.com/lanarcade/gamehub/internal/rules"
)

const size = 8

const (
	empty uint8 = 0
	white uint8 = 1
	black uint8 = 2
)

var directions = [8][2]int{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}}

// State is the engine's persisted position
type State struct {
	Board  string       `json:"board"`
	White  int          `json:"white"`
	Black  int          `json:"black"`
	Over   bool         `json:"over"`
	Winner model.Result `json:"winner,omitempty"`
}

// Move places a disc at column X, row Y
type Move struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Engine plays reversi
type Engine struct {
	random random.Random
}

// Ensure Engine implements rules.Engine
var _ rules.Engine = (*Engine)(nil)

// New creates a reversi engine
func New(rnd random.Random) *Engine {
	return &Engine{random: rnd}
}

func (e *Engine) Game() model.GameType {
	return model.GameReversi
}

func (e *Engine) NewState(rules.NewGame) (json.RawMessage, error) {
	board := make([]uint8, size*size)
	board[3*size+3] = white
	board[4*size+4] = white
	board[3*size+4] = black
	board[4*size+3] = black
	return encode(board, false, model.ResultNone)
}

func (e *Engine) Apply(state, move json.RawMessage, side model.Side) (rules.Outcome, error) {
	board, st, err := decode(state)
	if err != nil {
		return rules.Outcome{}, err
	}
	if st.Over {
		return rules.Rejected(), nil
	}

	var m Move
	if err := rules.DecodeMove(move, &m); err != nil {
		return rules.Outcome{}, err
	}
	if !onBoard(m.X, m.Y) {
		return rules.Rejected(), nil
	}

	me := disc(side)
	flips := flipsFor(board, m.X, m.Y, me)
	if len(flips) == 0 {
		return rules.Rejected(), nil
	}

	board[m.Y*size+m.X] = me
	for _, idx := range flips {
		board[idx] = me
	}

	out := rules.Outcome{Accepted: true}
	opp := disc(side.Opponent())
	switch {
	case isFull(board):
		out.GameOver = true
	case hasMove(board, opp):
		out.TurnOver = true
	case hasMove(board, me):
		// opponent is skipped
	default:
		out.GameOver = true
	}
	if out.GameOver {
		out.Winner = countWinner(board)
	}

	out.State, err = encode(board, out.GameOver, out.Winner)
	if err != nil {
		return rules.Outcome{}, err
	}
	return out, nil
}

// ComputerMove prefers corners, then edges, then the move flipping the most discs
func (e *Engine) ComputerMove(state json.RawMessage, side model.Side) (json.RawMessage, error) {
	board, _, err := decode(state)
	if err != nil {
		return nil, err
	}
	me := disc(side)

	bestScore := -1
	var best []Move
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			flips := flipsFor(board, x, y, me)
			if len(flips) == 0 {
				continue
			}
			score := len(flips) + positionBonus(x, y)
			switch {
			case score > bestScore:
				bestScore = score
				best = []Move{{X: x, Y: y}}
			case score == bestScore:
				best = append(best, Move{X: x, Y: y})
			}
		}
	}
	if len(best) == 0 {
		return nil, fmt.Errorf("%w: no reversi move for %s", model.ErrIllegalMove, side)
	}
	return json.Marshal(best[e.random.Intn(len(best))])
}

func (e *Engine) Verdict(state json.RawMessage) rules.Verdict {
	board, st, err := decode(state)
	if err != nil {
		return rules.Verdict{}
	}
	if st.Over {
		return rules.Verdict{Result: st.Winner, Conclusive: true}
	}
	return rules.Verdict{Result: countWinner(board)}
}

func positionBonus(x, y int) int {
	edgeX := x == 0 || x == size-1
	edgeY := y == 0 || y == size-1
	switch {
	case edgeX && edgeY:
		return 100
	case edgeX || edgeY:
		return 5
	}
	return 0
}

func disc(side model.Side) uint8 {
	if side == model.SideWhite {
		return white
	}
	return black
}

func onBoard(x, y int) bool {
	return x >= 0 && x < size && y >= 0 && y < size
}

// flipsFor returns the indices flipped by me playing at x,y
func flipsFor(board []uint8, x, y int, me uint8) []int {
	if !onBoard(x, y) || board[y*size+x] != empty {
		return nil
	}
	opp := white
	if me == white {
		opp = black
	}

	var flips []int
	for _, d := range directions {
		var line []int
		cx, cy := x+d[0], y+d[1]
		for onBoard(cx, cy) && board[cy*size+cx] == opp {
			line = append(line, cy*size+cx)
			cx, cy = cx+d[0], cy+d[1]
		}
		if len(line) > 0 && onBoard(cx, cy) && board[cy*size+cx] == me {
			flips = append(flips, line...)
		}
	}
	return flips
}

func hasMove(board []uint8, who uint8) bool {
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if len(flipsFor(board, x, y, who)) > 0 {
				return true
			}
		}
	}
	return false
}

func isFull(board []uint8) bool {
	for _, c := range board {
		if c == empty {
			return false
		}
	}
	return true
}

func count(board []uint8) (w, b int) {
	for _, c := range board {
		switch c {
		case white:
			w++
		case black:
			b++
		}
	}
	return w, b
}

func countWinner(board []uint8) model.Result {
	w, b := count(board)
	switch {
	case w > b:
		return model.ResultWhiteWon
	case b > w:
		return model.ResultBlackWon
	}
	return model.ResultDraw
}

func encode(board []uint8, over bool, winner model.Result) (json.RawMessage, error) {
	w, b := count(board)
	return json.Marshal(State{
		Board:  rules.PackCells(board),
		White:  w,
		Black:  b,
		Over:   over,
		Winner: winner,
	})
}

func decode(state json.RawMessage) ([]uint8, State, error) {
	var st State
	if err := rules.DecodeState(state, &st); err != nil {
		return nil, st, err
	}
	board, err := rules.UnpackCells(st.Board, size*size)
	if err != nil {
		return nil, st, fmt.Errorf("reversi board: %w", err)
	}
	return board, st, nil
}

// StateFromRows builds an encoded state from eight strings of '.', 'W' and
// 'B'. It exists for tests and tooling that need a specific position.
func StateFromRows(rows [size]string) (json.RawMessage, error) {
	board := make([]uint8, size*size)
	for y, row := range rows {
		if len(row) != size {
			return nil, fmt.Errorf("row %d has %d cells", y, len(row))
		}
		for x := 0; x < size; x++ {
			switch row[x] {
			case 'W':
				board[y*size+x] = white
			case 'B':
				board[y*size+x] = black
			}
		}
	}
	return encode(board, false, model.ResultNone)
}
