// Package connect4 implements four-in-a-row on a 7x6 gravity board
package connect4

import (
	"encoding/json"
	"fmt"

	"github.com/lanarcade/gamehub/internal/dependencies/random"
	"github.com/lanarcade/gamehub/internal/model"
	"github.com/lanarcade/gamehub/internal/rules"
)

const (
	Columns = 7
	Rows    = 6
)

const (
	empty uint8 = 0
	white uint8 = 1
	black uint8 = 2
)

// centre-weighted preference used when nothing tactical is on the board
var columnScore = [Columns]int{1, 2, 3, 4, 3, 2, 1}

// State is the engine's persisted position. Row 0 is the bottom row.
type State struct {
	Board  string       `json:"board"`
	Over   bool         `json:"over"`
	Winner model.Result `json:"winner,omitempty"`
	Line   []int        `json:"line,omitempty"` // cells of the winning four
}

// Move drops a disc into Column
type Move struct {
	Column int `json:"column"`
}

// Engine plays connect four
type Engine struct {
	random random.Random
}

// Ensure Engine implements rules.Engine
var _ rules.Engine = (*Engine)(nil)

// New creates a connect four engine
func New(rnd random.Random) *Engine {
	return &Engine{random: rnd}
}

func (e *Engine) Game() model.GameType {
	return model.GameConnect4
}

func (e *Engine) NewState(rules.NewGame) (json.RawMessage, error) {
	return encode(State{Board: rules.PackCells(make([]uint8, Columns*Rows))})
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
	row := landingRow(board, m.Column)
	if row < 0 {
		return rules.Rejected(), nil
	}

	me := disc(side)
	board[index(m.Column, row)] = me

	out := rules.Outcome{Accepted: true, TurnOver: true}
	next := State{Board: rules.PackCells(board)}
	if line := winningLine(board, m.Column, row); line != nil {
		next.Over, next.Winner, next.Line = true, model.WinnerResult(side), line
	} else if isFull(board) {
		next.Over, next.Winner = true, model.ResultDraw
	}
	if next.Over {
		out.TurnOver = false
		out.GameOver = true
		out.Winner = next.Winner
	}

	out.State, err = encode(next)
	if err != nil {
		return rules.Outcome{}, err
	}
	return out, nil
}

// ComputerMove wins if it can, blocks an immediate loss, and otherwise
// prefers central columns
func (e *Engine) ComputerMove(state json.RawMessage, side model.Side) (json.RawMessage, error) {
	board, _, err := decode(state)
	if err != nil {
		return nil, err
	}
	me, opp := disc(side), disc(side.Opponent())

	if col, ok := findWinningColumn(board, me); ok {
		return json.Marshal(Move{Column: col})
	}
	if col, ok := findWinningColumn(board, opp); ok {
		return json.Marshal(Move{Column: col})
	}

	best := -1
	var candidates []int
	for col := 0; col < Columns; col++ {
		row := landingRow(board, col)
		if row < 0 {
			continue
		}
		score := columnScore[col]
		// avoid handing the opponent a win on top of our disc
		if row+1 < Rows {
			board[index(col, row)] = me
			board[index(col, row+1)] = opp
			if winningLine(board, col, row+1) != nil {
				score -= 10
			}
			board[index(col, row+1)] = empty
			board[index(col, row)] = empty
		}
		switch {
		case score > best:
			best = score
			candidates = []int{col}
		case score == best:
			candidates = append(candidates, col)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: connect4 board is full", model.ErrIllegalMove)
	}
	return json.Marshal(Move{Column: candidates[e.random.Intn(len(candidates))]})
}

// Verdict only trusts the engine's own record of how the game ended
func (e *Engine) Verdict(state json.RawMessage) rules.Verdict {
	var st State
	if err := rules.DecodeState(state, &st); err != nil || !st.Over {
		return rules.Verdict{}
	}
	return rules.Verdict{Result: st.Winner, Conclusive: true}
}

func findWinningColumn(board []uint8, who uint8) (int, bool) {
	for col := 0; col < Columns; col++ {
		row := landingRow(board, col)
		if row < 0 {
			continue
		}
		board[index(col, row)] = who
		won := winningLine(board, col, row) != nil
		board[index(col, row)] = empty
		if won {
			return col, true
		}
	}
	return 0, false
}

func index(col, row int) int {
	return row*Columns + col
}

func landingRow(board []uint8, col int) int {
	if col < 0 || col >= Columns {
		return -1
	}
	for row := 0; row < Rows; row++ {
		if board[index(col, row)] == empty {
			return row
		}
	}
	return -1
}

// winningLine returns the four cells through col,row owned by the disc there
func winningLine(board []uint8, col, row int) []int {
	who := board[index(col, row)]
	if who == empty {
		return nil
	}
	for _, d := range [4][2]int{{1, 0}, {0, 1}, {1, 1}, {1, -1}} {
		line := []int{index(col, row)}
		for _, sign := range []int{1, -1} {
			c, r := col+sign*d[0], row+sign*d[1]
			for c >= 0 && c < Columns && r >= 0 && r < Rows && board[index(c, r)] == who {
				line = append(line, index(c, r))
				c, r = c+sign*d[0], r+sign*d[1]
			}
		}
		if len(line) >= 4 {
			return line[:4]
		}
	}
	return nil
}

func isFull(board []uint8) bool {
	for col := 0; col < Columns; col++ {
		if board[index(col, Rows-1)] == empty {
			return false
		}
	}
	return true
}

func disc(side model.Side) uint8 {
	if side == model.SideWhite {
		return white
	}
	return black
}

func encode(st State) (json.RawMessage, error) {
	return json.Marshal(st)
}

func decode(state json.RawMessage) ([]uint8, State, error) {
	var st State
	if err := rules.DecodeState(state, &st); err != nil {
		return nil, st, err
	}
	board, err := rules.UnpackCells(st.Board, Columns*Rows)
	if err != nil {
		return nil, st, fmt.Errorf("connect4 board: %w", err)
	}
	return board, st, nil
}
